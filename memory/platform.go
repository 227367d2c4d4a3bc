// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory fake of the vision
// platform.  There is no persistence, and the platform's actual
// processing is not modeled; jobs move through a scripted sequence of
// states, one state per status query.  The entire platform is behind
// a single lock to protect against concurrent updates.
//
// This is intended as test tooling and as the backing state of a
// local demo server (see the restserver package), so that the client
// packages can be exercised end to end.  It is tuned for correctness
// and predictability, not performance.
package memory

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/satori/go.uuid"

	"github.com/diffeo/go-visionclient/restdata"
)

// FileKind says what an uploaded file holds.
type FileKind string

const (
	// DatasetFile is a dataset archive, imported through the
	// datasets:prepare-for-import flow.
	DatasetFile FileKind = "dataset"

	// ProjectFile is an exported project archive, imported
	// through projects:import.
	ProjectFile FileKind = "project"
)

// File is an uploaded file.
type File struct {
	ID       string
	Kind     FileKind
	Filename string
	Size     int64

	// prepared is set once a prepare job for the file finished.
	// preparedFor is the project it was prepared for, or empty
	// for a new project.
	prepared    bool
	preparedFor string
}

// Platform is the complete state of one fake platform, serving a
// single organization with a single workspace.
type Platform struct {
	OrganizationID string
	WorkspaceID    string
	WorkspaceName  string

	// APIKey, if non-empty, is the only key the server accepts.
	APIKey string

	clock clock.Clock
	sem   sync.Mutex

	files    map[string]*File
	jobs     map[string]*job
	scripts  map[string][]string
	projects map[string]*restdata.Project
	order    []string
	media    map[string][]restdata.Media
}

// This is the main external entry point to this package:

// New creates a new fake platform with fresh identifiers, using the
// wall clock.
func New() *Platform {
	return NewWithClock(clock.New())
}

// NewWithClock creates a new fake platform with fresh identifiers,
// using a specified time source.
func NewWithClock(clk clock.Clock) *Platform {
	return &Platform{
		OrganizationID: newID(),
		WorkspaceID:    newID(),
		WorkspaceName:  "Default Workspace",
		clock:          clk,
		files:          make(map[string]*File),
		jobs:           make(map[string]*job),
		scripts:        make(map[string][]string),
		projects:       make(map[string]*restdata.Project),
		media:          make(map[string][]restdata.Media),
	}
}

func newID() string {
	return uuid.NewV4().String()
}

func (p *Platform) lock() {
	p.sem.Lock()
}

func (p *Platform) unlock() {
	p.sem.Unlock()
}

// Organization returns the organization of the API key.
func (p *Platform) Organization() restdata.OrganizationResponse {
	return restdata.OrganizationResponse{OrganizationID: p.OrganizationID}
}

// Workspaces lists the workspaces of an organization.
func (p *Platform) Workspaces(organizationID string) (restdata.WorkspaceList, error) {
	if err := p.CheckWorkspace(organizationID, ""); err != nil {
		return restdata.WorkspaceList{}, err
	}
	return restdata.WorkspaceList{
		Workspaces: []restdata.Workspace{{ID: p.WorkspaceID, Name: p.WorkspaceName}},
	}, nil
}

// CheckWorkspace returns a not-found error unless the identifiers name
// this platform's organization and (if non-empty) workspace.
func (p *Platform) CheckWorkspace(organizationID, workspaceID string) error {
	if organizationID != p.OrganizationID {
		return restdata.ErrNotFound{Err: fmt.Errorf("no such organization %q", organizationID)}
	}
	if workspaceID != "" && workspaceID != p.WorkspaceID {
		return restdata.ErrNotFound{Err: fmt.Errorf("no such workspace %q", workspaceID)}
	}
	return nil
}

// AddFile records a file received by a standard upload and returns its
// new identifier.
func (p *Platform) AddFile(kind FileKind, filename string, size int64) string {
	id := newID()
	p.RegisterFile(id, kind, filename, size)
	return id
}

// RegisterFile records a file received under a known identifier, as
// by a completed resumable upload.
func (p *Platform) RegisterFile(id string, kind FileKind, filename string, size int64) {
	p.lock()
	defer p.unlock()
	p.files[id] = &File{ID: id, Kind: kind, Filename: filename, Size: size}
}

// File returns a copy of an uploaded file, or nil if there is none.
func (p *Platform) File(id string) *File {
	p.lock()
	defer p.unlock()
	if f := p.files[id]; f != nil {
		result := *f
		return &result
	}
	return nil
}

// file looks up a file of a specific kind.  The caller holds the lock.
func (p *Platform) file(id string, kind FileKind) (*File, error) {
	if id == "" {
		return nil, restdata.ErrBadRequest{Err: fmt.Errorf("missing file_id")}
	}
	f := p.files[id]
	if f == nil || f.Kind != kind {
		return nil, restdata.ErrNotFound{Err: fmt.Errorf("no such %v file %q", kind, id)}
	}
	return f, nil
}
