// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/store"
	"github.com/diffeo/go-visionclient/upload"
)

// ErrNoStore is returned when resuming or canceling an upload without
// a handle, if the orchestrator has no store to load one from.
var ErrNoStore = errors.New("No upload handle store configured")

// ErrFileChanged is returned when resuming an upload whose source file
// is no longer the size the upload was created with.
var ErrFileChanged = errors.New("File size differs from the upload")

// Upload is the outcome of uploading a file.
type Upload struct {
	// FileID identifies the file on the platform.  It is empty if
	// the upload did not complete.
	FileID string

	// Handle is the resumable upload handle, or nil if the file
	// went up in a single request.
	Handle *platform.UploadHandle
}

// session returns the shared upload session for a creation endpoint.
func (o *Orchestrator) session(endpoint string) *upload.Session {
	o.sessionsLock.Lock()
	defer o.sessionsLock.Unlock()
	if o.sessions == nil {
		o.sessions = make(map[string]*upload.Session)
	}
	if s := o.sessions[endpoint]; s != nil {
		return s
	}
	s := upload.New(o.Transport, endpoint)
	s.Logger = o.Logger
	s.Progress = func(handle platform.UploadHandle) {
		if o.Progress != nil {
			o.Progress(handle.Filename, handle.BytesSent, handle.TotalSize)
		}
	}
	o.sessions[endpoint] = s
	return s
}

// sessionFor returns the session that created a handle.  Upload
// resources live beneath their creation endpoint.
func (o *Orchestrator) sessionFor(handle *platform.UploadHandle) *upload.Session {
	if strings.Contains(handle.ResourceURL, "/"+restdata.ProjectResumableUploadsURL+"/") {
		return o.session(restdata.ProjectResumableUploadsURL)
	}
	return o.session(restdata.DatasetResumableUploadsURL)
}

func openFile(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return f, info.Size(), nil
}

// UploadDataset uploads a dataset archive.  Files smaller than
// StandardUploadLimit go up in a single multipart request; larger ones
// use the resumable protocol.
func (o *Orchestrator) UploadDataset(ctx context.Context, path string) (*Upload, error) {
	f, size, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if size < o.StandardUploadLimit {
		return o.standardUpload(ctx, f, filepath.Base(path), size)
	}
	return o.resumableUpload(ctx, restdata.DatasetResumableUploadsURL, f, path, size)
}

// UploadProject uploads an exported project archive, always with the
// resumable protocol.
func (o *Orchestrator) UploadProject(ctx context.Context, path string) (*Upload, error) {
	f, size, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return o.resumableUpload(ctx, restdata.ProjectResumableUploadsURL, f, path, size)
}

func (o *Orchestrator) standardUpload(ctx context.Context, f *os.File, filename string, size int64) (*Upload, error) {
	form := &platform.Form{
		Files: []platform.FormFile{{
			Field:    "file",
			Filename: filename,
			Content:  f,
			Size:     size,
		}},
	}
	if o.Progress != nil {
		form.Progress = func(sent, total int64) {
			o.Progress(filename, sent, total)
		}
	}
	var uploaded restdata.FileUploaded
	if err := o.Transport.PostTo(ctx, restdata.DatasetUploadsURL, nil, form, &uploaded); err != nil {
		return nil, err
	}
	o.Logger.WithFields(logrus.Fields{
		"file":     filename,
		"size":     size,
		"platform": uploaded.FileID,
	}).Info("file uploaded")
	return &Upload{FileID: uploaded.FileID}, nil
}

func (o *Orchestrator) resumableUpload(ctx context.Context, endpoint string, f *os.File, path string, size int64) (*Upload, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{"filename": filepath.Base(path)}
	handle, err := o.session(endpoint).StartWithMetadata(ctx, f, size, o.ChunkSize, metadata)
	if handle == nil {
		return nil, err
	}
	return o.recorded(ctx, key, handle, err)
}

// recorded saves or forgets a handle according to its status, and
// builds the upload result.
func (o *Orchestrator) recorded(ctx context.Context, key string, handle *platform.UploadHandle, err error) (*Upload, error) {
	result := &Upload{Handle: handle}
	if handle.Status == platform.UploadCompleted {
		result.FileID = handle.FileID()
	}
	if o.Store == nil {
		return result, err
	}

	var storeErr error
	switch handle.Status {
	case platform.UploadCompleted, platform.UploadCanceled:
		storeErr = o.Store.Delete(ctx, key)
	default:
		if handle.ResourceURL != "" {
			storeErr = o.Store.Save(ctx, key, handle)
			if storeErr == nil {
				o.Logger.WithFields(logrus.Fields{
					"file":   key,
					"status": handle.Status,
					"offset": handle.BytesSent,
				}).Info("upload handle saved")
			}
		}
	}
	if err == nil {
		err = storeErr
	} else if storeErr != nil {
		o.Logger.WithError(storeErr).WithField("file", key).Error("failed to record upload handle")
	}
	return result, err
}

// loadHandle returns handle, or if it is nil, the handle saved for key.
func (o *Orchestrator) loadHandle(ctx context.Context, key string, handle *platform.UploadHandle) (*platform.UploadHandle, error) {
	if handle != nil {
		return handle, nil
	}
	if o.Store == nil {
		return nil, ErrNoStore
	}
	handle, err := o.Store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return handle, nil
}

// ResumeUpload continues an unfinished resumable upload of the file at
// path.  If handle is nil the handle saved in the store for that path
// is used.
func (o *Orchestrator) ResumeUpload(ctx context.Context, path string, handle *platform.UploadHandle) (*Upload, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	handle, err = o.loadHandle(ctx, key, handle)
	if err != nil {
		return nil, err
	}
	f, size, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if size != handle.TotalSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, upload is %d", ErrFileChanged, path, size, handle.TotalSize)
	}

	next, err := o.sessionFor(handle).Resume(ctx, f, handle)
	if next == nil {
		return nil, err
	}
	return o.recorded(ctx, key, next, err)
}

// CancelUpload terminates an unfinished resumable upload of the file
// at path.  If handle is nil the handle saved in the store for that
// path is used.  It returns true only if the server terminated the
// upload.  The saved handle is forgotten if the upload was terminated
// or the server no longer knows about it.
func (o *Orchestrator) CancelUpload(ctx context.Context, path string, handle *platform.UploadHandle) (bool, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	handle, err = o.loadHandle(ctx, key, handle)
	if err != nil {
		return false, err
	}

	canceled, err := o.sessionFor(handle).Cancel(ctx, handle)
	var apiErr *platform.APIError
	gone := errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
	if o.Store != nil && (canceled || gone) {
		if storeErr := o.Store.Delete(ctx, key); storeErr != nil && err == nil {
			err = storeErr
		}
	}
	return canceled, err
}

// PendingUploads lists the files with saved upload handles.
func (o *Orchestrator) PendingUploads(ctx context.Context) (map[string]*platform.UploadHandle, error) {
	if o.Store == nil {
		return nil, ErrNoStore
	}
	keys, err := o.Store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]*platform.UploadHandle, len(keys))
	for _, key := range keys {
		handle, err := o.Store.Load(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key] = handle
	}
	return result, nil
}
