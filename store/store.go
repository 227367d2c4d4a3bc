// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package store persists resumable upload handles between runs, so
// that an interrupted upload can be resumed by a later process.
// Handles are keyed by an arbitrary string; the workflow package uses
// the absolute path of the file being uploaded.
//
// This package holds the interface and the in-process and file-backed
// implementations.  The postgres and redisstore packages provide
// shared implementations, and the backend package chooses one from a
// command-line flag.
package store

import (
	"context"
	"errors"

	"github.com/diffeo/go-visionclient/platform"
)

// ErrNotFound is returned from Load if there is no handle saved under
// the key.
var ErrNotFound = errors.New("No saved upload handle")

// Store saves upload handles.  Implementations are safe for concurrent
// use, and never retain the handle passed to Save or share the handle
// returned from Load.
type Store interface {
	// Save records a handle, replacing any existing one with the
	// same key.
	Save(ctx context.Context, key string, handle *platform.UploadHandle) error

	// Load retrieves a handle, or returns ErrNotFound.
	Load(ctx context.Context, key string) (*platform.UploadHandle, error)

	// Delete removes a handle.  Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Keys returns every saved key in sorted order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Copy returns a copy of a handle that shares no state with it.
func Copy(handle *platform.UploadHandle) *platform.UploadHandle {
	result := *handle
	if handle.Metadata != nil {
		result.Metadata = make(map[string]string, len(handle.Metadata))
		for k, v := range handle.Metadata {
			result.Metadata[k] = v
		}
	}
	return &result
}
