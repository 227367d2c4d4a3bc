// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package storetest provides generic functional tests for the
// store.Store interface.  A typical backend test module needs to wrap
// Suite to create its store:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-visionclient/store/storetest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             storetest.Suite
//     }
//
//     // SetupTest creates an empty store for each test.
//     func (s *Suite) SetupTest() {
//             s.Store = New()
//     }
//
//     // TestStore runs the store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package storetest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/suite"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/store"
)

// Suite is the generic store backend test suite.  Each test expects
// Store to start out empty.
type Suite struct {
	suite.Suite

	// Store contains the backend under test.  It is set by
	// importing packages.
	Store store.Store
}

func pausedHandle() *platform.UploadHandle {
	return &platform.UploadHandle{
		ResourceURL: "https://platform.example/api/v1/organizations/o/workspaces/w/datasets/uploads/resumable/abc",
		BytesSent:   20 << 20,
		TotalSize:   25 << 20,
		ChunkSize:   10 << 20,
		Status:      platform.UploadPaused,
		Filename:    "dataset.zip",
		Metadata:    map[string]string{"filename": "dataset.zip"},
	}
}

// TestSaveLoad checks that a saved handle comes back intact.
func (s *Suite) TestSaveLoad() {
	ctx := context.Background()
	handle := pausedHandle()
	s.Require().NoError(s.Store.Save(ctx, "/data/dataset.zip", handle))

	loaded, err := s.Store.Load(ctx, "/data/dataset.zip")
	if s.NoError(err) {
		s.Equal(handle, loaded)
	}
}

// TestNotFound checks the error for an absent key.
func (s *Suite) TestNotFound() {
	_, err := s.Store.Load(context.Background(), "/nowhere")
	s.Equal(store.ErrNotFound, err)
}

// TestReplace checks that saving a key twice keeps the later handle.
func (s *Suite) TestReplace() {
	ctx := context.Background()
	handle := pausedHandle()
	s.Require().NoError(s.Store.Save(ctx, "k", handle))
	handle.BytesSent = handle.TotalSize
	handle.Status = platform.UploadCompleted
	s.Require().NoError(s.Store.Save(ctx, "k", handle))

	loaded, err := s.Store.Load(ctx, "k")
	if s.NoError(err) {
		s.Equal(platform.UploadCompleted, loaded.Status)
		s.Equal(handle.TotalSize, loaded.BytesSent)
	}
	keys, err := s.Store.Keys(ctx)
	if s.NoError(err) {
		s.Equal([]string{"k"}, keys)
	}
}

// TestIsolation checks that the store neither retains the saved handle
// nor shares the loaded one.
func (s *Suite) TestIsolation() {
	ctx := context.Background()
	handle := pausedHandle()
	s.Require().NoError(s.Store.Save(ctx, "k", handle))
	handle.BytesSent = 0
	handle.Metadata["filename"] = "changed"

	loaded, err := s.Store.Load(ctx, "k")
	s.Require().NoError(err)
	s.Equal(int64(20<<20), loaded.BytesSent)
	s.Equal("dataset.zip", loaded.Metadata["filename"])
	loaded.Metadata["filename"] = "changed again"

	again, err := s.Store.Load(ctx, "k")
	if s.NoError(err) {
		s.Equal("dataset.zip", again.Metadata["filename"])
	}
}

// TestDelete checks deletion, including of absent keys.
func (s *Suite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.Store.Save(ctx, "a", pausedHandle()))
	s.Require().NoError(s.Store.Save(ctx, "b", pausedHandle()))

	s.NoError(s.Store.Delete(ctx, "a"))
	s.NoError(s.Store.Delete(ctx, "a"))
	_, err := s.Store.Load(ctx, "a")
	s.Equal(store.ErrNotFound, err)

	keys, err := s.Store.Keys(ctx)
	if s.NoError(err) {
		s.Equal([]string{"b"}, keys)
	}
}

// TestKeysSorted checks key ordering.
func (s *Suite) TestKeysSorted() {
	ctx := context.Background()
	for _, key := range []string{"/b", "/c", "/a"} {
		s.Require().NoError(s.Store.Save(ctx, key, pausedHandle()))
	}
	keys, err := s.Store.Keys(ctx)
	if s.NoError(err) {
		s.Equal([]string{"/a", "/b", "/c"}, keys)
	}
}

// TestNoMetadata checks that a handle without metadata round-trips.
func (s *Suite) TestNoMetadata() {
	ctx := context.Background()
	handle := &platform.UploadHandle{
		ResourceURL: "https://platform.example/u/1",
		TotalSize:   10,
		ChunkSize:   5,
		Status:      platform.UploadInProgress,
	}
	s.Require().NoError(s.Store.Save(ctx, "k", handle))
	loaded, err := s.Store.Load(ctx, "k")
	if s.NoError(err) {
		s.Equal(handle.ResourceURL, loaded.ResourceURL)
		s.Equal(platform.UploadInProgress, loaded.Status)
		s.Empty(loaded.Metadata)
	}
}

// TestConcurrentSaves saves many keys at once.
func (s *Suite) TestConcurrentSaves() {
	ctx := context.Background()
	keys := []string{"0", "1", "2", "3", "4", "5", "6", "7"}
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			s.NoError(s.Store.Save(ctx, key, pausedHandle()))
		}(key)
	}
	wg.Wait()
	saved, err := s.Store.Keys(ctx)
	if s.NoError(err) {
		s.Equal(keys, saved)
	}
}
