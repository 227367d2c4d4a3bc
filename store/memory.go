// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/diffeo/go-visionclient/platform"
)

type memoryStore struct {
	lock    sync.Mutex
	handles map[string]*platform.UploadHandle
}

// NewMemory creates a store that lives only as long as the process.
func NewMemory() Store {
	return &memoryStore{handles: make(map[string]*platform.UploadHandle)}
}

func (m *memoryStore) Save(ctx context.Context, key string, handle *platform.UploadHandle) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handles[key] = Copy(handle)
	return nil
}

func (m *memoryStore) Load(ctx context.Context, key string) (*platform.UploadHandle, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	handle, present := m.handles[key]
	if !present {
		return nil, ErrNotFound
	}
	return Copy(handle), nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.handles, key)
	return nil
}

func (m *memoryStore) Keys(ctx context.Context) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	keys := make([]string, 0, len(m.handles))
	for key := range m.handles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryStore) Close() error {
	return nil
}
