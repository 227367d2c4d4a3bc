// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/diffeo/go-visionclient/platform"
)

// fileStore keeps every handle in a single YAML document, rewritten
// whole on every change.  The file is re-read for every operation, so
// several processes may share it, though concurrent writers can lose
// updates.
type fileStore struct {
	lock     sync.Mutex
	filename string
}

// NewFile creates a store backed by a YAML file.  The file need not
// exist yet; its directory must.
func NewFile(filename string) Store {
	return &fileStore{filename: filename}
}

func (f *fileStore) read() (map[string]*platform.UploadHandle, error) {
	handles := make(map[string]*platform.UploadHandle)
	bytes, err := ioutil.ReadFile(f.filename)
	if os.IsNotExist(err) {
		return handles, nil
	}
	if err == nil {
		err = yaml.Unmarshal(bytes, &handles)
	}
	return handles, err
}

// write replaces the file by renaming a temporary file over it, so a
// crash leaves either the old or the new contents.
func (f *fileStore) write(handles map[string]*platform.UploadHandle) error {
	bytes, err := yaml.Marshal(handles)
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(f.filename), ".handles-")
	if err != nil {
		return err
	}
	_, err = tmp.Write(bytes)
	if err2 := tmp.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Rename(tmp.Name(), f.filename)
	}
	if err != nil {
		os.Remove(tmp.Name())
	}
	return err
}

func (f *fileStore) Save(ctx context.Context, key string, handle *platform.UploadHandle) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	handles, err := f.read()
	if err != nil {
		return err
	}
	handles[key] = Copy(handle)
	return f.write(handles)
}

func (f *fileStore) Load(ctx context.Context, key string) (*platform.UploadHandle, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	handles, err := f.read()
	if err != nil {
		return nil, err
	}
	handle, present := handles[key]
	if !present || handle == nil {
		return nil, ErrNotFound
	}
	return handle, nil
}

func (f *fileStore) Delete(ctx context.Context, key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	handles, err := f.read()
	if err != nil {
		return err
	}
	if _, present := handles[key]; !present {
		return nil
	}
	delete(handles, key)
	return f.write(handles)
}

func (f *fileStore) Keys(ctx context.Context) ([]string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	handles, err := f.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(handles))
	for key := range handles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fileStore) Close() error {
	return nil
}
