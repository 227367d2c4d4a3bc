// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package jobs

import (
	"container/list"
	"sync"

	"github.com/diffeo/go-visionclient/platform"
)

// lru is a least-recently-used cache of jobs keyed by job id, with a
// fixed capacity.  The cache can be safely accessed from multiple
// goroutines.
type lru struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves a job from the cache, marking it most recently used.
// It returns nil if the job is absent.
func (lru *lru) Get(id string) *platform.Job {
	// Moving the element needs the writer lock
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[id]; present {
		lru.evictList.MoveToBack(element)
		return element.Value.(*platform.Job)
	}
	return nil
}

// Peek looks for a job in the cache and returns it if present, or
// returns nil if absent.  This does not affect the recency of the job.
func (lru *lru) Peek(id string) *platform.Job {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[id]; present {
		return element.Value.(*platform.Job)
	}
	return nil
}

// Put adds a job to the cache, possibly evicting something.
func (lru *lru) Put(job *platform.Job) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[job.ID]; present {
		element.Value = job
		lru.evictList.MoveToBack(element)
		return
	}

	element := lru.evictList.PushBack(job)
	lru.index[job.ID] = element
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		delete(lru.index, head.Value.(*platform.Job).ID)
		lru.evictList.Remove(head)
	}
}

// Remove takes a job out of the cache.  It does nothing if that id is
// not present.
func (lru *lru) Remove(id string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[id]; present {
		delete(lru.index, id)
		lru.evictList.Remove(element)
	}
}

// Len returns the number of cached jobs.
func (lru *lru) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}
