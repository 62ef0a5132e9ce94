package userdata

import (
	"maps"
	"sync"
	"sync/atomic"
)

// storeSeqs numbers stores at creation time. The sequence defines the total
// lock order for operations that hold two store locks at once.
var storeSeqs atomic.Uint64

// store is the per-host backing map from slot id to stored value.
//
// Locking architecture
//
//  1. One RWMutex per store, no global lock. Readers (get, copy source) hold
//     RLock; writers (set, remove, getOrSet slow path, copyInto destination)
//     hold Lock. Unrelated hosts never contend.
//
//  2. When two stores must be locked at once (copyInto), locks are always
//     taken in ascending seq order, so opposite-direction copies between the
//     same pair cannot deadlock.
//
//  3. Store locks are never held while touching the host association table;
//     the table has its own synchronization.
type store struct {
	seq  uint64
	mu   sync.RWMutex
	data map[uint64]any
}

func newStore() *store {
	return &store{
		seq:  storeSeqs.Add(1),
		data: make(map[uint64]any),
	}
}

func (s *store) get(id uint64) (any, bool) {
	s.mu.RLock()
	v, ok := s.data[id]
	s.mu.RUnlock()

	return v, ok
}

func (s *store) set(id uint64, v any) {
	s.mu.Lock()
	s.data[id] = v
	s.mu.Unlock()
}

// getOrSet returns the value stored under id, producing it with factory if
// absent.
//
// Fast path is a read-locked lookup. On a miss it escalates to the write
// lock and re-checks, because another writer may have installed a value
// during the escalation. The factory therefore runs at most once per id
// across all racers, and every racer returns the value that won. On factory
// error nothing is stored and the error is returned unchanged; the deferred
// unlock covers that path too.
func (s *store) getOrSet(id uint64, factory func() (any, error)) (any, error) {
	s.mu.RLock()
	v, ok := s.data[id]
	s.mu.RUnlock()

	if ok {
		return v, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.data[id]; ok {
		return v, nil
	}

	v, err := factory()
	if err != nil {
		return nil, err
	}

	s.data[id] = v

	return v, nil
}

func (s *store) remove(id uint64) (any, bool) {
	s.mu.Lock()

	v, ok := s.data[id]
	if ok {
		delete(s.data, id)
	}

	s.mu.Unlock()

	return v, ok
}

// copyInto replaces dst's entries wholesale with a shallow duplicate of s's
// current entries. Stored values are shared by reference, not cloned; after
// the copy, mutations on one store do not affect the other.
//
// Copying a store into itself is a no-op.
func (s *store) copyInto(dst *store) {
	if s == dst {
		return
	}

	// Ascending seq order, see the locking architecture note above.
	if s.seq < dst.seq {
		s.mu.RLock()
		dst.mu.Lock()
	} else {
		dst.mu.Lock()
		s.mu.RLock()
	}

	dst.data = maps.Clone(s.data)

	s.mu.RUnlock()
	dst.mu.Unlock()
}
