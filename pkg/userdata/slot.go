package userdata

import "sync/atomic"

// slotIDs is the process-wide slot id counter. Ids start at 1 so the zero
// Slot is always distinguishable from an allocated one.
var slotIDs atomic.Uint64

// Slot identifies one typed user-data field.
//
// A Slot is an immutable value holding a process-unique 64-bit id; equality
// and hashing are by id only. Allocate slots once with [NewSlot], typically
// in a package-level var of the feature that owns the field. Ids are never
// reused and are not stable across process restarts.
//
// The zero Slot is invalid; passing it to any operation panics.
type Slot[V any] struct {
	id uint64
}

// NewSlot allocates a fresh slot for values of type V. Safe for concurrent
// use.
func NewSlot[V any]() Slot[V] {
	return Slot[V]{id: slotIDs.Add(1)}
}

func (s Slot[V]) check() {
	if s.id == 0 {
		panic("userdata: use of zero Slot")
	}
}
