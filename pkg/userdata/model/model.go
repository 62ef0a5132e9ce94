// Package model provides a deliberately simple, in-memory model of the
// userdata package's publicly observable behavior.
//
// The model favors clarity over performance: hosts are names, values are
// strings, and all state lives in plain maps. It is the oracle for the
// randomized state-model tests in the userdata package; keeping it trivially
// auditable is the point.
package model

import "maps"

// World models the host association table and every host's storage.
type World struct {
	// Stores maps a resolved source name to its slot values. A missing key
	// models the absent-storage state; a present key models exactly one
	// backing store.
	Stores map[string]map[uint64]string

	// Holders records redirection: host name -> holder name. Hosts without
	// an entry own their own storage. Resolution follows exactly one hop and
	// never chains.
	Holders map[string]string
}

// New returns an empty world with no hosts and no storage.
func New() *World {
	return &World{
		Stores:  make(map[string]map[uint64]string),
		Holders: make(map[string]string),
	}
}

// Redirect declares that host's storage is owned by holder.
func (w *World) Redirect(host, holder string) {
	w.Holders[host] = holder
}

// Source resolves host to the name owning its storage, following at most one
// redirection hop.
func (w *World) Source(host string) string {
	if holder, ok := w.Holders[host]; ok && holder != "" {
		return holder
	}

	return host
}

// HasStorage reports whether host's resolved source is in the present state.
func (w *World) HasStorage(host string) bool {
	_, ok := w.Stores[w.Source(host)]

	return ok
}

// Get returns the value under slot and whether one is present. Absent
// storage behaves like empty storage.
func (w *World) Get(host string, slot uint64) (string, bool) {
	st, ok := w.Stores[w.Source(host)]
	if !ok {
		return "", false
	}

	v, ok := st[slot]

	return v, ok
}

// Set stores value under slot, creating the storage if absent.
func (w *World) Set(host string, slot uint64, value string) {
	src := w.Source(host)

	st, ok := w.Stores[src]
	if !ok {
		st = make(map[uint64]string)
		w.Stores[src] = st
	}

	st[slot] = value
}

// GetOrSet returns the existing value under slot, or stores and returns
// value if the slot is absent.
func (w *World) GetOrSet(host string, slot uint64, value string) string {
	if v, ok := w.Get(host, slot); ok {
		return v
	}

	w.Set(host, slot, value)

	return value
}

// Remove deletes slot's value, reporting the removed value and whether one
// was present. It never creates storage.
func (w *World) Remove(host string, slot uint64) (string, bool) {
	st, ok := w.Stores[w.Source(host)]
	if !ok {
		return "", false
	}

	v, ok := st[slot]
	if ok {
		delete(st, slot)
	}

	return v, ok
}

// Copy duplicates src's entries into dst, replacing dst's entries wholesale.
// A source in the absent state leaves dst untouched.
func (w *World) Copy(src, dst string) {
	from, ok := w.Stores[w.Source(src)]
	if !ok {
		return
	}

	w.Stores[w.Source(dst)] = maps.Clone(from)
}
