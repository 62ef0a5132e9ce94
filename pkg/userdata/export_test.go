package userdata

import "unsafe"

// Export internal state for tests. This file is only compiled during tests.

// HandleKeyForTesting returns the identity key of a bound handle. The key is
// only meaningful while the handle's source is alive, but may be used after
// its death to probe the association table.
func HandleKeyForTesting(h Handle) uintptr {
	return uintptr(unsafe.Pointer(h.ptr))
}

// AssociationExistsForTesting reports whether an association entry (live or
// stale) is present for key.
func AssociationExistsForTesting(key uintptr) bool {
	_, ok := hosts.Load(key)

	return ok
}

// StorageExistsForTesting reports whether h's source currently has live
// storage, without creating one.
func StorageExistsForTesting(h Handle) bool {
	return resolve(h.ptr) != nil
}
