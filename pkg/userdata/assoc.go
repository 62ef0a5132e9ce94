package userdata

import (
	"runtime"
	"sync"
	"unsafe"
	"weak"
)

// Container is implemented by hosts whose user data is owned by another
// object, for example an element whose storage lives on its document.
//
// Resolution follows exactly one hop: the holder's own Container
// implementation, if any, is ignored. This keeps ownership unambiguous and
// makes redirection cycles impossible.
type Container interface {
	// UserDataHolder returns the object that owns this host's user data, or
	// nil if the host owns it itself. A non-nil holder must satisfy the same
	// constraints as a host passed to [Bind].
	UserDataHolder() any
}

// hosts associates a host's identity with its store without keeping the host
// alive.
//
// Keys are raw host addresses, which the collector does not trace, so the
// table itself never pins a host. Correctness under address reuse comes from
// the weak pointer in each entry: an entry whose weak pointer no longer
// resolves to the caller's live host is stale and treated as absent. Entries
// are removed by a runtime cleanup when their host becomes unreachable; the
// cleanup deletes only its own entry via CompareAndDelete, so a racing
// re-bind at a reused address is never clobbered.
var hosts sync.Map // map[uintptr]*assocEntry

// assocEntry links one host identity to its store.
type assocEntry struct {
	// ref resolves to the host while it is alive. It is the staleness check
	// for reused addresses and never extends the host's lifetime.
	ref weak.Pointer[byte]

	// st is held strongly: the store lives exactly as long as its entry,
	// plus whatever copies were handed to other hosts.
	st *store
}

// resolve returns the live store for the host at ptr, or nil if the host has
// none. It never creates. ptr must point into a live host the caller holds.
func resolve(ptr *byte) *store {
	key := uintptr(unsafe.Pointer(ptr))

	v, ok := hosts.Load(key)
	if !ok {
		return nil
	}

	e := v.(*assocEntry)
	if e.ref.Value() != ptr {
		// A dead host's entry whose cleanup has not run yet, shadowed by a
		// new object at the reused address. Drop it and report absent.
		hosts.CompareAndDelete(key, v)

		return nil
	}

	return e.st
}

// resolveOrCreate returns the host's store, installing a fresh one if absent.
//
// Double-checked creation: the fast path is a plain load via resolve; a loser
// of the LoadOrStore race discards its candidate and adopts the winner's
// store, so at most one live store ever exists per host identity.
func resolveOrCreate(ptr *byte) *store {
	key := uintptr(unsafe.Pointer(ptr))

	for {
		if st := resolve(ptr); st != nil {
			return st
		}

		e := &assocEntry{ref: weak.Make(ptr), st: newStore()}

		actual, loaded := hosts.LoadOrStore(key, e)
		if !loaded {
			// The cleanup must not reference the host, or the host would
			// never become unreachable. Key and entry are enough to delete
			// exactly this association and nothing newer.
			runtime.AddCleanup(ptr, func(k uintptr) {
				hosts.CompareAndDelete(k, e)
			}, key)

			return e.st
		}

		winner := actual.(*assocEntry)
		if winner.ref.Value() == ptr {
			return winner.st
		}

		// The installed entry belongs to a dead host at a reused address.
		hosts.CompareAndDelete(key, actual)
	}
}
