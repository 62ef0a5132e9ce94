// Package userdata attaches arbitrary typed values to existing objects
// without modifying their declared types and without extending their
// lifetimes.
//
// The typical consumer is a library that needs to memoize or decorate values
// produced by someone else's code, for example a reflection cache that stores
// a compiled invoker next to the reflected object it belongs to. The package
// treats every stored value as opaque.
//
// # Basic Usage
//
//	// Allocated once, usually in a package-level var of the declaring feature.
//	var compiled = userdata.NewSlot[*Invoker]()
//
//	h, err := userdata.Bind(obj)
//	if err != nil {
//	    // obj was nil or not a pointer
//	}
//
//	inv, err := userdata.GetOrSet(h, compiled, func() (*Invoker, error) {
//	    return compile(obj)
//	})
//
// # Slots
//
// A [Slot] is a process-unique typed key. Slots are allocated with [NewSlot],
// never reused, and not stable across process restarts. Because each slot id
// is tied to exactly one value type at allocation, slot/value type confusion
// cannot occur at runtime.
//
// # Hosts and lifetime
//
// A host is any non-nil pointer. The association between a host and its
// storage is weak: it never keeps the host alive, and when the host becomes
// unreachable its storage becomes unreachable with it. A host may declare via
// [Container] that its storage belongs to a different object; resolution
// follows exactly one such hop at [Bind] time.
//
// Storage is created lazily on the first write-class call ([Set], [GetOrSet],
// or a copy into the host). Read-class calls on a host with no storage behave
// as if the storage were empty.
//
// # Concurrency
//
// All operations are safe for concurrent use. Each host's storage has its own
// reader-writer lock, so unrelated hosts never contend. [GetOrSet] guarantees
// its factory runs at most once per (host, slot) even under races; the
// factory executes while the write lock is held, so it must stay short and
// must not perform blocking I/O or call back into this package for the same
// host.
//
// # Error Handling
//
// [Bind] rejects invalid hosts with [ErrNilHost] or [ErrNotPointer]; both are
// caller programming errors. A factory error from [GetOrSet] propagates
// unchanged and leaves the storage exactly as if the call had not happened.
// Using the zero [Slot] or an unbound [Handle] panics. Nothing in this
// package retries.
package userdata
