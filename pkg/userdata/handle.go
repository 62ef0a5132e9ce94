package userdata

import (
	"fmt"
	"reflect"
	"runtime"
)

// Handle is a short-lived accessor bound to one host, or to the host's
// holder when the host redirects its storage via [Container].
//
// Handles are cheap values meant to live for the duration of a call. A
// Handle pins its resolved source: do not park handles in long-lived state,
// or the source object stays reachable for as long as the handle does.
//
// Two handles are == exactly when they resolved to the same source object;
// the content of the stores is irrelevant to equality. One caveat: a struct
// and its first field share a base address, so their handles share one
// storage yet compare unequal, because the source types differ.
//
// The zero Handle is unbound; passing it to any operation panics.
type Handle struct {
	src any   // strong ref, keeps the source alive across operations
	ptr *byte // the source's base address, the identity key
}

// Bind resolves host to a Handle.
//
// host must be a non-nil pointer; otherwise Bind fails with [ErrNilHost] or
// [ErrNotPointer]. If host implements [Container] and reports a non-nil
// holder, the handle binds to that holder instead; resolution stops after
// this single hop.
//
// Bind never creates storage. That happens lazily on the first write-class
// operation: [Set], [GetOrSet], or [Handle.CopyTo] with this host as the
// destination.
func Bind(host any) (Handle, error) {
	if c, ok := host.(Container); ok {
		if holder := c.UserDataHolder(); holder != nil {
			host = holder
		}
	}

	ptr, err := hostPointer(host)
	if err != nil {
		return Handle{}, err
	}

	return Handle{src: host, ptr: ptr}, nil
}

// hostPointer validates host and returns its base address.
func hostPointer(host any) (*byte, error) {
	if host == nil {
		return nil, ErrNilHost
	}

	rv := reflect.ValueOf(host)
	if rv.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: %T", ErrNotPointer, host)
	}

	if rv.IsNil() {
		return nil, fmt.Errorf("%w: (%T)(nil)", ErrNilHost, host)
	}

	return (*byte)(rv.UnsafePointer()), nil
}

// Source returns the object the handle resolved to: the host itself, or its
// holder if the host redirected.
func (h Handle) Source() any {
	return h.src
}

func (h Handle) check() {
	if h.ptr == nil {
		panic("userdata: use of unbound Handle")
	}
}

// CopyTo duplicates the source's current entries into target's storage.
// target is resolved like a host passed to [Bind], including redirection.
//
// If the handle's side has no storage, CopyTo is a no-op and the target is
// left untouched. Otherwise the target's entries are replaced wholesale, not
// merged; a target with no storage yet receives a fresh independent copy.
// Stored values are shared by reference, not deep-cloned. After the copy,
// mutations on either side do not affect the other.
func (h Handle) CopyTo(target any) error {
	h.check()

	dst, err := Bind(target)
	if err != nil {
		return err
	}

	src := resolve(h.ptr)
	if src == nil {
		runtime.KeepAlive(h.src)

		return nil
	}

	src.copyInto(resolveOrCreate(dst.ptr))

	runtime.KeepAlive(h.src)
	runtime.KeepAlive(dst.src)

	return nil
}

// Get returns the value stored under slot, or def if the slot is absent. It
// never creates storage.
func Get[V any](h Handle, slot Slot[V], def V) V {
	v, ok := TryGet(h, slot)
	if !ok {
		return def
	}

	return v
}

// TryGet returns the value stored under slot and whether one was present. It
// never creates storage.
func TryGet[V any](h Handle, slot Slot[V]) (V, bool) {
	slot.check()
	h.check()

	var zero V

	st := resolve(h.ptr)
	if st == nil {
		runtime.KeepAlive(h.src)

		return zero, false
	}

	v, ok := st.get(slot.id)

	runtime.KeepAlive(h.src)

	if !ok {
		return zero, false
	}

	// Comma-ok: a stored nil (interface-typed slot) must read back as the
	// zero V, not panic the assertion.
	vv, _ := v.(V)

	return vv, true
}

// Set stores value under slot, overwriting any previous value. It creates
// the host's storage if none exists yet.
func Set[V any](h Handle, slot Slot[V], value V) {
	slot.check()
	h.check()

	resolveOrCreate(h.ptr).set(slot.id, value)

	runtime.KeepAlive(h.src)
}

// GetOrSet returns the value stored under slot, invoking factory to produce
// and store it if absent. It creates the host's storage if none exists yet.
//
// Racing callers on the same (host, slot) observe a single factory
// invocation and all return the same stored value. If factory fails, nothing
// is stored, the lock is released, and the error propagates unchanged.
//
// The factory runs while the storage's write lock is held: keep it short,
// do not block on I/O, and do not call back into this package for the same
// host from inside it.
func GetOrSet[V any](h Handle, slot Slot[V], factory func() (V, error)) (V, error) {
	slot.check()
	h.check()

	var zero V

	v, err := resolveOrCreate(h.ptr).getOrSet(slot.id, func() (any, error) {
		v, err := factory()
		if err != nil {
			return nil, err
		}

		return v, nil
	})

	runtime.KeepAlive(h.src)

	if err != nil {
		return zero, err
	}

	vv, _ := v.(V)

	return vv, nil
}

// GetOrSetFunc is [GetOrSet] with an auxiliary argument passed through to the
// factory, so callers on hot paths can use a package-level factory function
// instead of allocating a closure per call.
func GetOrSetFunc[V, A any](h Handle, slot Slot[V], arg A, factory func(A) (V, error)) (V, error) {
	slot.check()
	h.check()

	var zero V

	v, err := resolveOrCreate(h.ptr).getOrSet(slot.id, func() (any, error) {
		v, err := factory(arg)
		if err != nil {
			return nil, err
		}

		return v, nil
	})

	runtime.KeepAlive(h.src)

	if err != nil {
		return zero, err
	}

	vv, _ := v.(V)

	return vv, nil
}

// Remove deletes slot's value and reports whether one was present. It never
// creates storage.
func Remove[V any](h Handle, slot Slot[V]) bool {
	_, ok := RemoveValue(h, slot)

	return ok
}

// RemoveValue is [Remove] returning the removed value as well.
func RemoveValue[V any](h Handle, slot Slot[V]) (V, bool) {
	slot.check()
	h.check()

	var zero V

	st := resolve(h.ptr)
	if st == nil {
		runtime.KeepAlive(h.src)

		return zero, false
	}

	v, ok := st.remove(slot.id)

	runtime.KeepAlive(h.src)

	if !ok {
		return zero, false
	}

	vv, _ := v.(V)

	return vv, true
}
