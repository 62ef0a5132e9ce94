// Package invoker memoizes reflect-based method dispatch per host.
//
// Reflecting over a type and resolving its methods is cheap to do once and
// wasteful to do per call. invoker compiles a host's method table on first
// use and parks it in the host's user data, so the table lives exactly as
// long as the host does and never needs explicit invalidation.
//
//	cache := invoker.NewCache()
//
//	out, err := cache.Call(obj, "Greet", "world")
//
// A Cache is safe for concurrent use; the table is compiled at most once per
// host even under races. Hosts that redirect their storage (see
// [userdata.Container]) share the table of their holder, and the table is
// compiled from the holder.
package invoker

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/calvinalkan/udstore/pkg/userdata"
)

// Sentinel errors returned by [Cache.Call]. All are caller programming
// errors; check with [errors.Is].
var (
	// ErrUnknownMethod indicates the host's type has no exported method with
	// the requested name.
	ErrUnknownMethod = errors.New("invoker: unknown method")

	// ErrArgCount indicates the wrong number of arguments for the method.
	ErrArgCount = errors.New("invoker: wrong argument count")

	// ErrArgType indicates an argument not assignable to the method's
	// parameter type.
	ErrArgType = errors.New("invoker: wrong argument type")

	// ErrVariadic indicates a variadic method, which Call does not support.
	ErrVariadic = errors.New("invoker: variadic methods are not supported")
)

// Cache compiles and memoizes one method table per host.
//
// Each Cache owns its own slot, so independent caches on the same host do
// not interfere. The zero Cache is not usable; construct with [NewCache].
type Cache struct {
	slot userdata.Slot[*methodSet]
}

// NewCache returns a Cache with a freshly allocated slot.
func NewCache() *Cache {
	return &Cache{slot: userdata.NewSlot[*methodSet]()}
}

// methodSet is the compiled payload stored in a host's user data. The
// userdata package treats it as opaque.
type methodSet struct {
	methods map[string]reflect.Value
}

// compileMethodSet builds the table of subject's exported methods with their
// receivers already bound. It runs under the storage's write lock, so it
// does nothing but reflection.
func compileMethodSet(subject any) (*methodSet, error) {
	rv := reflect.ValueOf(subject)
	rt := rv.Type()

	ms := &methodSet{methods: make(map[string]reflect.Value, rt.NumMethod())}

	for i := range rt.NumMethod() {
		ms.methods[rt.Method(i).Name] = rv.Method(i)
	}

	return ms, nil
}

// Call invokes the named exported method on host's resolved source, passing
// args positionally and returning the method's results.
//
// The method table is compiled on the first Call for a host and reused for
// every later one.
func (c *Cache) Call(host any, method string, args ...any) ([]any, error) {
	h, err := userdata.Bind(host)
	if err != nil {
		return nil, err
	}

	ms, err := userdata.GetOrSetFunc(h, c.slot, h.Source(), compileMethodSet)
	if err != nil {
		return nil, err
	}

	fn, ok := ms.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %T", ErrUnknownMethod, method, h.Source())
	}

	in, err := buildArgs(fn.Type(), method, args)
	if err != nil {
		return nil, err
	}

	out := fn.Call(in)

	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}

	return results, nil
}

func buildArgs(ft reflect.Type, method string, args []any) ([]reflect.Value, error) {
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%w: %s", ErrVariadic, method)
	}

	if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, method, ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))

	for i, a := range args {
		pt := ft.In(i)

		if a == nil {
			switch pt.Kind() {
			case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
				reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
				in[i] = reflect.Zero(pt)

				continue
			default:
				return nil, fmt.Errorf("%w: %s argument %d is nil, want %s", ErrArgType, method, i, pt)
			}
		}

		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(pt) {
			return nil, fmt.Errorf("%w: %s argument %d is %s, want %s", ErrArgType, method, i, av.Type(), pt)
		}

		in[i] = av
	}

	return in, nil
}
