package userdata

import "errors"

// Sentinel errors returned by [Bind] and [Handle.CopyTo].
//
// Callers should use [errors.Is] to check error types. Both indicate caller
// programming errors and are not recoverable locally.
var (
	// ErrNilHost indicates a nil host, either an untyped nil or a typed nil
	// pointer.
	ErrNilHost = errors.New("userdata: nil host")

	// ErrNotPointer indicates a host that is not a pointer. Storage is keyed
	// by object identity, which only pointer hosts have.
	ErrNotPointer = errors.New("userdata: host is not a pointer")
)
