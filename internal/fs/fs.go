// Package fs provides the small filesystem surface the ud tooling needs:
// an injectable [FS] interface, the [Real] implementation, atomic file
// replacement, and an flock-based [Locker] for report directories.
package fs

import (
	"bytes"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// File represents an OS-backed open file descriptor.
//
// Satisfied by [os.File]. Implementations must provide a real descriptor via
// [File.Fd], usable with flock, until the file is closed.
type File interface {
	io.ReadWriteCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)
}

// FS is the filesystem surface used by the tooling. Implementations must be
// safe for concurrent use.
type FS interface {
	// OpenFile behaves like [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat behaves like [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// ReadFile behaves like [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces the file at path with data via a temp file
	// and rename, so readers never observe a partial write.
	WriteFileAtomic(path string, data []byte) error

	// MkdirAll behaves like [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error
}

// Real implements [FS] using the real filesystem. All methods are
// passthroughs to [os], except WriteFileAtomic which goes through
// [atomic.WriteFile].
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomic replaces path with data using [atomic.WriteFile]
// (temp file + rename).
func (r *Real) WriteFileAtomic(path string, data []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
