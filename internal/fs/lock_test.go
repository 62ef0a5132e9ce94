package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/calvinalkan/udstore/internal/fs"
)

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires Unix flock")
	}
}

func Test_TryLock_Creates_Lock_File_And_Acquires(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	path := filepath.Join(t.TempDir(), "report.lock")
	locker := fs.NewLocker(fs.NewReal())

	lock, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	defer lock.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
}

func Test_TryLock_Returns_ErrWouldBlock_When_Already_Held(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	path := filepath.Join(t.TempDir(), "report.lock")
	locker := fs.NewLocker(fs.NewReal())

	lock, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	defer lock.Close()

	// flock is per-descriptor; a second Locker simulates a second process
	// well enough only if it opens its own descriptor, which it does.
	if _, err := fs.NewLocker(fs.NewReal()).TryLock(path); !errors.Is(err, fs.ErrWouldBlock) {
		t.Fatalf("second TryLock err = %v, want ErrWouldBlock", err)
	}
}

func Test_TryLock_Succeeds_After_Close(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	path := filepath.Join(t.TempDir(), "report.lock")
	locker := fs.NewLocker(fs.NewReal())

	lock, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Close is idempotent.
	if err := lock.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	lock2, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock after Close: %v", err)
	}

	defer lock2.Close()
}

func Test_WriteFileAtomic_Replaces_Content(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	fsys := fs.NewReal()

	if err := fsys.WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	if err := fsys.WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("second WriteFileAtomic: %v", err)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(data) != "two" {
		t.Fatalf("content = %q, want \"two\"", data)
	}
}
