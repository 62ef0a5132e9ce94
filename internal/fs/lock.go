package fs

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by [Locker.TryLock] when the lock is held by
// another process.
var ErrWouldBlock = errors.New("lock would block")

// errInodeMismatch is an internal sentinel indicating the lock file was
// replaced between open and flock. Callers retry.
var errInodeMismatch = errors.New("inode mismatch")

// Locker provides exclusive file-based locking using flock(2).
//
// flock is advisory and applies to an inode, not a pathname, so all
// cooperating processes must take the lock for it to have effect. Prefer a
// dedicated lock file that is stable on disk and never replace or unlink it
// while locks may be held.
//
// Locker verifies that the descriptor it locked still refers to the file
// currently at path at the moment the lock is acquired, protecting the
// open-to-lock window against concurrent replacement.
//
// This implementation is Unix-only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that uses the given filesystem. Custom [FS]
// implementations must return real OS descriptors from [File.Fd] and
// Stat results whose Sys() is a *syscall.Stat_t.
func NewLocker(fsys FS) *Locker {
	return &Locker{
		fs:    fsys,
		flock: unix.Flock,
	}
}

// Lock represents a held file lock. Call [Lock.Close] to release it.
type Lock struct {
	mu   sync.Mutex
	file File
}

// Close releases the lock and closes the underlying file. Safe to call more
// than once.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	file := l.file
	l.file = nil

	// Closing the descriptor drops the flock; the explicit unlock is for
	// custom flock implementations in tests.
	_ = flockRetry(int(file.Fd()), unix.LOCK_UN)

	return file.Close()
}

// TryLock attempts to acquire an exclusive lock on the file at path without
// blocking, creating the file if needed. Returns [ErrWouldBlock] if another
// process holds the lock.
func (l *Locker) TryLock(path string) (*Lock, error) {
	for {
		lock, err := l.tryLockOnce(path)
		if errors.Is(err, errInodeMismatch) {
			continue
		}

		return lock, err
	}
}

func (l *Locker) tryLockOnce(path string) (*Lock, error) {
	file, err := l.fs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	err = l.tryFlock(int(file.Fd()))
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	ok, err := l.sameInode(file, path)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	if !ok {
		// The lock file was replaced while we were acquiring; the inode we
		// locked no longer guards the pathname.
		_ = file.Close()

		return nil, errInodeMismatch
	}

	return &Lock{file: file}, nil
}

func (l *Locker) tryFlock(fd int) error {
	err := flockWith(l.flock, fd, unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return ErrWouldBlock
		}

		return fmt.Errorf("flock: %w", err)
	}

	return nil
}

// sameInode reports whether file still refers to the file currently at path.
// A missing path counts as a mismatch (the lock file was unlinked).
func (l *Locker) sameInode(file File, path string) (bool, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat fd: %w", err)
	}

	pathInfo, err := l.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat path: %w", err)
	}

	fileStat, ok := fileInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, errors.New("fd Stat does not expose *syscall.Stat_t")
	}

	pathStat, ok := pathInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, errors.New("path Stat does not expose *syscall.Stat_t")
	}

	return fileStat.Dev == pathStat.Dev && fileStat.Ino == pathStat.Ino, nil
}

func flockRetry(fd int, how int) error {
	return flockWith(unix.Flock, fd, how)
}

// flockWith retries on EINTR, which flock can return on signal delivery.
func flockWith(flock func(fd int, how int) error, fd int, how int) error {
	for {
		err := flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
