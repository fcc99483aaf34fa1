// Package filelock writes output files (assembled images, memory dumps)
// so that concurrent thingamajig processes never interleave or expose a
// half-written file.
package filelock

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultRetryDelay is how often Acquire retries a contended lock.
const DefaultRetryDelay = 25 * time.Millisecond

// Lock is an advisory lock guarding one output path. The lock file lives
// next to the target as "<target>.lock".
type Lock struct {
	flock  *flock.Flock
	target string
}

// ForPath returns the lock that guards target.
func ForPath(target string) *Lock {
	return &Lock{
		flock:  flock.New(target + ".lock"),
		target: target,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Acquire blocks until the lock is held or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", l.target, err)
	}
	ok, err := l.flock.TryLockContext(ctx, DefaultRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.target, err)
	}
	if !ok {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.target, ctx.Err())
	}
	return nil
}

// TryAcquire takes the lock without blocking and reports whether it succeeded.
func (l *Lock) TryAcquire() (bool, error) {
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", l.target, err)
	}
	return ok, nil
}

// Release drops the lock. The lock file is left in place: removing it
// would let a waiter and a new opener lock different inodes.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.target, err)
	}
	return nil
}

// AtomicWrite replaces path with data via a temp file in the same
// directory and a rename. Readers see either the old file or the new one.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	return atomicWrite(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// LockAndWrite locks path, writes data atomically and unlocks.
func LockAndWrite(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return WriteFunc(ctx, path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFunc locks path and atomically replaces it with whatever fn writes.
// If fn fails the existing file is left untouched.
func WriteFunc(ctx context.Context, path string, perm os.FileMode, fn func(io.Writer) error) error {
	lock := ForPath(path)
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()

	return atomicWrite(path, perm, fn)
}

func atomicWrite(path string, perm os.FileMode, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := fn(bw); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	committed = true
	return nil
}
