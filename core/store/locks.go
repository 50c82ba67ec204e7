package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// AdvisoryLock is a file-backed exclusive lock. The cycle gate and the
// subsequent link insert run under one lock per organization so that two
// concurrent proposals cannot each pass validation and jointly close a
// cycle.
type AdvisoryLock struct {
	path string
	file *os.File
}

// NewAdvisoryLock creates a lock file handle under lockDir.
func NewAdvisoryLock(lockDir, name string) (*AdvisoryLock, error) {
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, err
	}

	return &AdvisoryLock{
		path: filepath.Join(lockDir, name+".lock"),
	}, nil
}

// Acquire blocks until the lock is held, the timeout elapses, or ctx is
// cancelled.
func (l *AdvisoryLock) Acquire(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock acquisition timeout: %s", l.path)
		}

		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
		if err != nil {
			return err
		}

		err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.file = file
			return nil
		}

		file.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Release unlocks and closes the lock file.
func (l *AdvisoryLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return err
	}
	return closeErr
}

// IsHeld reports whether the lock is currently held.
func (l *AdvisoryLock) IsHeld() bool {
	return l.file != nil
}

// LockManager hands out named advisory locks, one per scoping key.
type LockManager struct {
	mu      sync.Mutex
	lockDir string
	locks   map[string]*AdvisoryLock
}

// NewLockManager creates a manager rooted at lockDir.
func NewLockManager(lockDir string) *LockManager {
	return &LockManager{
		lockDir: lockDir,
		locks:   make(map[string]*AdvisoryLock),
	}
}

// Acquire takes the named lock, creating it on first use.
func (lm *LockManager) Acquire(ctx context.Context, name string, timeout time.Duration) error {
	lock, err := NewAdvisoryLock(lm.lockDir, name)
	if err != nil {
		return err
	}

	if err := lock.Acquire(ctx, timeout); err != nil {
		return err
	}

	lm.mu.Lock()
	lm.locks[name] = lock
	lm.mu.Unlock()
	return nil
}

// Release drops the named lock if held.
func (lm *LockManager) Release(name string) error {
	lm.mu.Lock()
	lock, ok := lm.locks[name]
	delete(lm.locks, name)
	lm.mu.Unlock()

	if !ok {
		return nil
	}
	return lock.Release()
}

// ReleaseAll drops every held lock, returning the first error seen.
func (lm *LockManager) ReleaseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var firstErr error
	for name, lock := range lm.locks {
		if err := lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(lm.locks, name)
	}
	return firstErr
}
