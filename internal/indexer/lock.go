package indexer

import (
	"errors"
	"sync/atomic"
)

// ErrSyncInProgress is returned when a project already has a run going.
var ErrSyncInProgress = errors.New("a sync is already running for this project")

// IndexLock is a non-blocking lock that keeps a long-lived process from
// starting two runs against the same project at once.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently taken.
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
