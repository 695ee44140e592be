// Package lock provides per-user locking for the chat and HTTP front ends.
// Database row locks remain the source of truth; this lock only keeps one
// user's money-moving commands from racing each other inside a process.
package lock

import (
	"context"
	"sync"
	"time"
)

// DefaultWait is used by Do when the lock was created without a wait.
const DefaultWait = 5 * time.Second

// UserLock hands out one mutex per user id.
type UserLock struct {
	locks sync.Map // map[int64]*sync.Mutex
	wait  time.Duration
}

// NewUserLock creates a UserLock whose Do waits at most wait.
func NewUserLock(wait time.Duration) *UserLock {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &UserLock{wait: wait}
}

func (ul *UserLock) get(userID int64) *sync.Mutex {
	if v, ok := ul.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := ul.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// acquire waits for the user's lock until wait or ctx expires. It returns
// false if the lock was not acquired.
func (ul *UserLock) acquire(ctx context.Context, userID int64) bool {
	mu := ul.get(userID)
	if mu.TryLock() {
		return true
	}

	done := make(chan struct{})
	go func() {
		mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, ul.wait)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiter still owns a pending Lock; release it once it lands.
		go func() {
			<-done
			mu.Unlock()
		}()
		return false
	}
}

func (ul *UserLock) release(userID int64) {
	if v, ok := ul.locks.Load(userID); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// Do runs fn while holding the user's lock. It returns ErrLockTimeout if
// the lock is not acquired within the configured wait.
func (ul *UserLock) Do(ctx context.Context, userID int64, fn func() error) error {
	if !ul.acquire(ctx, userID) {
		return ErrLockTimeout
	}
	defer ul.release(userID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
