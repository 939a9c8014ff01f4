package booking

import (
	"context"
	"sync"
	"time"
)

// resourceLocks serializes booking attempts per resource. Acquire waits a
// bounded time so a stuck booking cannot queue requests indefinitely;
// callers translate a timeout into a retryable lock error.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[string]chan struct{})}
}

func (rl *resourceLocks) lockChan(resourceID string) chan struct{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	ch, ok := rl.locks[resourceID]
	if !ok {
		ch = make(chan struct{}, 1)
		rl.locks[resourceID] = ch
	}
	return ch
}

// Acquire takes the resource lock, waiting at most maxWait. It returns
// false when the wait expires or the context is cancelled.
func (rl *resourceLocks) Acquire(ctx context.Context, resourceID string, maxWait time.Duration) bool {
	ch := rl.lockChan(resourceID)

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Release frees the resource lock. Must follow a successful Acquire.
func (rl *resourceLocks) Release(resourceID string) {
	<-rl.lockChan(resourceID)
}
