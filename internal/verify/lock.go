package verify

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// targetLocks serializes verification per target id. Two workers examining
// the same target concurrently could both pass and double-post; the lock
// makes the check-then-post window exclusive per target.
type targetLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newTargetLocks() *targetLocks {
	return &targetLocks{held: make(map[string]*lockEntry)}
}

// Acquire blocks until the target's lock is free or ctx ends. The returned
// release is idempotent; callers defer it immediately so every verification
// path, including panics unwinding through the caller, releases the lock.
func (l *targetLocks) Acquire(ctx context.Context, targetID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.held[targetID]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.held[targetID] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.drop(targetID, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.drop(targetID, e)
		})
	}, nil
}

func (l *targetLocks) drop(targetID string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.held, targetID)
	}
	l.mu.Unlock()
}
