package verify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTargetLocksExclusive(t *testing.T) {
	defer goleak.VerifyNone(t)
	locks := newTargetLocks()

	release, err := locks.Acquire(context.Background(), "t1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "t1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release2, err := locks.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	release2()
}

func TestTargetLocksIndependentTargets(t *testing.T) {
	defer goleak.VerifyNone(t)
	locks := newTargetLocks()

	r1, err := locks.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	r2, err := locks.Acquire(context.Background(), "t2")
	require.NoError(t, err, "different targets must not contend")
	r1()
	r2()
}

func TestTargetLocksReleaseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	locks := newTargetLocks()

	release, err := locks.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	release()
	release()

	again, err := locks.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	again()
}

func TestTargetLocksHandoff(t *testing.T) {
	defer goleak.VerifyNone(t)
	locks := newTargetLocks()

	release, err := locks.Acquire(context.Background(), "t1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := locks.Acquire(context.Background(), "t1")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never got the lock after release")
	}
}

func TestTargetLocksTableDrainsToEmpty(t *testing.T) {
	defer goleak.VerifyNone(t)
	locks := newTargetLocks()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				release, err := locks.Acquire(context.Background(), "shared")
				if err != nil {
					return
				}
				release()
			}
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.held, "entries must be dropped once unreferenced")
}
