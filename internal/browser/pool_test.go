package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPagePoolInteractiveUsesAllSlots(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPagePool(2)
	ctx := context.Background()

	r1, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)
	r2, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.acquire(short, PriorityInteractive)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r2()
}

func TestPagePoolBackgroundLeavesHeadroom(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Pool of two leaves one background slot.
	p := newPagePool(2)
	ctx := context.Background()

	rbg, err := p.acquire(ctx, PriorityBackground)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	_, err = p.acquire(short, PriorityBackground)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The reserved slot is still there for interactive work.
	rint, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)

	rbg()
	rint()
}

func TestPagePoolBackgroundUnwindsOnTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPagePool(2)
	ctx := context.Background()

	r1, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)
	r2, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	_, err = p.acquire(short, PriorityBackground)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	r1()

	// The failed acquire must have returned its background slot.
	rbg, err := p.acquire(ctx, PriorityBackground)
	require.NoError(t, err)
	rbg()
	r2()
}

func TestPagePoolReleaseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPagePool(1)
	ctx := context.Background()

	release, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)
	release()
	release()

	// Pool of one: if the double release overcounted, this second hold
	// would wrongly let a third acquire through.
	r2, err := p.acquire(ctx, PriorityInteractive)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.acquire(short, PriorityInteractive)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	r2()
}

func TestPagePoolMinimumSize(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPagePool(0)

	release, err := p.acquire(context.Background(), PriorityBackground)
	require.NoError(t, err)
	release()
}
