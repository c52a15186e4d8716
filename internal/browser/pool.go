package browser

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Priority decides which slice of the page pool a fetch may use.
type Priority int

const (
	// PriorityInteractive is the posting path: a candidate is blocked on
	// the verdict. It may use every pool slot.
	PriorityInteractive Priority = iota
	// PriorityBackground is for spot checks and sweeps. It is capped
	// below the pool size so an interactive fetch never queues behind a
	// full sweep.
	PriorityBackground
)

// pagePool bounds concurrent pages against one Chrome. Two weighted
// semaphores implement the split: every fetch holds a slot in all, and
// background work additionally holds one in bg, sized one below the
// pool (floor one).
type pagePool struct {
	all *semaphore.Weighted
	bg  *semaphore.Weighted
}

func newPagePool(size int) *pagePool {
	if size < 1 {
		size = 1
	}
	bgCap := size - 1
	if bgCap < 1 {
		bgCap = 1
	}
	return &pagePool{
		all: semaphore.NewWeighted(int64(size)),
		bg:  semaphore.NewWeighted(int64(bgCap)),
	}
}

// acquire blocks until a slot matching the priority frees up. The
// returned release is idempotent.
func (p *pagePool) acquire(ctx context.Context, pri Priority) (func(), error) {
	heldBg := false
	if pri == PriorityBackground {
		if err := p.bg.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		heldBg = true
	}
	if err := p.all.Acquire(ctx, 1); err != nil {
		if heldBg {
			p.bg.Release(1)
		}
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			p.all.Release(1)
			if heldBg {
				p.bg.Release(1)
			}
		})
	}, nil
}
