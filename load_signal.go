package main

import (
	"context"
	"sync"
)

// LoadSignal tracks how many loads a session has finished, successfully or
// not, and lets other goroutines wait for a given count.
type LoadSignal struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
}

// NewLoadSignal creates a LoadSignal with the provided initial value.
func NewLoadSignal(initial uint64) *LoadSignal {
	ls := &LoadSignal{value: initial}
	ls.cond = sync.NewCond(&ls.mu)
	return ls
}

// Update raises the completed count and wakes waiters when it grows.
func (ls *LoadSignal) Update(n uint64) {
	ls.mu.Lock()
	if n > ls.value {
		ls.value = n
		ls.cond.Broadcast()
	}
	ls.mu.Unlock()
}

// Wait blocks until the count is >= target or ctx is done.
func (ls *LoadSignal) Wait(ctx context.Context, target uint64) error {
	stop := context.AfterFunc(ctx, func() {
		ls.mu.Lock()
		ls.cond.Broadcast()
		ls.mu.Unlock()
	})
	defer stop()

	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ls.value < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		ls.cond.Wait()
	}
	return nil
}

// Value returns the completed count.
func (ls *LoadSignal) Value() uint64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.value
}
