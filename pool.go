package geogit

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned when work is submitted to a closed Pool.
var ErrPoolClosed = errors.New("pool closed")

// Pool runs background work, such as diff producers, on a bounded number
// of goroutines.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool returns a pool running up to workers functions at once. A
// workers value lower than one means runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process wide pool used by operations that are
// not given one. It is created on first use and never closed.
func DefaultPool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(0)
	})

	return defaultPool
}

// Go runs fn on its own goroutine once a worker is free. It blocks while
// every worker is busy, until ctx is done. fn can give its worker up while
// it waits on its reader with Idle.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return fmt.Errorf("waiting for a worker: %w", err)
	}

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()

	return nil
}

// Idle runs wait with the worker of the calling function released, and
// takes a worker back once wait returns. It must only be called from a
// function started by Go. wait must block on something other than pool
// work, such as a reader draining a queue, so that a stalled reader does
// not hold a worker.
func (p *Pool) Idle(wait func()) {
	p.sem.Release(1)
	defer func() { _ = p.sem.Acquire(context.Background(), 1) }()

	wait()
}

// Close rejects new work and waits for the running one to return.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
