package geogit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.Go(context.Background(), func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}))
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.NoError(t, p.Close())
}

func TestPoolClose(t *testing.T) {
	p := NewPool(1)

	var ran atomic.Bool
	require.NoError(t, p.Go(context.Background(), func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	}))

	require.NoError(t, p.Close())
	assert.True(t, ran.Load(), "Close waits for running work")
	assert.ErrorIs(t, p.Go(context.Background(), func() {}), ErrPoolClosed)
}

func TestPoolGoCancelled(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	require.NoError(t, p.Go(context.Background(), func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Go(ctx, func() {}), context.DeadlineExceeded)
	close(release)
}

func TestPoolIdle(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	resumed := make(chan struct{})
	require.NoError(t, p.Go(context.Background(), func() {
		p.Idle(func() { <-release })
		close(resumed)
	}))

	// the idle function does not hold the only worker
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ran := make(chan struct{})
	require.NoError(t, p.Go(ctx, func() { close(ran) }))
	<-ran

	close(release)
	select {
	case <-resumed:
	case <-time.After(5 * time.Second):
		t.Fatal("idle function did not get a worker back")
	}
}

func TestDefaultPool(t *testing.T) {
	assert.Same(t, DefaultPool(), DefaultPool())
}
