package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesSubmittedWork(t *testing.T) {
	var processed atomic.Int64
	var wg sync.WaitGroup

	pool := NewPool[int](4, 100, func(_ context.Context, _ int) error {
		processed.Add(1)
		wg.Done()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	defer func() { _ = pool.Stop(time.Second) }()

	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(i))
	}

	wg.Wait()
	assert.Equal(t, int64(n), processed.Load())

	stats := pool.Stats()
	assert.Equal(t, int64(n), stats.Submitted)
	assert.Equal(t, int64(n), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool := NewPool[string](1, 10, func(_ context.Context, _ string) error { return nil })
	err := pool.Submit("work")
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestPoolQueueFullDropsWork(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool[int](1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	defer func() {
		close(block)
		_ = pool.Stop(time.Second)
	}()

	// First item occupies the worker, second fills the queue; eventually a
	// submit must be dropped. Allow for the worker draining the first item.
	var dropped bool
	for i := 0; i < 4; i++ {
		if err := pool.Submit(i); errors.Is(err, ErrQueueFull) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped, "expected a submit to be dropped once the queue filled")
	assert.Greater(t, pool.Stats().Dropped, int64(0))
}

func TestPoolCountsFailures(t *testing.T) {
	var wg sync.WaitGroup
	pool := NewPool[int](2, 10, func(_ context.Context, v int) error {
		defer wg.Done()
		if v%2 == 0 {
			return errors.New("even numbers fail")
		}
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	defer func() { _ = pool.Stop(time.Second) }()

	wg.Add(4)
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(2), stats.Processed)
}

func TestPoolDoubleStart(t *testing.T) {
	pool := NewPool[int](1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolStopDrainsQueue(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool[int](2, 100, func(_ context.Context, _ int) error {
		processed.Add(1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(i))
	}

	require.NoError(t, pool.Stop(2*time.Second))
	assert.Equal(t, int64(20), processed.Load())

	// Submit after stop is rejected
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func TestNewPoolNilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}
