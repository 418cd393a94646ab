package cache

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

type counter struct{ n atomic.Int64 }

func (c *counter) Inc() { c.n.Add(1) }

func TestGetOrComputeCachesValue(t *testing.T) {
	hits, misses := &counter{}, &counter{}
	c := New[int]("test", 4, time.Hour, WithCounters(hits, misses))
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	assert.Equal(t, 1, calls)
	h, m := c.Stats()
	assert.Equal(t, int64(1), h)
	assert.Equal(t, int64(1), m)
	assert.Equal(t, int64(1), hits.n.Load())
	assert.Equal(t, int64(1), misses.n.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New[string]("test", 4, time.Hour)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrCompute(ctx, "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompute(ctx, "k", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestEntriesExpire(t *testing.T) {
	c := New[int]("test", 4, 20*time.Millisecond)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	time.Sleep(50 * time.Millisecond)
	v, err = c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New[int]("test", 2, time.Hour)
	ctx := context.Background()
	for i, k := range []string{"a", "b", "c"} {
		_, err := c.GetOrCompute(ctx, k, func(context.Context) (int, error) { return i, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestConcurrentMissesShareComputation(t *testing.T) {
	c := New[int]("test", 4, time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestCancelledCallerDoesNotFailWaiters(t *testing.T) {
	c := New[int]("test", 4, time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	var computeErr error
	compute := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		computeErr = ctx.Err()
		return 7, nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctxA, "k", compute)
		errA <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "k", compute)
		resB <- result{v, err}
	}()
	time.Sleep(10 * time.Millisecond)

	cancelA()
	err := <-errA
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "waiting for test/k")

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, 7, got.v)
	assert.NoError(t, computeErr)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestComputeTimeoutBoundsDetachedWork(t *testing.T) {
	c := New[int]("test", 4, time.Hour, WithComputeTimeout(20*time.Millisecond))
	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Len())
}
