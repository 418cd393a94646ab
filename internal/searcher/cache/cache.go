// Package cache is a bounded, time-expiring cache with get-or-compute
// semantics. Concurrent misses on one key share a single computation.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Counter is satisfied by prometheus.Counter.
type Counter interface {
	Inc()
}

type Cache[V any] struct {
	name   string
	lru    *expirable.LRU[string, V]
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
	onHit  Counter
	onMiss Counter

	computeTimeout time.Duration
}

// DefaultComputeTimeout bounds a shared computation once it no longer follows
// any caller's cancellation.
const DefaultComputeTimeout = 30 * time.Second

// Option configures a Cache.
type Option func(*options)

type options struct {
	hits, misses   Counter
	computeTimeout time.Duration
}

// WithComputeTimeout overrides DefaultComputeTimeout.
func WithComputeTimeout(d time.Duration) Option {
	return func(o *options) { o.computeTimeout = d }
}

// WithCounters mirrors hit and miss counts into external counters.
func WithCounters(hits, misses Counter) Option {
	return func(o *options) {
		o.hits = hits
		o.misses = misses
	}
}

// New returns a cache holding at most capacity entries, each for at most ttl.
func New[V any](name string, capacity int, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{computeTimeout: DefaultComputeTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		name:   name,
		lru:    expirable.NewLRU[string, V](capacity, nil, ttl),
		logger: slog.Default().With("component", "cache", "cache", name),
		onHit:  o.hits,
		onMiss: o.misses,

		computeTimeout: o.computeTimeout,
	}
}

// Get returns the live value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// GetOrCompute returns the cached value for key or stores the result of
// compute. Errors are returned to every waiter and never cached.
//
// compute runs detached from the cancellation of the caller that started it,
// bounded by the compute timeout, so one caller giving up does not fail the
// others waiting on the same key. A cancelled caller stops waiting and gets
// its context error.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.lru.Get(key); ok {
		c.hit()
		return v, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		c.miss()
		start := time.Now()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		v, err := compute(cctx)
		if err != nil {
			return v, err
		}
		c.lru.Add(key, v)
		c.logger.Info("cache entry computed", "key", key, "duration_ms", time.Since(start).Milliseconds())
		return v, nil
	})
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("waiting for %s/%s: %w", c.name, key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("computing %s/%s: %w", c.name, key, res.Err)
		}
		if res.Shared {
			c.logger.Debug("shared in-flight computation", "key", key)
		}
		return res.Val.(V), nil
	}
}

// Remove drops key.
func (c *Cache[V]) Remove(key string) {
	c.lru.Remove(key)
}

func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Stats returns hit and miss counts since creation.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache[V]) hit() {
	c.hits.Add(1)
	if c.onHit != nil {
		c.onHit.Inc()
	}
}

func (c *Cache[V]) miss() {
	c.misses.Add(1)
	if c.onMiss != nil {
		c.onMiss.Inc()
	}
}
