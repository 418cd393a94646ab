// Package rediscache decorates a storage.Backend with a Redis read-through
// cache for FetchDocument. Everything else passes straight through.
package rediscache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/quoteindex/quoteindex/internal/quote"
	"github.com/quoteindex/quoteindex/internal/storage"
	pkgredis "github.com/quoteindex/quoteindex/pkg/redis"
)

const keyPrefix = "quote:doc:"

// KV is the subset of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Store caches document bodies from the wrapped backend. Redis failures are
// logged and fall back to the backend.
type Store struct {
	storage.Backend
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ storage.Backend = (*Store)(nil)

func New(backend storage.Backend, kv KV, ttl time.Duration) *Store {
	return &Store{
		Backend: backend,
		kv:      kv,
		ttl:     ttl,
		logger:  slog.Default().With("component", "document-cache"),
	}
}

func (s *Store) FetchDocument(ctx context.Context, id string) (string, error) {
	key := keyPrefix + id
	body, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		s.hits.Add(1)
		return body, nil
	case !pkgredis.IsNilError(err):
		s.logger.Warn("cache get failed", "key", key, "error", err)
	}
	s.misses.Add(1)

	body, err = s.Backend.FetchDocument(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, key, body, s.ttl); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
	return body, nil
}

// AppendDocument drops cached bodies after a successful append, since a new
// document can change which key a prefix lookup resolves to.
func (s *Store) AppendDocument(ctx context.Context, q quote.Quote) (int, error) {
	id, err := s.Backend.AppendDocument(ctx, q)
	if err != nil {
		return 0, err
	}
	if _, err := s.kv.FlushByPattern(ctx, keyPrefix+"*"); err != nil {
		s.logger.Warn("cache invalidation failed", "error", err)
	}
	return id, nil
}

// Stats returns hit and miss counts since creation.
func (s *Store) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}
