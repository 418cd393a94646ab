package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/indexer/registry"
	"github.com/quoteindex/quoteindex/internal/searcher/cache"
	"github.com/quoteindex/quoteindex/internal/storage"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

// Load reads the latest index snapshot and the word-ID snapshot written by
// the same build, then returns an engine that fetches documents from the same
// backend. A newer word-ID snapshot without a matching index is ignored.
func Load(ctx context.Context, backend storage.Backend, opts ...Option) (*Engine, error) {
	var idx index.Inverted
	indexKey, err := backend.LoadLatestSnapshot(ctx, storage.IndexSnapshot, &idx)
	if err != nil {
		return nil, fmt.Errorf("loading index snapshot: %w", err)
	}
	wordsKey, ok := storage.PairedKey(indexKey, storage.IndexSnapshot, storage.WordIDsSnapshot)
	if !ok {
		return nil, apperrors.Invalidf("index snapshot %s has no build timestamp", indexKey)
	}
	words := registry.New()
	if _, err := backend.LoadLatestSnapshot(ctx, wordsKey, words); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundf("no word-id snapshot paired with %s", indexKey)
		}
		return nil, fmt.Errorf("loading word-id snapshot %s: %w", wordsKey, err)
	}
	return New(words, idx, backend, opts...), nil
}

const sessionKey = "engine"

// Session hands out a loaded Engine, reloading snapshots once the cached one
// expires. There is no invalidation on write.
type Session struct {
	backend storage.Backend
	cache   *cache.Cache[*Engine]
	opts    []Option
}

func NewSession(backend storage.Backend, c *cache.Cache[*Engine], opts ...Option) *Session {
	return &Session{backend: backend, cache: c, opts: opts}
}

// Engine returns the cached engine or loads a new one.
func (s *Session) Engine(ctx context.Context) (*Engine, error) {
	return s.cache.GetOrCompute(ctx, sessionKey, func(ctx context.Context) (*Engine, error) {
		return Load(ctx, s.backend, s.opts...)
	})
}

// Refresh drops the cached engine so the next call reloads.
func (s *Session) Refresh() {
	s.cache.Remove(sessionKey)
}
