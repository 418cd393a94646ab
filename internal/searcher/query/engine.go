// Package query answers word lookups against a loaded, read-only index and
// word-ID registry, fetching matching documents from storage.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/indexer/registry"
	"github.com/quoteindex/quoteindex/internal/indexer/tokenizer"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
	"github.com/quoteindex/quoteindex/pkg/logger"
)

// Fetcher returns the raw text of a document.
type Fetcher interface {
	FetchDocument(ctx context.Context, id string) (string, error)
}

// Engine is safe for concurrent use; the index and registry are never
// mutated after construction.
type Engine struct {
	words  *registry.WordIDs
	index  index.Inverted
	docs   Fetcher
	all    []int
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand fixes the random source used for sampling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func New(words *registry.WordIDs, idx index.Inverted, docs Fetcher, opts ...Option) *Engine {
	e := &Engine{
		words:  words,
		index:  idx,
		docs:   docs,
		all:    idx.DocIDs(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: slog.Default().With("component", "query-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Words returns the number of distinct words the engine can resolve.
func (e *Engine) Words() int {
	return e.words.Len()
}

// Documents returns the number of distinct documents referenced by the index.
func (e *Engine) Documents() int {
	return len(e.all)
}

// Query returns up to limit distinct document texts containing word. The
// word is normalised the same way the indexer normalises tokens. An unknown
// word yields an empty result and no error. When more candidates exist than
// limit, limit of them are drawn uniformly without replacement; a document
// listed several times is proportionally more likely to be drawn. A failed
// fetch is skipped unless every fetch fails.
func (e *Engine) Query(ctx context.Context, word string, limit int) ([]string, error) {
	log := logger.FromContext(ctx)
	token := tokenizer.Normalize(word)
	if token == "" {
		return []string{}, nil
	}
	wordID, ok := e.words.Lookup(token)
	if !ok {
		log.Debug("unknown word", "word", token)
		return []string{}, nil
	}
	candidates := e.index.Lookup(wordID)
	if len(candidates) == 0 {
		return []string{}, nil
	}
	if limit < 1 {
		limit = 1
	}

	selected := e.sample(candidates, limit)
	results := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	var firstErr error
	for _, id := range selected {
		body, err := e.docs.FetchDocument(ctx, strconv.Itoa(id))
		if err != nil {
			log.Warn("document fetch failed", "doc_id", id, "word", token, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, dup := seen[body]; dup {
			continue
		}
		seen[body] = struct{}{}
		results = append(results, body)
	}
	if len(results) == 0 && firstErr != nil {
		return nil, fmt.Errorf("fetching documents for %q: %w", token, firstErr)
	}
	return results, nil
}

// QueryRandom returns a uniformly chosen document among those referenced by
// the index.
func (e *Engine) QueryRandom(ctx context.Context) (string, error) {
	if len(e.all) == 0 {
		return "", apperrors.NotFoundf("index references no documents")
	}
	e.mu.Lock()
	id := e.all[e.rng.IntN(len(e.all))]
	e.mu.Unlock()
	return e.docs.FetchDocument(ctx, strconv.Itoa(id))
}

func (e *Engine) sample(candidates []int, limit int) []int {
	if limit >= len(candidates) {
		return candidates
	}
	e.mu.Lock()
	perm := e.rng.Perm(len(candidates))
	e.mu.Unlock()
	out := make([]int, limit)
	for i := range out {
		out[i] = candidates[perm[i]]
	}
	return out
}
