package rediscache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteindex/quoteindex/internal/quote"
	"github.com/quoteindex/quoteindex/internal/storage/local"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func newBackend(t *testing.T) *local.Store {
	t.Helper()
	s, err := local.New(t.TempDir())
	require.NoError(t, err)
	_, err = s.AppendDocument(context.Background(), quote.Quote{Content: "first"})
	require.NoError(t, err)
	return s
}

func TestFetchReadsThrough(t *testing.T) {
	kv := newFakeKV()
	s := New(newBackend(t), kv, time.Hour)
	ctx := context.Background()

	got, err := s.FetchDocument(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "'first'\nAnonymous", got)
	assert.Equal(t, got, kv.data["quote:doc:1"])
	assert.Equal(t, time.Hour, kv.ttls["quote:doc:1"])

	kv.data["quote:doc:1"] = "cached"
	got, err = s.FetchDocument(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "cached", got)

	hits, misses := s.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestFetchFallsBackWhenRedisFails(t *testing.T) {
	kv := newFakeKV()
	kv.failGet = true
	s := New(newBackend(t), kv, time.Hour)

	got, err := s.FetchDocument(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "'first'\nAnonymous", got)
}

func TestFetchMissingIsNotCached(t *testing.T) {
	kv := newFakeKV()
	s := New(newBackend(t), kv, time.Hour)

	_, err := s.FetchDocument(context.Background(), "7")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotContains(t, kv.data, "quote:doc:7")
}

func TestAppendInvalidatesCache(t *testing.T) {
	kv := newFakeKV()
	s := New(newBackend(t), kv, time.Hour)
	ctx := context.Background()

	_, err := s.FetchDocument(ctx, "1")
	require.NoError(t, err)
	kv.data["unrelated"] = "keep"

	id, err := s.AppendDocument(ctx, quote.Quote{Content: "second"})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.NotContains(t, kv.data, "quote:doc:1")
	assert.Contains(t, kv.data, "unrelated")
}
