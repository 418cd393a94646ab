package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/indexer/ledger"
	"github.com/quoteindex/quoteindex/internal/indexer/registry"
	"github.com/quoteindex/quoteindex/internal/searcher/query"
	"github.com/quoteindex/quoteindex/pkg/config"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
	"github.com/quoteindex/quoteindex/pkg/health"
	"github.com/quoteindex/quoteindex/pkg/resilience"
)

type stubEngines struct {
	engine *query.Engine
	err    error
}

func (s stubEngines) Engine(context.Context) (*query.Engine, error) { return s.engine, s.err }

func TestIndexCheck(t *testing.T) {
	words := registry.New()
	words.Resolve("alpha")
	e := query.New(words, index.Inverted{"0": {1, 2}}, nil)

	got := indexCheck(stubEngines{engine: e})(context.Background())
	assert.Equal(t, health.StatusUp, got.Status)
	assert.Equal(t, "1 words across 2 documents", got.Message)

	got = indexCheck(stubEngines{err: apperrors.NotFoundf("no snapshot")})(context.Background())
	assert.Equal(t, health.StatusDown, got.Status)
}

type stubBreaker resilience.State

func (s stubBreaker) BreakerState() (resilience.State, bool) { return resilience.State(s), true }

func TestBreakerCheck(t *testing.T) {
	got := breakerCheck(stubBreaker(resilience.StateOpen))(context.Background())
	assert.Equal(t, health.StatusDegraded, got.Status)
	assert.Equal(t, "circuit breaker open", got.Message)

	got = breakerCheck(stubBreaker(resilience.StateHalfOpen))(context.Background())
	assert.Equal(t, health.StatusDegraded, got.Status)
	assert.Equal(t, "circuit breaker half-open", got.Message)

	got = breakerCheck(stubBreaker(resilience.StateClosed))(context.Background())
	assert.Equal(t, health.StatusUp, got.Status)
}

type stubLedger struct {
	build *ledger.Build
	err   error
}

func (s stubLedger) Latest(context.Context) (*ledger.Build, error) { return s.build, s.err }

func TestLedgerCheck(t *testing.T) {
	b := &ledger.Build{IndexKey: "index-2021-05-27--09:00.json", FinishedAt: time.Date(2021, 5, 27, 9, 0, 0, 0, time.UTC)}
	got := ledgerCheck(stubLedger{build: b})(context.Background())
	assert.Equal(t, health.StatusUp, got.Status)
	assert.Equal(t, "last build index-2021-05-27--09:00.json at 2021-05-27T09:00:00Z", got.Message)

	got = ledgerCheck(stubLedger{err: apperrors.NotFoundf("no builds")})(context.Background())
	assert.Equal(t, health.StatusDegraded, got.Status)
}

func TestRefreshConsumerConfigUsesPerInstanceGroup(t *testing.T) {
	got := refreshConsumerConfig(config.KafkaConfig{ConsumerGroup: "quoteindex"})
	assert.Contains(t, got.ConsumerGroup, "quoteindex-server-")
}
