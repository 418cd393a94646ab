package main

import (
	"context"
	"fmt"

	"github.com/quoteindex/quoteindex/internal/indexer/ledger"
	"github.com/quoteindex/quoteindex/internal/searcher/query"
	"github.com/quoteindex/quoteindex/pkg/health"
	"github.com/quoteindex/quoteindex/pkg/resilience"
)

type engineSource interface {
	Engine(ctx context.Context) (*query.Engine, error)
}

// indexCheck is down until a loaded index is available.
func indexCheck(s engineSource) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		e, err := s.Engine(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d words across %d documents", e.Words(), e.Documents()),
		}
	}
}

type breakerSource interface {
	BreakerState() (resilience.State, bool)
}

// breakerCheck reports degraded while the object-store breaker is not
// closed. The breaker feeds its own metric on every transition.
func breakerCheck(b breakerSource) health.Check {
	return func(context.Context) health.ComponentHealth {
		state, _ := b.BreakerState()
		if state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit breaker " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}

type latestBuild interface {
	Latest(ctx context.Context) (*ledger.Build, error)
}

// ledgerCheck reports the most recent recorded build. The ledger is
// optional, so failures only degrade.
func ledgerCheck(l latestBuild) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		b, err := l.Latest(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("last build %s at %s", b.IndexKey, b.FinishedAt.UTC().Format("2006-01-02T15:04:05Z")),
		}
	}
}
