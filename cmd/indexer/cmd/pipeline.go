package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quoteindex/quoteindex/internal/events"
	"github.com/quoteindex/quoteindex/internal/indexer"
	"github.com/quoteindex/quoteindex/internal/indexer/ledger"
	"github.com/quoteindex/quoteindex/internal/storage/backend"
	"github.com/quoteindex/quoteindex/pkg/config"
	"github.com/quoteindex/quoteindex/pkg/kafka"
	"github.com/quoteindex/quoteindex/pkg/metrics"
	"github.com/quoteindex/quoteindex/pkg/postgres"
)

// pipeline is a rebuild engine plus everything that must be closed after it.
type pipeline struct {
	engine  *indexer.Engine
	handle  *backend.Handle
	closers []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			slog.Warn("cleanup failed", "error", err)
		}
	}
}

// newPipeline opens the configured backend and attaches the optional build
// ledger and event publisher.
func newPipeline(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*pipeline, error) {
	handle, err := backend.Open(ctx, cfg.Storage, backend.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	p := &pipeline{handle: handle}
	opts := []indexer.Option{indexer.WithMetrics(m)}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("connecting to build ledger: %w", err)
		}
		p.closers = append(p.closers, pg.Close)
		l := ledger.New(pg.DB)
		if err := l.EnsureSchema(ctx); err != nil {
			p.Close()
			return nil, err
		}
		opts = append(opts, indexer.WithLedger(l))
		slog.Info("build ledger enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	if cfg.Kafka.Enabled {
		submitted := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QuoteSubmitted)
		built := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
		p.closers = append(p.closers, submitted.Close, built.Close)
		opts = append(opts, indexer.WithPublisher(events.NewKafkaPublisher(submitted, built)))
		slog.Info("build events enabled", "topic", built.Topic())
	}

	p.engine = indexer.NewEngine(handle, opts...)
	return p, nil
}
