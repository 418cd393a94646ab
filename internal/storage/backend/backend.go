// Package backend opens the storage.Backend selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quoteindex/quoteindex/internal/storage"
	"github.com/quoteindex/quoteindex/internal/storage/local"
	"github.com/quoteindex/quoteindex/internal/storage/objectstore"
	"github.com/quoteindex/quoteindex/pkg/config"
	"github.com/quoteindex/quoteindex/pkg/metrics"
	"github.com/quoteindex/quoteindex/pkg/resilience"
)

// Handle is an opened backend. Breaker is nil in local mode.
type Handle struct {
	storage.Backend
	Mode    string
	Breaker *objectstore.Resilient
}

// BreakerState reports the object-store breaker state, or false in local
// mode.
func (h *Handle) BreakerState() (resilience.State, bool) {
	if h.Breaker == nil {
		return resilience.StateClosed, false
	}
	return h.Breaker.BreakerState(), true
}

// Option configures Open.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
}

// WithMetrics feeds object-store breaker transitions into the
// circuit_breaker_state gauge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Open builds the backend for cfg.Mode.
func Open(ctx context.Context, cfg config.StorageConfig, opts ...Option) (*Handle, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch cfg.Mode {
	case config.StorageLocal:
		store, err := local.New(cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		slog.Info("storage backend ready", "mode", cfg.Mode, "dir", cfg.LocalDir)
		return &Handle{Backend: store, Mode: cfg.Mode}, nil
	case config.StorageS3:
		client, err := objectstore.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		var ropts []objectstore.ResilientOption
		if o.metrics != nil {
			gauge := o.metrics.CircuitBreakerState
			gauge.WithLabelValues(objectstore.BreakerName).Set(float64(resilience.StateClosed))
			ropts = append(ropts, objectstore.WithBreakerListener(func(name string, from, to resilience.State) {
				gauge.WithLabelValues(name).Set(float64(to))
				slog.Info("object store breaker changed state", "name", name, "from", from.String(), "to", to.String())
			}))
		}
		resilient := objectstore.NewResilient(client, cfg, ropts...)
		slog.Info("storage backend ready", "mode", cfg.Mode, "bucket", cfg.Bucket, "region", cfg.Region)
		return &Handle{
			Backend: objectstore.New(resilient, cfg.Bucket),
			Mode:    cfg.Mode,
			Breaker: resilient,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}
