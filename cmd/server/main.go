package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/quoteindex/quoteindex/internal/auth/ratelimit"
	"github.com/quoteindex/quoteindex/internal/events"
	"github.com/quoteindex/quoteindex/internal/indexer/ledger"
	"github.com/quoteindex/quoteindex/internal/searcher/cache"
	"github.com/quoteindex/quoteindex/internal/searcher/consumer"
	"github.com/quoteindex/quoteindex/internal/searcher/handler"
	"github.com/quoteindex/quoteindex/internal/searcher/query"
	"github.com/quoteindex/quoteindex/internal/searcher/router"
	"github.com/quoteindex/quoteindex/internal/storage"
	"github.com/quoteindex/quoteindex/internal/storage/backend"
	"github.com/quoteindex/quoteindex/internal/storage/rediscache"
	"github.com/quoteindex/quoteindex/pkg/config"
	"github.com/quoteindex/quoteindex/pkg/health"
	"github.com/quoteindex/quoteindex/pkg/kafka"
	"github.com/quoteindex/quoteindex/pkg/logger"
	"github.com/quoteindex/quoteindex/pkg/metrics"
	"github.com/quoteindex/quoteindex/pkg/postgres"
	pkgredis "github.com/quoteindex/quoteindex/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("query server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting query server", "port", cfg.Server.Port, "storage_mode", cfg.Storage.Mode)
	m := metrics.New(nil)
	checker := health.NewChecker()

	handle, err := backend.Open(ctx, cfg.Storage, backend.WithMetrics(m))
	if err != nil {
		return err
	}
	if _, ok := handle.BreakerState(); ok {
		checker.Register("object_store", breakerCheck(handle))
	}

	var store storage.Backend = handle
	if cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, document cache disabled", "error", err)
		} else {
			defer rc.Close()
			store = rediscache.New(store, rc, cfg.Redis.CacheTTL)
			checker.Register("redis", health.SoftCheck(rc.Ping))
			slog.Info("document cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("build ledger unavailable", "error", err)
		} else {
			defer pg.Close()
			checker.Register("build_ledger", ledgerCheck(ledger.New(pg.DB)))
		}
	}

	engines := cache.New[*query.Engine]("session", cfg.Cache.Capacity, cfg.Cache.TTL,
		cache.WithCounters(m.SessionCacheHits, m.SessionCacheMisses))
	session := query.NewSession(store, engines)
	checker.Register("index", indexCheck(session))

	g, gctx := errgroup.WithContext(ctx)

	var publisher events.Publisher = events.Noop{}
	if cfg.Kafka.Enabled {
		submitted := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QuoteSubmitted)
		built := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
		defer submitted.Close()
		defer built.Close()
		publisher = events.NewKafkaPublisher(submitted, built)

		refresh := kafka.NewConsumer(refreshConsumerConfig(cfg.Kafka), cfg.Kafka.Topics.IndexBuilt, consumer.HandleIndexBuilt(session))
		g.Go(func() error { return refresh.Start(gctx) })
		slog.Info("submission events enabled", "topic", cfg.Kafka.Topics.QuoteSubmitted)
	}

	limiter := ratelimit.New(cfg.RateLimit.QuotesPerWindow, cfg.RateLimit.Window)
	g.Go(func() error {
		sweepLimiter(gctx, limiter, cfg.RateLimit.Window)
		return nil
	})

	h := handler.New(session, store,
		handler.WithPublisher(publisher),
		handler.WithMetrics(m),
		handler.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
	)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(h, router.Config{
			Health:         checker,
			Metrics:        m,
			Limiter:        limiter,
			LimiterWindow:  cfg.RateLimit.Window,
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("query server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// refreshConsumerConfig gives each server instance its own consumer group so
// every instance sees every index.built event.
func refreshConsumerConfig(cfg config.KafkaConfig) config.KafkaConfig {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = fmt.Sprintf("pid%d", os.Getpid())
	}
	cfg.ConsumerGroup = fmt.Sprintf("%s-server-%s", cfg.ConsumerGroup, host)
	return cfg
}

func sweepLimiter(ctx context.Context, l *ratelimit.Limiter, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter swept", "removed", n)
			}
		}
	}
}
