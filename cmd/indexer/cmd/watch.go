package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quoteindex/quoteindex/internal/indexer/consumer"
	"github.com/quoteindex/quoteindex/pkg/kafka"
	"github.com/quoteindex/quoteindex/pkg/metrics"
)

func newWatchCmd(g *globals) *cobra.Command {
	var initial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the index whenever a quote is submitted",
		Long: `Consume quote.submitted events from Kafka and run a full rebuild for
each one. Requires kafka.enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.cfg
			if !cfg.Kafka.Enabled {
				return errors.New("watch requires kafka.enabled")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New(nil)
			if cfg.Metrics.Enabled {
				shutdown := m.StartServer(cfg.Metrics.Port)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = shutdown(shutdownCtx)
				}()
			}

			p, err := newPipeline(ctx, cfg, m)
			if err != nil {
				return err
			}
			defer p.Close()

			if initial {
				if _, err := p.engine.Rebuild(ctx); err != nil {
					return fmt.Errorf("initial rebuild: %w", err)
				}
			}

			c := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QuoteSubmitted, consumer.HandleQuoteSubmitted(p.engine))
			slog.Info("indexer watching for submissions",
				"topic", cfg.Kafka.Topics.QuoteSubmitted,
				"group", cfg.Kafka.ConsumerGroup,
			)
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consumer: %w", err)
			}
			slog.Info("indexer stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&initial, "initial", false, "Run one rebuild before consuming")
	return cmd
}
