// Package consumer rebuilds the index when a quote.submitted event arrives.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quoteindex/quoteindex/internal/events"
	"github.com/quoteindex/quoteindex/internal/indexer"
	"github.com/quoteindex/quoteindex/pkg/kafka"
)

// Rebuilder is satisfied by *indexer.Engine.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*indexer.BuildReport, error)
}

// HandleQuoteSubmitted returns a handler that runs a full rebuild for every
// quote.submitted event. Malformed payloads are logged and acknowledged; a
// failed rebuild leaves the message uncommitted.
func HandleQuoteSubmitted(engine Rebuilder) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[events.QuoteSubmitted](value)
		if err != nil {
			logger.Error("failed to decode quote.submitted event", "error", err, "key", string(key))
			return nil
		}
		logger.Debug("quote submitted, rebuilding", "doc_id", event.DocumentID, "event_id", event.EventID)
		report, err := engine.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("rebuilding after document %d: %w", event.DocumentID, err)
		}
		logger.Info("index rebuilt after submission",
			"doc_id", event.DocumentID,
			"words", report.Words,
			"index_key", report.IndexKey,
		)
		return nil
	}
}
