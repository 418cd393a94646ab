// Package consumer drops the query server's cached index when an
// index.built event arrives, so the next lookup loads the new snapshots.
package consumer

import (
	"context"
	"log/slog"

	"github.com/quoteindex/quoteindex/internal/events"
	"github.com/quoteindex/quoteindex/pkg/kafka"
)

// Refresher is satisfied by *query.Session.
type Refresher interface {
	Refresh()
}

// HandleIndexBuilt returns a handler that refreshes the session for every
// index.built event. Malformed payloads are logged and acknowledged.
func HandleIndexBuilt(session Refresher) kafka.MessageHandler {
	logger := slog.Default().With("component", "refresh-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[events.IndexBuilt](value)
		if err != nil {
			logger.Error("failed to decode index.built event", "error", err, "key", string(key))
			return nil
		}
		session.Refresh()
		logger.Info("index session refreshed",
			"index_key", event.IndexKey,
			"trace_id", event.TraceID,
			"words", event.Words,
		)
		return nil
	}
}
