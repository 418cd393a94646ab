// Package ledger keeps a PostgreSQL history of completed index builds.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_builds (
	id            BIGSERIAL PRIMARY KEY,
	trace_id      TEXT        NOT NULL,
	index_key     TEXT        NOT NULL,
	word_ids_key  TEXT        NOT NULL,
	words         INTEGER     NOT NULL,
	documents     INTEGER     NOT NULL,
	lines         INTEGER     NOT NULL,
	postings      INTEGER     NOT NULL,
	duration_ms   BIGINT      NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Build is one ledger row.
type Build struct {
	ID         int64
	TraceID    string
	IndexKey   string
	WordIDsKey string
	Words      int
	Documents  int
	Lines      int
	Postings   int
	Duration   time.Duration
	FinishedAt time.Time
}

type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB) *Ledger {
	return &Ledger{
		db:     db,
		logger: slog.Default().With("component", "build-ledger"),
	}
}

// EnsureSchema creates the table when missing.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating index_builds table: %w", err)
	}
	return nil
}

// RecordBuild inserts b and returns the row ID. FinishedAt defaults to now.
func (l *Ledger) RecordBuild(ctx context.Context, b Build) (int64, error) {
	if b.FinishedAt.IsZero() {
		b.FinishedAt = time.Now().UTC()
	}
	var id int64
	err := l.db.QueryRowContext(ctx,
		`INSERT INTO index_builds
			(trace_id, index_key, word_ids_key, words, documents, lines, postings, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		b.TraceID, b.IndexKey, b.WordIDsKey, b.Words, b.Documents, b.Lines, b.Postings,
		b.Duration.Milliseconds(), b.FinishedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("recording build: %w", err)
	}
	l.logger.Info("build recorded", "id", id, "index_key", b.IndexKey)
	return id, nil
}

// Latest returns the most recently finished build.
func (l *Ledger) Latest(ctx context.Context) (*Build, error) {
	var b Build
	var durationMS int64
	err := l.db.QueryRowContext(ctx,
		`SELECT id, trace_id, index_key, word_ids_key, words, documents, lines, postings, duration_ms, finished_at
		FROM index_builds
		ORDER BY finished_at DESC, id DESC
		LIMIT 1`,
	).Scan(&b.ID, &b.TraceID, &b.IndexKey, &b.WordIDsKey, &b.Words, &b.Documents, &b.Lines, &b.Postings, &durationMS, &b.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundf("no index builds recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest build: %w", err)
	}
	b.Duration = time.Duration(durationMS) * time.Millisecond
	return &b, nil
}
