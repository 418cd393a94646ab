// Package indexer runs the full rebuild: stream the corpus, build the
// inverted index and word registry in one sequential pass, then persist both
// snapshots.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quoteindex/quoteindex/internal/events"
	"github.com/quoteindex/quoteindex/internal/indexer/index"
	"github.com/quoteindex/quoteindex/internal/indexer/ledger"
	"github.com/quoteindex/quoteindex/internal/storage"
	"github.com/quoteindex/quoteindex/pkg/logger"
	"github.com/quoteindex/quoteindex/pkg/metrics"
	"github.com/quoteindex/quoteindex/pkg/resilience"
	"github.com/quoteindex/quoteindex/pkg/tracing"
)

// Build outcomes recorded in metrics.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

// Recorder stores a summary of each successful build.
type Recorder interface {
	RecordBuild(ctx context.Context, b ledger.Build) (int64, error)
}

// BuildReport summarises one rebuild. IndexKey and WordIDsKey are empty
// when the corpus produced no words and nothing was written.
type BuildReport struct {
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

// Empty reports whether the build found no words.
func (r *BuildReport) Empty() bool {
	return r.Words == 0
}

// Engine serialises rebuilds against one backend.
type Engine struct {
	backend   storage.Backend
	publisher events.Publisher
	ledger    Recorder
	metrics   *metrics.Metrics
	mu        sync.Mutex
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLedger(r Recorder) Option {
	return func(e *Engine) { e.ledger = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock that stamps snapshots and times builds.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(backend storage.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:   backend,
		publisher: events.Noop{},
		now:       time.Now,
		logger:    slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild indexes the whole corpus from scratch. A corpus error aborts the
// build before anything is persisted. Both snapshots carry the build's start
// timestamp so readers can pair them. The word-ID snapshot is written first,
// so an index never exists without its word IDs. Event and ledger failures are logged and
// do not fail the build.
func (e *Engine) Rebuild(ctx context.Context) (*BuildReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	ctx, root := tracing.StartSpan(ctx, "index.rebuild", logger.RequestID(ctx))
	defer func() {
		root.End()
		root.Log(e.logger)
	}()
	log := e.logger.With("trace_id", root.TraceID)
	log.Info("rebuild started")

	mem, err := e.scan(ctx)
	if err != nil {
		e.observe(StatusFailed, start, nil)
		return nil, fmt.Errorf("building index: %w", err)
	}
	inv := mem.Snapshot()
	report := &BuildReport{
		TraceID:   root.TraceID,
		Words:     mem.Words().Len(),
		Documents: mem.DocCount(),
		Lines:     mem.LineCount(),
		Postings:  mem.PostingCount(),
	}
	root.SetAttr("words", report.Words)
	root.SetAttr("documents", report.Documents)

	report.WordIDsKey, err = e.persist(ctx, storage.WordIDsSnapshot, start, mem.Words())
	if err != nil {
		e.observe(StatusFailed, start, nil)
		return nil, err
	}
	report.IndexKey, err = e.persist(ctx, storage.IndexSnapshot, start, inv)
	if err != nil {
		log.Warn("index snapshot failed, word-id snapshot left unpaired", "word_ids_key", report.WordIDsKey)
		e.observe(StatusFailed, start, nil)
		return nil, err
	}
	report.FinishedAt = e.now()
	report.Duration = report.FinishedAt.Sub(start)

	if report.Empty() {
		log.Warn("corpus produced no words, no snapshots written", "documents", report.Documents)
		e.observe(StatusEmpty, start, report)
		return report, nil
	}
	e.observe(StatusSuccess, start, report)
	log.Info("rebuild finished",
		"words", report.Words,
		"documents", report.Documents,
		"lines", report.Lines,
		"postings", report.Postings,
		"index_key", report.IndexKey,
		"word_ids_key", report.WordIDsKey,
		"duration_ms", report.Duration.Milliseconds(),
	)
	e.announce(ctx, report)
	return report, nil
}

func (e *Engine) scan(ctx context.Context) (*index.MemoryIndex, error) {
	ctx, span := tracing.StartChildSpan(ctx, "corpus.scan")
	defer span.End()
	mem := index.NewMemoryIndex()
	for line, err := range e.backend.Corpus(ctx) {
		if err != nil {
			span.SetAttr("error", err.Error())
			return nil, err
		}
		mem.AddLine(line.DocID, line.Text)
	}
	span.SetAttr("lines", mem.LineCount())
	return mem, nil
}

func (e *Engine) persist(ctx context.Context, name string, at time.Time, data storage.Mapping) (string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "snapshot.persist")
	defer span.End()
	span.SetAttr("name", name)
	key, err := e.backend.PersistSnapshot(ctx, name, at, data)
	if err != nil {
		span.SetAttr("error", err.Error())
		return "", fmt.Errorf("persisting %s snapshot: %w", name, err)
	}
	span.SetAttr("key", key)
	return key, nil
}

// announceTimeout bounds each ledger write and event publish after a build.
const announceTimeout = 5 * time.Second

func (e *Engine) announce(ctx context.Context, r *BuildReport) {
	if e.ledger != nil {
		err := resilience.Within(ctx, announceTimeout, "ledger.record", func(ctx context.Context) error {
			_, err := e.ledger.RecordBuild(ctx, ledger.Build{
				TraceID:    r.TraceID,
				IndexKey:   r.IndexKey,
				WordIDsKey: r.WordIDsKey,
				Words:      r.Words,
				Documents:  r.Documents,
				Lines:      r.Lines,
				Postings:   r.Postings,
				Duration:   r.Duration,
				FinishedAt: r.FinishedAt,
			})
			return err
		})
		if err != nil {
			e.logger.Warn("recording build in ledger failed", "trace_id", r.TraceID, "error", err)
		}
	}
	err := resilience.Within(ctx, announceTimeout, "publish.index_built", func(ctx context.Context) error {
		return e.publisher.IndexBuilt(ctx, events.IndexBuilt{
			TraceID:    r.TraceID,
			IndexKey:   r.IndexKey,
			WordIDsKey: r.WordIDsKey,
			Words:      r.Words,
			Documents:  r.Documents,
			Lines:      r.Lines,
			Postings:   r.Postings,
			DurationMS: r.Duration.Milliseconds(),
			BuiltAt:    r.FinishedAt,
		})
	})
	if err != nil {
		e.logger.Warn("publishing index.built failed", "trace_id", r.TraceID, "error", err)
	}
}

func (e *Engine) observe(status string, start time.Time, r *BuildReport) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexBuildDuration.Observe(e.now().Sub(start).Seconds())
	if r != nil && status == StatusSuccess {
		e.metrics.IndexWords.Set(float64(r.Words))
		e.metrics.IndexPostings.Set(float64(r.Postings))
	}
}
