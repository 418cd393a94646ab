// Package handler serves the search form, word lookups and quote
// submissions over HTTP.
package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quoteindex/quoteindex/internal/events"
	"github.com/quoteindex/quoteindex/internal/quote"
	"github.com/quoteindex/quoteindex/internal/searcher/query"
	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
	"github.com/quoteindex/quoteindex/pkg/logger"
	"github.com/quoteindex/quoteindex/pkg/metrics"
	"github.com/quoteindex/quoteindex/pkg/middleware"
)

//go:embed templates/index.html
var templates embed.FS

var page = template.Must(template.ParseFS(templates, "templates/index.html"))

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 64 << 10

// Engines hands out the current query engine.
type Engines interface {
	Engine(ctx context.Context) (*query.Engine, error)
}

// Appender stores new quotes.
type Appender interface {
	AppendDocument(ctx context.Context, q quote.Quote) (int, error)
}

type Handler struct {
	engines      Engines
	store        Appender
	publisher    events.Publisher
	metrics      *metrics.Metrics
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

func WithPublisher(p events.Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLimits sets the default and maximum number of quotes per lookup.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(h *Handler) {
		h.defaultLimit = defaultLimit
		h.maxLimit = maxLimit
	}
}

func New(engines Engines, store Appender, opts ...Option) *Handler {
	h := &Handler{
		engines:      engines,
		store:        store,
		publisher:    events.Noop{},
		defaultLimit: 1,
		maxLimit:     20,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type pageData struct {
	Word     string
	Quotes   []string
	Fallback bool
	Error    string
}

// SearchResponse is the JSON form of a lookup.
type SearchResponse struct {
	Word     string   `json:"word"`
	Quotes   []string `json:"quotes"`
	Fallback bool     `json:"fallback"`
}

// Form renders the empty search form.
func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageData{})
}

// Search looks up the posted word. With no match, or when the lookup fails,
// it answers 404 with a random quote instead.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, apperrors.Invalidf("malformed form: %v", err))
		return
	}
	word := strings.TrimSpace(r.PostForm.Get("word"))
	limit, err := h.limit(r.PostForm.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	engine, err := h.engines.Engine(ctx)
	if err != nil {
		log.Error("loading index failed", "error", err)
		if errors.Is(err, apperrors.ErrNotFound) {
			err = apperrors.New(apperrors.ErrStorageUnavailable, http.StatusServiceUnavailable, "index has not been built yet")
		}
		h.fail(w, r, err)
		return
	}

	start := time.Now()
	quotes, err := engine.Query(ctx, word, limit)
	switch {
	case err != nil:
		log.Warn("query failed, serving random quote", "word", word, "error", err)
		h.countQuery(metrics.QueryError)
	case len(quotes) == 0:
		h.countQuery(metrics.QueryUnknownWord)
	default:
		h.countQuery(metrics.QueryHit)
		log.Info("query served", "word", word, "returned", len(quotes), "latency_ms", time.Since(start).Milliseconds())
		h.render(w, r, http.StatusOK, pageData{Word: word, Quotes: quotes})
		return
	}

	random, err := engine.QueryRandom(ctx)
	if err != nil {
		log.Error("random fallback failed", "error", err)
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusNotFound, pageData{Word: word, Quotes: []string{random}, Fallback: true})
}

// SubmitResponse is returned by SubmitQuote.
type SubmitResponse struct {
	ID int `json:"id"`
}

// SubmitQuote stores a quote sent as JSON or as a form. The index is not
// updated until the next rebuild.
func (h *Handler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	q, err := decodeQuote(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.store.AppendDocument(ctx, q)
	if err != nil {
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			log.Error("appending quote failed", "error", err)
		}
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.QuotesSubmittedTotal.Inc()
	}
	if err := h.publisher.QuoteSubmitted(ctx, events.QuoteSubmitted{
		DocumentID:  id,
		RequestID:   middleware.GetRequestID(ctx),
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		log.Warn("publishing quote.submitted failed", "doc_id", id, "error", err)
	}
	log.Info("quote submitted", "doc_id", id)
	h.writeJSON(w, http.StatusCreated, SubmitResponse{ID: id})
}

func decodeQuote(r *http.Request) (quote.Quote, error) {
	var q quote.Quote
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&q); err != nil {
			return q, apperrors.Invalidf("invalid JSON body: %v", err)
		}
		return q, nil
	}
	if err := r.ParseForm(); err != nil {
		return q, apperrors.Invalidf("malformed form: %v", err)
	}
	q.LeadIn = r.PostForm.Get("lead_in")
	q.Content = r.PostForm.Get("content")
	q.Attribution = r.PostForm.Get("attribution")
	q.Source = r.PostForm.Get("source")
	return q, nil
}

func (h *Handler) limit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Invalidf("limit must be a positive integer")
	}
	return min(n, h.maxLimit), nil
}

func (h *Handler) countQuery(result string) {
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(result).Inc()
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if wantsJSON(r) {
		quotes := data.Quotes
		if quotes == nil {
			quotes = []string{}
		}
		h.writeJSON(w, status, SearchResponse{Word: data.Word, Quotes: quotes, Fallback: data.Fallback})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) {
		h.writeError(w, err)
		return
	}
	h.render(w, r, apperrors.HTTPStatusCode(err), pageData{Error: publicMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	body := map[string]any{"error": publicMessage(err)}
	var verr *quote.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	h.writeJSON(w, status, body)
}

// publicMessage hides internal detail for server-side failures.
func publicMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" && appErr.StatusCode == http.StatusServiceUnavailable {
		return appErr.Message
	}
	switch status := apperrors.HTTPStatusCode(err); {
	case status == http.StatusServiceUnavailable:
		return "storage temporarily unavailable"
	case status >= 500:
		return "internal error"
	default:
		return err.Error()
	}
}
