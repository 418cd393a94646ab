// Package metrics defines the Prometheus collectors shared by the indexer and
// the query server and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded in QueriesTotal.
const (
	QueryHit         = "hit"
	QueryUnknownWord = "unknown_word"
	QueryError       = "error"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QuotesSubmittedTotal prometheus.Counter
	SessionCacheHits     prometheus.Counter
	SessionCacheMisses   prometheus.Counter
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	IndexWords           prometheus.Gauge
	IndexPostings        prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_total",
				Help: "Word lookups by result (hit, unknown_word, error).",
			},
			[]string{"result"},
		),
		QuotesSubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_submitted_total",
			Help: "Quotes accepted through POST /quotes.",
		}),
		SessionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_cache_hits_total",
			Help: "Loaded index lookups served from the session cache.",
		}),
		SessionCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_cache_misses_total",
			Help: "Loaded index lookups that reloaded snapshots from storage.",
		}),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Full index rebuilds by status.",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "index_build_duration_seconds",
			Help:    "Wall time of a full index rebuild.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		IndexWords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_words",
			Help: "Distinct words in the last successful build.",
		}),
		IndexPostings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_postings",
			Help: "Posting entries in the last successful build.",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QuotesSubmittedTotal,
		m.SessionCacheHits,
		m.SessionCacheMisses,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.IndexWords,
		m.IndexPostings,
		m.CircuitBreakerState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler returns the scrape handler for the registry m was created with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
