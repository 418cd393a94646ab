// Package router wires the query server routes and applies the middleware
// chain.
package router

import (
	"net/http"
	"time"

	"github.com/quoteindex/quoteindex/internal/auth/ratelimit"
	"github.com/quoteindex/quoteindex/internal/searcher/handler"
	"github.com/quoteindex/quoteindex/pkg/health"
	"github.com/quoteindex/quoteindex/pkg/metrics"
	"github.com/quoteindex/quoteindex/pkg/middleware"
)

// Config carries the route dependencies beyond the handler.
type Config struct {
	Health         *health.Checker
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	LimiterWindow  time.Duration
	RequestTimeout time.Duration
}

// New builds the server handler.
//
// Route table:
//
//	GET    /              search form
//	POST   /              word lookup (form field "word")
//	POST   /quotes        submit a quote (rate limited per client)
//	GET    /health/live   liveness
//	GET    /health/ready  readiness
//	GET    /metrics       Prometheus scrape
//
// Middleware chain (outermost first):
//
//	RequestID → AccessLog → Metrics → Timeout → mux
func New(h *handler.Handler, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Form)
	mux.HandleFunc("POST /{$}", h.Search)

	var submit http.Handler = http.HandlerFunc(h.SubmitQuote)
	if cfg.Limiter != nil {
		submit = middleware.RateLimit(cfg.Limiter, ratelimit.ClientKey, cfg.LimiterWindow)(submit)
	}
	mux.Handle("POST /quotes", submit)

	if cfg.Health != nil {
		mux.HandleFunc("GET /health/live", cfg.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", cfg.Health.ReadyHandler())
	}

	var chain http.Handler = mux
	if cfg.RequestTimeout > 0 {
		chain = middleware.Timeout(cfg.RequestTimeout)(chain)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
		chain = middleware.Metrics(cfg.Metrics)(chain)
	}
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)
	return chain
}
