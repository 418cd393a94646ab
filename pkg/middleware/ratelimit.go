package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// Limiter decides whether a client key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests with 429 once the client identified by keyFn
// exhausts its budget.
func RateLimit(l Limiter, keyFn func(*http.Request) string, retryAfter time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(keyFn(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
