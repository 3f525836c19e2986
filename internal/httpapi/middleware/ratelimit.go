package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit applies a single global token-bucket limiter across every
// request, so a misbehaving poller can't starve the pipeline-graph or
// events endpoints. exemptPaths always pass through (health checks).
func RateLimit(rps float64, burst int, exemptPaths ...string) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
