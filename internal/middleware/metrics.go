package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/excuse-me/internal/metrics"
)

// Metrics records request count, latency and in-flight requests.
//
// The path label is the chi route pattern ("/api/excuses"), not the raw URL,
// so label cardinality stays bounded. Requests that match no route are
// labelled "unknown".
func Metrics(m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r)

			pattern := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			status := strconv.Itoa(wrapped.statusCode)

			m.Requests.WithLabelValues(r.Method, pattern, status).Inc()
			m.Duration.WithLabelValues(r.Method, pattern, status).Observe(time.Since(start).Seconds())
		})
	}
}
