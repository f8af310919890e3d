// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
)

// panicCounter tracks the number of panics recovered by the Recoverer middleware.
// Labels: method, path (route pattern is not available in panic context, so use path).
var panicCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "http",
		Subsystem: "server",
		Name:      "panics_total",
		Help:      "Total number of panics recovered by the Recoverer middleware",
	},
	[]string{"method", "path"},
)

// Recoverer returns a middleware that recovers from panics and routes them
// through the error funnel: FATAL log with full stack, generic 500 to the
// client, never a retry.
func Recoverer(funnel *errorfunnel.Funnel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					panicCounter.WithLabelValues(r.Method, r.URL.Path).Inc()
					funnel.WritePanic(w, r, rec, debug.Stack())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
