package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iruldev/shortlink-api/internal/infra/observability"
)

// RequestLogger returns a middleware that logs HTTP request completion.
// It captures method, route, status, duration, and response size.
// The requestId field is populated from the context (set by RequestID middleware).
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and bytes
			ww := NewResponseWrapper(w)

			next.ServeHTTP(ww, r)

			requestID := GetRequestID(r.Context())
			if requestID == "" {
				// Fallback to prevent empty requestId in logs when RequestID middleware is missing/misordered.
				requestID = generateRequestID()
			}

			// Get route pattern from chi router context
			routePattern := ""
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				routePattern = routeCtx.RoutePattern()
			}
			if routePattern == "" {
				routePattern = r.URL.Path
			}

			logger.InfoContext(r.Context(), "request completed",
				observability.LogKeyMethod, r.Method,
				observability.LogKeyRoute, routePattern,
				observability.LogKeyStatus, ww.Status(),
				observability.LogKeyDuration, time.Since(start).Milliseconds(),
				observability.LogKeyBytes, ww.BytesWritten(),
				observability.LogKeyRequestID, requestID,
			)
		})
	}
}
