// Package middleware provides HTTP middleware for the transport layer.
// This file implements the edge-level distributed fixed-window rate limiter.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iruldev/shortlink-api/internal/app"
	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/redis"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
)

// Rate limit response headers.
const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// ViolationSink persists rate-limit violations off the response path.
type ViolationSink interface {
	Upsert(ctx context.Context, q domain.Querier, v *domain.RateLimitViolation) error
}

// EdgeRateLimit returns middleware enforcing the distributed fixed-window
// limit per client identifier. Every response carries the X-RateLimit-*
// headers; 429s additionally carry Retry-After and persist a violation row.
// Cache failures let the request through and log at ERROR.
func EdgeRateLimit(
	limiter *redis.FixedWindowLimiter,
	violations ViolationSink,
	querier domain.Querier,
	clock domain.Clock,
	logger *slog.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ClientIP(r)

			decision, err := limiter.Check(r.Context(), identifier)
			if decision.FailedOpen {
				logger.ErrorContext(r.Context(), "rate limit cache unavailable, failing open",
					"identifier", identifier, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set(headerRateLimitLimit, strconv.Itoa(decision.Limit))
			h.Set(headerRateLimitRemaining, strconv.Itoa(decision.Remaining))
			h.Set(headerRateLimitReset, strconv.FormatInt(clock.Now().Add(decision.RetryAfter).Unix(), 10))

			if !decision.Allowed {
				h.Set(headerRetryAfter, strconv.Itoa(int(decision.RetryAfter.Seconds())))

				logger.WarnContext(r.Context(), "rate limit exceeded",
					"identifier", identifier,
					"path", r.URL.Path,
					"method", r.Method,
				)
				persistViolation(violations, querier, identifier, r, decision.WindowStart, clock.Now(), logger)

				contract.WriteProblemJSON(w, r, &app.AppError{
					Op:      "EdgeRateLimit",
					Code:    app.CodeRateLimitExceeded,
					Message: "Rate limit exceeded. Retry after " + strconv.Itoa(int(decision.RetryAfter.Seconds())) + "s",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// persistViolation upserts the violation row without blocking the response.
func persistViolation(
	violations ViolationSink,
	querier domain.Querier,
	identifier string,
	r *http.Request,
	windowStart, now time.Time,
	logger *slog.Logger,
) {
	if violations == nil {
		return
	}

	v := &domain.RateLimitViolation{
		IPAddress:     identifier,
		Path:          r.URL.Path,
		Method:        r.Method,
		WindowStart:   windowStart,
		CreatedAt:     now,
		LastAttemptAt: now,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := violations.Upsert(ctx, querier, v); err != nil {
			logger.Error("rate limit violation upsert failed", "err", err)
		}
	}()
}
