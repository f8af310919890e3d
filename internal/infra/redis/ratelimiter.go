package redis

import (
	"context"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// Decision is the outcome of one fixed-window rate-limit check.
type Decision struct {
	// Allowed is false once the window's budget is exhausted.
	Allowed bool
	// Limit is the per-window budget.
	Limit int
	// Remaining is max(0, limit - current count).
	Remaining int
	// RetryAfter is the time until the window rolls.
	RetryAfter time.Duration
	// WindowStart anchors violation rows so overflows within one window
	// upsert the same record.
	WindowStart time.Time
	// FailedOpen is set when the cache was unreachable and the request was
	// let through; callers must log at ERROR.
	FailedOpen bool
}

// FixedWindowLimiter is a distributed fixed-window counter keyed by client
// identifier. Each check is a single round trip: INCR plus TTL arming plus
// TTL read, linearised at the cache server. Two concurrent requests that both
// observe count > limit both fail closed; window drift up to one window is
// accepted.
type FixedWindowLimiter struct {
	cache  domain.Cache
	clock  domain.Clock
	limit  int
	window time.Duration
}

// NewFixedWindowLimiter creates a limiter with the given per-window budget.
func NewFixedWindowLimiter(cache domain.Cache, clock domain.Clock, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{cache: cache, clock: clock, limit: limit, window: window}
}

// Check accounts one request for identifier and returns the decision.
// Cache unavailability fails OPEN: users are never blocked on a dead cache.
// The returned error is non-nil only on fail-open, so callers can log it.
func (l *FixedWindowLimiter) Check(ctx context.Context, identifier string) (Decision, error) {
	now := l.clock.Now()

	count, ttl, err := l.cache.IncrWithExpire(ctx, domain.CacheKeyRateLimit+identifier, l.window)
	if err != nil {
		return Decision{
			Allowed:     true,
			Limit:       l.limit,
			Remaining:   l.limit,
			RetryAfter:  0,
			WindowStart: now.Truncate(l.window),
			FailedOpen:  true,
		}, err
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	// The window began when the counter's TTL was armed.
	windowStart := now.Add(ttl - l.window).Truncate(time.Second)

	return Decision{
		Allowed:     int(count) <= l.limit,
		Limit:       l.limit,
		Remaining:   remaining,
		RetryAfter:  ttl,
		WindowStart: windowStart,
	}, nil
}
