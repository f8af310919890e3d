package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/redis"
)

// counterCache implements just enough of domain.Cache for the limiter.
type counterCache struct {
	mu          sync.Mutex
	clock       domain.Clock
	counts      map[string]int64
	armed       map[string]time.Time
	window      time.Duration
	unavailable bool
}

func newCounterCache(clock domain.Clock) *counterCache {
	return &counterCache{clock: clock, counts: map[string]int64{}, armed: map[string]time.Time{}}
}

func (c *counterCache) IncrWithExpire(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return 0, 0, domain.ErrCacheUnavailable
	}
	now := c.clock.Now()
	if exp, ok := c.armed[key]; ok && !exp.After(now) {
		delete(c.counts, key)
		delete(c.armed, key)
	}
	c.counts[key]++
	if c.counts[key] == 1 {
		c.armed[key] = now.Add(window)
	}
	return c.counts[key], c.armed[key].Sub(now), nil
}

func (c *counterCache) Get(context.Context, string) (string, error) {
	return "", domain.ErrCacheMiss
}
func (c *counterCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (c *counterCache) Delete(context.Context, ...string) error                  { return nil }
func (c *counterCache) ScanKeys(context.Context, string, int) ([]string, error)  { return nil, nil }
func (c *counterCache) Ping(context.Context) error                               { return nil }

type violationRecorder struct {
	mu         sync.Mutex
	violations []*domain.RateLimitViolation
}

func (v *violationRecorder) Upsert(_ context.Context, _ domain.Querier, row *domain.RateLimitViolation) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.violations = append(v.violations, row)
	return nil
}

func (v *violationRecorder) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.violations)
}

func newRateLimited(t *testing.T, limit int, cache *counterCache, clock domain.Clock, sink ViolationSink) http.Handler {
	t.Helper()

	limiter := redis.NewFixedWindowLimiter(cache, clock, limit, 30*time.Second)
	mw := EdgeRateLimit(limiter, sink, nil, clock, slog.Default())
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/aBc1234", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEdgeRateLimit_HeadersOnEveryResponse(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	h := newRateLimited(t, 200, newCounterCache(clock), clock, nil)

	rec := doRequest(h, "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "200", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "199", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestEdgeRateLimit_Exactly201stIs429(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := &violationRecorder{}
	h := newRateLimited(t, 200, newCounterCache(clock), clock, sink)

	var status429 int
	for i := 0; i < 201; i++ {
		rec := doRequest(h, "203.0.113.9")
		if rec.Code == http.StatusTooManyRequests {
			status429++
			retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
			require.NoError(t, err)
			assert.Positive(t, retryAfter)
			assert.LessOrEqual(t, retryAfter, 30)
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, 1, status429, "exactly the 201st request in the window is rejected")
}

func TestEdgeRateLimit_RemainingNeverNegative(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	h := newRateLimited(t, 2, newCounterCache(clock), clock, nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = doRequest(h, "203.0.113.9")
	}
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestEdgeRateLimit_ViolationUpserted(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := &violationRecorder{}
	h := newRateLimited(t, 1, newCounterCache(clock), clock, sink)

	doRequest(h, "203.0.113.9")
	doRequest(h, "203.0.113.9")

	// The violation write is asynchronous.
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	v := sink.violations[0]
	sink.mu.Unlock()
	assert.Equal(t, "203.0.113.9", v.IPAddress)
	assert.Equal(t, "/api/v1/aBc1234", v.Path)
	assert.Equal(t, http.MethodGet, v.Method)
}

func TestEdgeRateLimit_FailsOpenWhenCacheDown(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cache := newCounterCache(clock)
	cache.unavailable = true
	h := newRateLimited(t, 1, cache, clock, nil)

	for i := 0; i < 5; i++ {
		rec := doRequest(h, "203.0.113.9")
		assert.Equal(t, http.StatusOK, rec.Code, "dead cache must not block users")
	}
}

func TestEdgeRateLimit_IdentifiersIndependent(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	h := newRateLimited(t, 1, newCounterCache(clock), clock, nil)

	assert.Equal(t, http.StatusOK, doRequest(h, "203.0.113.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "203.0.113.9").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "198.51.100.7").Code)
}
