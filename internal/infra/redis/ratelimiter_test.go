package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/shortlink-api/internal/domain"
)

func TestFixedWindowLimiter_AllowsUpToLimit(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(newFakeCache(clock), clock, 200, 30*time.Second)

	for i := 1; i <= 200; i++ {
		d, err := limiter.Check(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 200-i, d.Remaining)
	}
}

func TestFixedWindowLimiter_RejectsPastLimit(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(newFakeCache(clock), clock, 5, 30*time.Second)

	for i := 0; i < 5; i++ {
		d, err := limiter.Check(context.Background(), "ip")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// The 6th and everything after fail until the window rolls.
	for i := 0; i < 3; i++ {
		d, err := limiter.Check(context.Background(), "ip")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		assert.Greater(t, d.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, d.RetryAfter, 30*time.Second)
	}
}

func TestFixedWindowLimiter_WindowRolls(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(newFakeCache(clock), clock, 2, 30*time.Second)

	for i := 0; i < 2; i++ {
		d, _ := limiter.Check(context.Background(), "ip")
		require.True(t, d.Allowed)
	}
	d, _ := limiter.Check(context.Background(), "ip")
	require.False(t, d.Allowed)

	clock.Advance(31 * time.Second)

	d, err := limiter.Check(context.Background(), "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "fresh window should admit again")
	assert.Equal(t, 1, d.Remaining)
}

func TestFixedWindowLimiter_IdentifiersAreIndependent(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(newFakeCache(clock), clock, 1, 30*time.Second)

	a, _ := limiter.Check(context.Background(), "a")
	b, _ := limiter.Check(context.Background(), "b")
	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)

	a2, _ := limiter.Check(context.Background(), "a")
	assert.False(t, a2.Allowed)
}

func TestFixedWindowLimiter_FailsOpenWhenCacheDown(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cache := newFakeCache(clock)
	cache.unavailable = true
	limiter := NewFixedWindowLimiter(cache, clock, 1, 30*time.Second)

	d, err := limiter.Check(context.Background(), "ip")
	assert.Error(t, err, "fail-open must surface the cache error for logging")
	assert.True(t, d.Allowed)
	assert.True(t, d.FailedOpen)
}
