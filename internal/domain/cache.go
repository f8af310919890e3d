package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheUnavailable indicates the cache backend could not be reached.
// Callers choose fail-open (rate limiting) or fail-closed (safety screen)
// per operation.
var ErrCacheUnavailable = errors.New("cache unavailable")

// Cache keys used by the core are namespaced with these prefixes.
const (
	CacheKeyRateLimit   = "rate_limit:"
	CacheKeySafeDomains = "safe_domains:"
	CacheKeyResponse    = "cache:"
)

// Cache is the typed key/value client backing rate limits, safety verdicts,
// and the read-through response cache.
type Cache interface {
	// Get returns the value at key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with a TTL. Zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// IncrWithExpire atomically increments the counter at key and, when the
	// counter is new, arms a TTL of window. It returns the post-increment
	// count and the key's remaining TTL in one round trip.
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// ScanKeys returns keys matching prefix via a bounded cursor scan.
	// Reserved for admin use.
	ScanKeys(ctx context.Context, prefix string, limit int) ([]string, error)

	// Ping verifies reachability.
	Ping(ctx context.Context) error
}
