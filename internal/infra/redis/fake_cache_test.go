package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// fakeCache is an in-memory domain.Cache for limiter and response-cache
// tests. TTLs are tracked against the injected clock.
type fakeCache struct {
	mu     sync.Mutex
	clock  domain.Clock
	values map[string]fakeEntry
	counts map[string]int64
	armed  map[string]time.Time // counter expiry

	unavailable bool
}

type fakeEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

func newFakeCache(clock domain.Clock) *fakeCache {
	return &fakeCache{
		clock:  clock,
		values: map[string]fakeEntry{},
		counts: map[string]int64{},
		armed:  map[string]time.Time{},
	}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return "", domain.ErrCacheUnavailable
	}
	e, ok := f.values[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(f.clock.Now()) {
		delete(f.values, key)
		return "", domain.ErrCacheMiss
	}
	return e.value, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return domain.ErrCacheUnavailable
	}
	e := fakeEntry{value: value}
	if ttl > 0 {
		e.expiresAt = f.clock.Now().Add(ttl)
	}
	f.values[key] = e
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return domain.ErrCacheUnavailable
	}
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCache) IncrWithExpire(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return 0, 0, domain.ErrCacheUnavailable
	}

	now := f.clock.Now()
	if exp, ok := f.armed[key]; ok && !exp.After(now) {
		delete(f.counts, key)
		delete(f.armed, key)
	}

	f.counts[key]++
	if f.counts[key] == 1 {
		f.armed[key] = now.Add(window)
	}
	return f.counts[key], f.armed[key].Sub(now), nil
}

func (f *fakeCache) ScanKeys(_ context.Context, prefix string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		if len(keys) == limit {
			break
		}
	}
	return keys, nil
}

func (f *fakeCache) Ping(context.Context) error {
	if f.unavailable {
		return domain.ErrCacheUnavailable
	}
	return nil
}
