package domainsvc

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/shortlink-api/internal/domain"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"strips path and query", "https://example.com/some/path?q=1", "https://example.com/", false},
		{"keeps port", "http://localhost:8080/x", "http://localhost:8080/", false},
		{"bare host already canonical", "https://example.com/", "https://example.com/", false},
		{"trims whitespace", "  https://example.com  ", "https://example.com/", false},
		{"missing scheme", "example.com/path", "", true},
		{"missing host", "https://", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Screen ---

type fakeChecker struct {
	unsafe bool
	err    error
	calls  int
}

func (c *fakeChecker) Check(context.Context, string) (bool, error) {
	c.calls++
	return c.unsafe, c.err
}

type memCache struct {
	values map[string]string
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", domain.ErrCacheMiss
}
func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.values[key] = value
	return nil
}
func (m *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
func (m *memCache) IncrWithExpire(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, nil
}
func (m *memCache) ScanKeys(context.Context, string, int) ([]string, error) { return nil, nil }
func (m *memCache) Ping(context.Context) error                             { return nil }

type fakeDomainRepo struct {
	insecureIDs []int64
}

func (r *fakeDomainRepo) Upsert(_ context.Context, _ domain.Querier, url, hash string) (*domain.LinkDomain, error) {
	return &domain.LinkDomain{ID: 1, URL: url, URLHash: hash, IsSecure: true}, nil
}
func (r *fakeDomainRepo) GetByHash(context.Context, domain.Querier, string) (*domain.LinkDomain, error) {
	return nil, domain.ErrNotFound
}
func (r *fakeDomainRepo) MarkInsecure(_ context.Context, _ domain.Querier, id int64) error {
	r.insecureIDs = append(r.insecureIDs, id)
	return nil
}
func (r *fakeDomainRepo) List(context.Context, domain.Querier, domain.ListParams) ([]*domain.LinkDomain, int64, error) {
	return nil, 0, nil
}

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(domain.Querier) error) error { return fn(nil) }

type nopEngineMetrics struct{}

func (nopEngineMetrics) IncShorten(string)       {}
func (nopEngineMetrics) IncRedirect(string)      {}
func (nopEngineMetrics) IncSafetyVerdict(string) {}

func newTestService(checker *fakeChecker) (*Service, *memCache, *fakeDomainRepo) {
	cache := &memCache{values: map[string]string{}}
	repo := &fakeDomainRepo{}
	svc := NewService(cache, checker, repo, nil, fakeTx{}, 6*time.Hour, slog.Default(), nopEngineMetrics{})
	return svc, cache, repo
}

func TestScreen_SafeVerdictCached(t *testing.T) {
	checker := &fakeChecker{unsafe: false}
	svc, cache, _ := newTestService(checker)
	d := &domain.LinkDomain{ID: 1, URL: "https://example.com/", IsSecure: true}

	safe, err := svc.Screen(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, safe)
	assert.Equal(t, "safe", cache.values[domain.CacheKeySafeDomains+"https://example.com/"])

	// Second screen must come from the cache, not the upstream.
	safe, err = svc.Screen(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, safe)
	assert.Equal(t, 1, checker.calls)
}

func TestScreen_UnsafeVerdictCachedAndPersisted(t *testing.T) {
	checker := &fakeChecker{unsafe: true}
	svc, cache, repo := newTestService(checker)
	d := &domain.LinkDomain{ID: 7, URL: "https://bad.test/", IsSecure: true}

	safe, err := svc.Screen(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, safe)
	assert.Equal(t, "unsafe", cache.values[domain.CacheKeySafeDomains+"https://bad.test/"])
	assert.Equal(t, []int64{7}, repo.insecureIDs)
	assert.False(t, d.IsSecure)

	// Cached verdict: no further upstream calls.
	safe, _ = svc.Screen(context.Background(), d)
	assert.False(t, safe)
	assert.Equal(t, 1, checker.calls)
}

func TestScreen_UpstreamFailureFailsClosedWithoutCaching(t *testing.T) {
	checker := &fakeChecker{err: errors.New("dial timeout")}
	svc, cache, repo := newTestService(checker)
	d := &domain.LinkDomain{ID: 3, URL: "https://example.org/", IsSecure: true}

	safe, err := svc.Screen(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, safe, "network failure must fail closed")
	assert.Empty(t, cache.values, "failure verdicts are never cached")
	assert.Empty(t, repo.insecureIDs, "failure must not flip the domain")
	assert.True(t, d.IsSecure)
}
