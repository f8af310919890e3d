package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/geoip"
	"github.com/iruldev/shortlink-api/internal/infra/objectstore"
	"github.com/iruldev/shortlink-api/internal/infra/observability"
	"github.com/iruldev/shortlink-api/internal/infra/redis"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/shared/monitor"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
	"github.com/iruldev/shortlink-api/internal/transport/http/handler"
	"github.com/iruldev/shortlink-api/internal/transport/http/middleware"
	"github.com/iruldev/shortlink-api/internal/usecase/analytics"
	"github.com/iruldev/shortlink-api/internal/usecase/domainsvc"
	"github.com/iruldev/shortlink-api/internal/usecase/redirect"
	"github.com/iruldev/shortlink-api/internal/usecase/session"
	"github.com/iruldev/shortlink-api/internal/usecase/shorten"
)

// The fakes below give the router a fully wired engine without Postgres or
// Redis, so the end-to-end contract (shorten → resolve → stats) can run as a
// plain unit test.

type memCache struct {
	mu     sync.Mutex
	clock  domain.Clock
	values map[string]string
	counts map[string]int64
	armed  map[string]time.Time
}

func newMemCache(clock domain.Clock) *memCache {
	return &memCache{clock: clock, values: map[string]string{}, counts: map[string]int64{}, armed: map[string]time.Time{}}
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", domain.ErrCacheMiss
}
func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
func (m *memCache) IncrWithExpire(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if exp, ok := m.armed[key]; ok && !exp.After(now) {
		delete(m.counts, key)
		delete(m.armed, key)
	}
	m.counts[key]++
	if m.counts[key] == 1 {
		m.armed[key] = now.Add(window)
	}
	return m.counts[key], m.armed[key].Sub(now), nil
}
func (m *memCache) ScanKeys(context.Context, string, int) ([]string, error) { return nil, nil }
func (m *memCache) Ping(context.Context) error                             { return nil }

type safeChecker struct{}

func (safeChecker) Check(context.Context, string) (bool, error) { return false, nil }

type memDomainRepo struct {
	mu     sync.Mutex
	byHash map[string]*domain.LinkDomain
	nextID int64
}

func (r *memDomainRepo) Upsert(_ context.Context, _ domain.Querier, url, hash string) (*domain.LinkDomain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.byHash[hash]; ok {
		return d, nil
	}
	r.nextID++
	d := &domain.LinkDomain{ID: r.nextID, URL: url, URLHash: hash, IsSecure: true}
	r.byHash[hash] = d
	return d, nil
}
func (r *memDomainRepo) GetByHash(context.Context, domain.Querier, string) (*domain.LinkDomain, error) {
	return nil, domain.ErrNotFound
}
func (r *memDomainRepo) MarkInsecure(context.Context, domain.Querier, int64) error { return nil }
func (r *memDomainRepo) List(context.Context, domain.Querier, domain.ListParams) ([]*domain.LinkDomain, int64, error) {
	return nil, 0, nil
}

type memURLRepo struct {
	mu     sync.Mutex
	byCode map[string]*domain.ShortURL
	nextID int64
}

func (r *memURLRepo) Insert(_ context.Context, _ domain.Querier, u *domain.ShortURL) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[u.ShortCode]; exists {
		return domain.ErrConflict
	}
	r.nextID++
	u.ID = r.nextID
	u.IsActive = true
	r.byCode[u.ShortCode] = u
	return nil
}
func (r *memURLRepo) GetByShortCode(_ context.Context, _ domain.Querier, code string) (*domain.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byCode[code]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}
func (r *memURLRepo) FindReusable(_ context.Context, _ domain.Querier, domainID int64, hash string, title *string, hasPassword bool, expiresAt *time.Time) (*domain.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byCode {
		if u.DomainID == domainID && u.OriginalURLHash == hash && u.IsActive &&
			(u.PasswordHash != nil) == hasPassword && u.Title == title && u.ExpiresAt == expiresAt {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (r *memURLRepo) IncrementClicks(_ context.Context, _ domain.Querier, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byCode {
		if u.ID == id {
			u.Clicks++
		}
	}
	return nil
}
func (r *memURLRepo) Deactivate(context.Context, domain.Querier, int64) error { return nil }
func (r *memURLRepo) Delete(context.Context, domain.Querier, int64) error     { return nil }
func (r *memURLRepo) AttachOwner(context.Context, domain.Querier, int64, string, bool) error {
	return nil
}
func (r *memURLRepo) DetachOwner(context.Context, domain.Querier, int64, string) error { return nil }
func (r *memURLRepo) OwnerOf(context.Context, domain.Querier, int64) (string, bool, error) {
	return "", false, nil
}
func (r *memURLRepo) ListForUser(context.Context, domain.Querier, string, domain.ListParams) ([]*domain.ShortURL, int64, error) {
	return nil, 0, nil
}
func (r *memURLRepo) List(context.Context, domain.Querier, domain.ListParams) ([]*domain.ShortURL, int64, error) {
	return nil, 0, nil
}
func (r *memURLRepo) Stats(_ context.Context, _ domain.Querier, code string) (*domain.URLStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byCode[code]
	if !ok || !u.IsActive {
		return nil, domain.ErrNotFound
	}
	return &domain.URLStats{
		ShortCode:    u.ShortCode,
		OriginalURL:  u.OriginalURL,
		TotalClicks:  u.Clicks,
		CreatedAt:    u.CreatedAt,
		TopCountries: map[string]int64{},
		TopBrowsers:  map[string]int64{},
	}, nil
}

type nopAnalytics struct{}

func (nopAnalytics) Insert(context.Context, domain.Querier, *domain.AnalyticEvent) error { return nil }

type nopViolations struct{}

func (nopViolations) Upsert(context.Context, domain.Querier, *domain.RateLimitViolation) error {
	return nil
}

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(domain.Querier) error) error { return fn(nil) }

func okProbe(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func newTestRouter(t *testing.T, rateLimit int) (http.Handler, *analytics.Recorder) {
	t.Helper()

	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.Default()
	cache := newMemCache(clock)
	urls := &memURLRepo{byCode: map[string]*domain.ShortURL{}}
	domains := &memDomainRepo{byHash: map[string]*domain.LinkDomain{}}

	registry, httpMetrics, engineMetrics := observability.NewMetricsRegistry()
	mon := monitor.New(clock.Now())
	funnel := errorfunnel.New(nil, nil, clock, logger)
	tokens := security.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), "admin-pass", 2*time.Hour, 7*24*time.Hour)
	cookies := security.CookiePolicy{}
	sessions := session.NewService(nil, nil, nil, fakeTx{}, tokens, clock, 10, 16*time.Minute, logger)

	domainSvc := domainsvc.NewService(cache, safeChecker{}, domains, nil, fakeTx{}, 6*time.Hour, logger, engineMetrics)
	shortenSvc := shorten.NewService(domainSvc, urls, nil, fakeTx{}, domain.RandomCodeGenerator{},
		clock, objectstore.Noop{}, "http://localhost:8080", false, logger, engineMetrics)

	recorder := analytics.NewRecorder(nopAnalytics{}, nil, 1, 16, logger)
	redirectSvc := redirect.NewService(urls, nil, fakeTx{}, clock,
		analytics.NewIngestor(geoip.Noop{}), recorder, engineMetrics)

	authCfg := middleware.AuthConfig{Sessions: sessions, Tokens: tokens, Cookies: cookies, Clock: clock, Logger: logger}

	router := NewRouter(RouterDeps{
		Production:      false,
		MaxBodySize:     20 << 20,
		LoginRPM:        30,
		Limiter:         redis.NewFixedWindowLimiter(cache, clock, rateLimit, 30*time.Second),
		Violations:      nopViolations{},
		Clock:           clock,
		Monitor:         mon,
		Funnel:          funnel,
		Auth:            authCfg,
		Logger:          logger,
		Metrics:         httpMetrics,
		Registry:        registry,
		URLHandler:      handler.NewURLHandler(shortenSvc, urls, nil, funnel, "http://localhost:8080"),
		RedirectHandler: handler.NewRedirectHandler(redirectSvc, funnel),
		AuthHandler:     handler.NewAuthHandler(sessions, cookies, clock, funnel),
		AdminHandler:    handler.NewAdminHandler(nil, urls, domains, nil, nil, nil, cache, mon, funnel),
		HealthLive:      okProbe,
		HealthReady:     okProbe,
	})
	return router, recorder
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "203.0.113.9:4711"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_AnonymousShortenResolveStats(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	// Shorten.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/url", `{"url":"https://example.com/"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		ShortCode string `json:"short_code"`
		ShortURL  string `json:"short_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Regexp(t, `^[A-Za-z0-9]{7}$`, created.ShortCode)
	assert.Equal(t, "http://localhost:8080/api/v1/"+created.ShortCode, created.ShortURL)

	// Resolve.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/"+created.ShortCode, "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com/", rec.Header().Get("Location"))

	// Stats reflect the click.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/url/"+created.ShortCode+"/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalClicks int64 `json:"total_clicks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalClicks)
}

func TestRouter_ShorteningSameURLTwiceReturnsSameCode(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	first := doJSON(t, router, http.MethodPost, "/api/v1/url", `{"url":"https://example.com/"}`)
	second := doJSON(t, router, http.MethodPost, "/api/v1/url", `{"url":"https://example.com/"}`)

	var a, b struct {
		ShortCode string `json:"short_code"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.ShortCode, b.ShortCode)
}

func TestRouter_EveryResponseCarriesEdgeHeaders(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/zzzzzzz", "")
	h := rec.Header()

	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.NotEmpty(t, h.Get("Content-Security-Policy"))
	assert.NotEmpty(t, h.Get("X-Response-Time"))
	assert.NotEmpty(t, h.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, h.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))
}

func TestRouter_RateLimitExhaustionIs429(t *testing.T) {
	router, recorder := newTestRouter(t, 3)
	defer recorder.Close()

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = doJSON(t, router, http.MethodGet, "/live", "")
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestRouter_InvalidShortenPayloadIs400(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/url", `{"url":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_UserRoutesRequireAuth(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/user/urls", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRoutesGated(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/admin/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_MetricsEndpointServesPrometheus(t *testing.T) {
	router, recorder := newTestRouter(t, 500)
	defer recorder.Close()

	rec := doJSON(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
