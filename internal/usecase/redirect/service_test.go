package redirect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/geoip"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/usecase/analytics"
)

// --- fakes ---

type fakeURLRepo struct {
	mu     sync.Mutex
	byCode map[string]*domain.ShortURL
}

func (r *fakeURLRepo) GetByShortCode(_ context.Context, _ domain.Querier, code string) (*domain.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byCode[code]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeURLRepo) IncrementClicks(_ context.Context, _ domain.Querier, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byCode {
		if u.ID == id {
			u.Clicks++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeURLRepo) clicks(code string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCode[code].Clicks
}

func (r *fakeURLRepo) Insert(context.Context, domain.Querier, *domain.ShortURL) error { return nil }
func (r *fakeURLRepo) FindReusable(context.Context, domain.Querier, int64, string, *string, bool, *time.Time) (*domain.ShortURL, error) {
	return nil, domain.ErrNotFound
}
func (r *fakeURLRepo) Deactivate(context.Context, domain.Querier, int64) error { return nil }
func (r *fakeURLRepo) Delete(context.Context, domain.Querier, int64) error     { return nil }
func (r *fakeURLRepo) AttachOwner(context.Context, domain.Querier, int64, string, bool) error {
	return nil
}
func (r *fakeURLRepo) DetachOwner(context.Context, domain.Querier, int64, string) error { return nil }
func (r *fakeURLRepo) OwnerOf(context.Context, domain.Querier, int64) (string, bool, error) {
	return "", false, nil
}
func (r *fakeURLRepo) ListForUser(context.Context, domain.Querier, string, domain.ListParams) ([]*domain.ShortURL, int64, error) {
	return nil, 0, nil
}
func (r *fakeURLRepo) List(context.Context, domain.Querier, domain.ListParams) ([]*domain.ShortURL, int64, error) {
	return nil, 0, nil
}
func (r *fakeURLRepo) Stats(context.Context, domain.Querier, string) (*domain.URLStats, error) {
	return nil, domain.ErrNotFound
}

type fakeAnalyticsRepo struct {
	mu     sync.Mutex
	events []*domain.AnalyticEvent
}

func (r *fakeAnalyticsRepo) Insert(_ context.Context, _ domain.Querier, ev *domain.AnalyticEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeAnalyticsRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(domain.Querier) error) error { return fn(nil) }

type nopEngineMetrics struct{}

func (nopEngineMetrics) IncShorten(string)       {}
func (nopEngineMetrics) IncRedirect(string)      {}
func (nopEngineMetrics) IncSafetyVerdict(string) {}

// --- harness ---

func newTestRedirect(t *testing.T, urls *fakeURLRepo) (*Service, *fakeAnalyticsRepo, *domain.FixedClock, *analytics.Recorder) {
	t.Helper()

	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	events := &fakeAnalyticsRepo{}
	recorder := analytics.NewRecorder(events, nil, 1, 16, slog.Default())
	ingestor := analytics.NewIngestor(geoip.Noop{})
	svc := NewService(urls, nil, fakeTx{}, clock, ingestor, recorder, nopEngineMetrics{})
	return svc, events, clock, recorder
}

func click() analytics.ClickInfo {
	return analytics.ClickInfo{IP: "203.0.113.9", UserAgent: "Mozilla/5.0 (Windows NT 10.0)", Referer: "https://ref.example/"}
}

func plainURL(code string) *domain.ShortURL {
	return &domain.ShortURL{
		ID:          1,
		DomainID:    1,
		OriginalURL: "https://example.com/",
		ShortCode:   code,
		IsActive:    true,
		CreatedAt:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

// --- tests ---

func TestResolve_RedirectsAndCountsClick(t *testing.T) {
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": plainURL("aBc1234")}}
	svc, events, _, recorder := newTestRedirect(t, urls)

	res, err := svc.Resolve(context.Background(), "aBc1234", click())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, "https://example.com/", res.Target)

	// The counter update is observable before the redirect returns.
	assert.Equal(t, int64(1), urls.clicks("aBc1234"))

	// The analytic row may be deferred; close drains the queue.
	recorder.Close()
	assert.Equal(t, 1, events.count())
}

func TestResolve_ClicksAccumulate(t *testing.T) {
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": plainURL("aBc1234")}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	for i := 0; i < 5; i++ {
		_, err := svc.Resolve(context.Background(), "aBc1234", click())
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), urls.clicks("aBc1234"))
}

func TestResolve_UnknownCode(t *testing.T) {
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	_, err := svc.Resolve(context.Background(), "zzzzzzz", click())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolve_InactiveIs404(t *testing.T) {
	u := plainURL("aBc1234")
	u.IsActive = false
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": u}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	_, err := svc.Resolve(context.Background(), "aBc1234", click())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolve_ExpiredGoesToExpiredPage(t *testing.T) {
	u := plainURL("aBc1234")
	expires := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	u.ExpiresAt = &expires
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": u}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	res, err := svc.Resolve(context.Background(), "aBc1234", click())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, res.Outcome)
	assert.Contains(t, res.Target, "expired/?")
	assert.Contains(t, res.Target, "original_url=")
	assert.Contains(t, res.Target, "expired_at=")
	assert.Zero(t, urls.clicks("aBc1234"), "expired resolutions do not count clicks")
}

func TestResolve_ExpiryBoundaryIsExclusive(t *testing.T) {
	u := plainURL("aBc1234")
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": u}}
	svc, _, clock, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	expires := clock.Now()
	u.ExpiresAt = &expires

	res, err := svc.Resolve(context.Background(), "aBc1234", click())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, res.Outcome, "expiring exactly now is expired")
}

func TestResolve_PasswordProtectedServesChallenge(t *testing.T) {
	u := plainURL("aBc1234")
	hash, err := security.HashPassword("hunter2")
	require.NoError(t, err)
	u.PasswordHash = &hash
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": u}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	res, err := svc.Resolve(context.Background(), "aBc1234", click())
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallenge, res.Outcome)
	assert.Zero(t, urls.clicks("aBc1234"), "challenges do not count clicks")
}

func TestVerifyPassword(t *testing.T) {
	u := plainURL("aBc1234")
	hash, err := security.HashPassword("hunter2")
	require.NoError(t, err)
	u.PasswordHash = &hash
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": u}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	// Wrong password: unauthorized, no click.
	_, err = svc.VerifyPassword(context.Background(), "aBc1234", "letmein", click())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Zero(t, urls.clicks("aBc1234"))

	// Right password: redirect, click counted.
	res, err := svc.VerifyPassword(context.Background(), "aBc1234", "hunter2", click())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, "https://example.com/", res.Target)
	assert.Equal(t, int64(1), urls.clicks("aBc1234"))
}

func TestVerifyPassword_NoPasswordSetStillRedirects(t *testing.T) {
	urls := &fakeURLRepo{byCode: map[string]*domain.ShortURL{"aBc1234": plainURL("aBc1234")}}
	svc, _, _, recorder := newTestRedirect(t, urls)
	defer recorder.Close()

	res, err := svc.VerifyPassword(context.Background(), "aBc1234", "", click())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, int64(1), urls.clicks("aBc1234"))
}
