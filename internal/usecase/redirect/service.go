// Package redirect implements short-code resolution: expiry and password
// gating, the click-counter update, and analytic-event enqueueing.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/shared/metrics"
	"github.com/iruldev/shortlink-api/internal/usecase/analytics"
)

// Outcome tells the handler how to respond to a resolution.
type Outcome int

// Resolution outcomes.
const (
	// OutcomeRedirect sends the client to Target.
	OutcomeRedirect Outcome = iota
	// OutcomeExpired sends the client to the expired page.
	OutcomeExpired
	// OutcomeChallenge serves the password challenge page.
	OutcomeChallenge
)

// Resolution is the result of resolving a short code.
type Resolution struct {
	Outcome Outcome
	// Target is the destination for OutcomeRedirect, or the expired-page
	// URL (relative, pre-encoded) for OutcomeExpired.
	Target string
	URL    *domain.ShortURL
}

// Service resolves short codes.
type Service struct {
	urls     domain.URLRepo
	querier  domain.Querier
	tx       domain.TxManager
	clock    domain.Clock
	ingestor *analytics.Ingestor
	recorder *analytics.Recorder
	metrics  metrics.EngineMetrics
}

// NewService creates a redirect Service.
func NewService(
	urls domain.URLRepo,
	querier domain.Querier,
	tx domain.TxManager,
	clock domain.Clock,
	ingestor *analytics.Ingestor,
	recorder *analytics.Recorder,
	m metrics.EngineMetrics,
) *Service {
	return &Service{
		urls:     urls,
		querier:  querier,
		tx:       tx,
		clock:    clock,
		ingestor: ingestor,
		recorder: recorder,
		metrics:  m,
	}
}

// Resolve looks up shortCode and decides the response: 404 for missing or
// inactive rows (domain.ErrNotFound), the expired page past expiry, the
// challenge page for password-protected links, else a redirect with the
// click recorded first.
func (s *Service) Resolve(ctx context.Context, shortCode string, click analytics.ClickInfo) (*Resolution, error) {
	const op = "redirect.Resolve"

	u, err := s.urls.GetByShortCode(ctx, s.querier, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.IncRedirect("not_found")
			return nil, domain.WrapError(domain.ErrNotFound, "short code not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !u.IsActive {
		s.metrics.IncRedirect("not_found")
		return nil, domain.WrapError(domain.ErrNotFound, "short code not found")
	}

	if u.Expired(s.clock.Now()) {
		s.metrics.IncRedirect("expired")
		return &Resolution{Outcome: OutcomeExpired, Target: s.expiredPage(u), URL: u}, nil
	}

	if u.PasswordProtected() {
		s.metrics.IncRedirect("challenged")
		return &Resolution{Outcome: OutcomeChallenge, URL: u}, nil
	}

	if err := s.recordClick(ctx, u, click); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.IncRedirect("redirected")
	return &Resolution{Outcome: OutcomeRedirect, Target: u.OriginalURL, URL: u}, nil
}

// VerifyPassword re-loads the row and checks the submitted password.
// Wrong passwords return domain.ErrUnauthorized so the handler re-serves the
// challenge with a 401; matches record the click and redirect.
func (s *Service) VerifyPassword(ctx context.Context, shortCode, password string, click analytics.ClickInfo) (*Resolution, error) {
	const op = "redirect.VerifyPassword"

	u, err := s.urls.GetByShortCode(ctx, s.querier, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, "short code not found")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !u.IsActive {
		return nil, domain.WrapError(domain.ErrNotFound, "short code not found")
	}

	if u.Expired(s.clock.Now()) {
		return &Resolution{Outcome: OutcomeExpired, Target: s.expiredPage(u), URL: u}, nil
	}

	if u.PasswordProtected() {
		if !security.VerifyPassword(*u.PasswordHash, password) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "wrong password")
		}
	}

	if err := s.recordClick(ctx, u, click); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.IncRedirect("redirected")
	return &Resolution{Outcome: OutcomeRedirect, Target: u.OriginalURL, URL: u}, nil
}

// recordClick bumps the atomic counter before the redirect is returned; the
// analytic row is deferred to the recorder's workers.
func (s *Service) recordClick(ctx context.Context, u *domain.ShortURL, click analytics.ClickInfo) error {
	if err := s.urls.IncrementClicks(ctx, s.querier, u.ID); err != nil {
		return err
	}
	u.Clicks++

	s.recorder.Record(s.ingestor.Build(u.ID, click, s.clock.Now()))
	return nil
}

// expiredPage builds the relative expired-page URL with the original
// destination and expiry stamped into the query.
func (s *Service) expiredPage(u *domain.ShortURL) string {
	q := url.Values{}
	q.Set("original_url", u.OriginalURL)
	if u.ExpiresAt != nil {
		q.Set("expired_at", u.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	return "expired/?" + q.Encode()
}
