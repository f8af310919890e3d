// Package domainsvc canonicalises destination URLs and runs the tiered
// safety screen: cached verdict first, then the threat-intelligence API.
package domainsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/safebrowsing"
	"github.com/iruldev/shortlink-api/internal/shared/metrics"
)

// Verdict values stored in the safe_domains cache.
const (
	verdictSafe   = "safe"
	verdictUnsafe = "unsafe"
)

// Service canonicalises URLs and screens their domains.
type Service struct {
	cache   domain.Cache
	checker safebrowsing.Checker
	domains domain.DomainRepo
	querier domain.Querier
	tx      domain.TxManager
	logger  *slog.Logger
	metrics metrics.EngineMetrics

	cacheTTL time.Duration
}

// NewService creates a domain Service.
func NewService(
	cache domain.Cache,
	checker safebrowsing.Checker,
	domains domain.DomainRepo,
	querier domain.Querier,
	tx domain.TxManager,
	cacheTTL time.Duration,
	logger *slog.Logger,
	m metrics.EngineMetrics,
) *Service {
	return &Service{
		cache:    cache,
		checker:  checker,
		domains:  domains,
		querier:  querier,
		tx:       tx,
		logger:   logger,
		metrics:  m,
		cacheTTL: cacheTTL,
	}
}

// Canonicalize reduces a URL to {scheme}://{host}/. Inputs without a scheme
// or host are rejected with domain.ErrValidation.
func Canonicalize(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.WrapError(domain.ErrValidation, "malformed URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", domain.WrapError(domain.ErrValidation, "URL must include scheme and host")
	}
	return parsed.Scheme + "://" + parsed.Host + "/", nil
}

// EnsureDomain canonicalises raw and upserts its LinkDomain row.
func (s *Service) EnsureDomain(ctx context.Context, raw string) (*domain.LinkDomain, string, error) {
	const op = "domainsvc.EnsureDomain"

	canonical, err := Canonicalize(raw)
	if err != nil {
		return nil, "", err
	}

	d, err := s.domains.Upsert(ctx, s.querier, canonical, domain.HashURL(canonical))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	return d, canonical, nil
}

// Screen runs the tiered safety screen for a canonical domain URL:
//
//  1. a cached verdict wins outright;
//  2. otherwise the threat-intel API is consulted;
//  3. an unsafe verdict is cached, persisted on the Domain row (cascading
//     deletion of its URLs), and returned;
//  4. a safe verdict is cached and returned;
//  5. upstream failure fails closed without caching.
func (s *Service) Screen(ctx context.Context, d *domain.LinkDomain) (bool, error) {
	const op = "domainsvc.Screen"

	cacheKey := domain.CacheKeySafeDomains + d.URL

	if verdict, err := s.cache.Get(ctx, cacheKey); err == nil {
		s.metrics.IncSafetyVerdict("cache_hit")
		return verdict == verdictSafe, nil
	}

	unsafe, err := s.checker.Check(ctx, d.URL)
	if err != nil {
		// Fail closed: the link is refused, but the verdict is not cached so
		// a healthy upstream can clear the domain later.
		s.metrics.IncSafetyVerdict("upstream_error")
		s.logger.ErrorContext(ctx, "safety screen upstream failure",
			"domain", d.URL, "err", err)
		return false, nil
	}

	if unsafe {
		s.metrics.IncSafetyVerdict("unsafe")
		if err := s.cache.Set(ctx, cacheKey, verdictUnsafe, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "verdict cache write failed", "err", err)
		}
		if err := s.markInsecure(ctx, d); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist unsafe verdict",
				"domain", d.URL, "err", err)
		}
		return false, nil
	}

	s.metrics.IncSafetyVerdict("safe")
	if err := s.cache.Set(ctx, cacheKey, verdictSafe, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "verdict cache write failed", "err", err)
	}
	return true, nil
}

// markInsecure flips is_secure and removes the domain's URLs atomically.
func (s *Service) markInsecure(ctx context.Context, d *domain.LinkDomain) error {
	const op = "domainsvc.markInsecure"

	if err := s.tx.WithTx(ctx, func(tx domain.Querier) error {
		return s.domains.MarkInsecure(ctx, tx, d.ID)
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.IsSecure = false
	return nil
}
