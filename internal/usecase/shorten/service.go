// Package shorten implements the shortening engine: domain upsert, safety
// gate, deduplicating reuse, short-code generation with bounded retry,
// ownership attachment, and the fire-and-forget QR artifact job.
package shorten

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/objectstore"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/shared/metrics"
	"github.com/iruldev/shortlink-api/internal/usecase/domainsvc"
)

// maxCodeAttempts bounds the short-code collision retry loop.
const maxCodeAttempts = 10

// CreateRequest is the validated input to Shorten.
type CreateRequest struct {
	URL        string
	Password   string
	Title      *string
	Descr      *string
	ExpiresAt  *time.Time
	IsFavorite bool
}

// Result is the outcome of a shorten call.
type Result struct {
	URL    *domain.ShortURL
	Reused bool
	QRURL  string
}

// Service is the shortening engine.
type Service struct {
	domains *domainsvc.Service
	urls    domain.URLRepo
	querier domain.Querier
	tx      domain.TxManager
	codes   domain.CodeGenerator
	clock   domain.Clock
	store   objectstore.Store
	logger  *slog.Logger
	metrics metrics.EngineMetrics

	baseURL   string
	qrEnabled bool
}

// NewService creates a shorten Service. baseURL is the public base for
// generated short links, embedded in QR payloads.
func NewService(
	domains *domainsvc.Service,
	urls domain.URLRepo,
	querier domain.Querier,
	tx domain.TxManager,
	codes domain.CodeGenerator,
	clock domain.Clock,
	store objectstore.Store,
	baseURL string,
	qrEnabled bool,
	logger *slog.Logger,
	m metrics.EngineMetrics,
) *Service {
	return &Service{
		domains:   domains,
		urls:      urls,
		querier:   querier,
		tx:        tx,
		codes:     codes,
		clock:     clock,
		store:     store,
		logger:    logger,
		metrics:   m,
		baseURL:   strings.TrimRight(baseURL, "/"),
		qrEnabled: qrEnabled,
	}
}

// Shorten creates or reuses a short URL for req. userID is empty for
// anonymous callers. Reuse requires an active, unexpired row with identical
// password/expiry/title semantics owned by the same slot.
func (s *Service) Shorten(ctx context.Context, req CreateRequest, userID string) (*Result, error) {
	const op = "shorten.Shorten"

	linkDomain, _, err := s.domains.EnsureDomain(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if !linkDomain.IsSecure {
		s.metrics.IncShorten("rejected")
		return nil, domain.WrapError(domain.ErrUnsafeDomain, "destination domain failed the safety screen")
	}
	safe, err := s.domains.Screen(ctx, linkDomain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !safe {
		s.metrics.IncShorten("rejected")
		return nil, domain.WrapError(domain.ErrUnsafeDomain, "destination domain failed the safety screen")
	}

	original := strings.TrimSpace(req.URL)
	urlHash := domain.HashURL(original)
	hasPassword := req.Password != ""

	// Dedup: hand back an existing equivalent row when the ownership slot
	// matches (same user already owns it, or both sides are anonymous).
	existing, err := s.urls.FindReusable(ctx, s.querier, linkDomain.ID, urlHash, req.Title, hasPassword, req.ExpiresAt)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		ownerID, owned, err := s.urls.OwnerOf(ctx, s.querier, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sameSlot := (!owned && userID == "") || (owned && ownerID == userID)
		if sameSlot {
			if userID != "" {
				if err := s.urls.AttachOwner(ctx, s.querier, existing.ID, userID, req.IsFavorite); err != nil {
					return nil, fmt.Errorf("%s: %w", op, err)
				}
			}
			s.metrics.IncShorten("reused")
			return &Result{URL: existing, Reused: true, QRURL: s.qrURL(existing.ShortCode)}, nil
		}
	}

	created, err := s.insertWithRetry(ctx, req, linkDomain.ID, original, urlHash, userID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncShorten("created")
	s.spawnQRJob(created.ShortCode)
	return &Result{URL: created, QRURL: s.qrURL(created.ShortCode)}, nil
}

// insertWithRetry generates codes and inserts until the unique constraint
// stops colliding or the attempt budget runs out. The insert and the
// ownership edge commit in one transaction.
func (s *Service) insertWithRetry(ctx context.Context, req CreateRequest, domainID int64, original, urlHash, userID string) (*domain.ShortURL, error) {
	const op = "shorten.insertWithRetry"

	var passwordHash *string
	if req.Password != "" {
		hash, err := security.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		passwordHash = &hash
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: generate code: %w", op, err)
		}

		u := &domain.ShortURL{
			DomainID:        domainID,
			OriginalURL:     original,
			OriginalURLHash: urlHash,
			ShortCode:       code,
			PasswordHash:    passwordHash,
			Title:           req.Title,
			Descr:           req.Descr,
			ExpiresAt:       req.ExpiresAt,
			CreatedAt:       s.clock.Now(),
		}

		err = s.tx.WithTx(ctx, func(tx domain.Querier) error {
			if err := s.urls.Insert(ctx, tx, u); err != nil {
				return err
			}
			if userID != "" {
				return s.urls.AttachOwner(ctx, tx, u.ID, userID, req.IsFavorite)
			}
			return nil
		})
		if err == nil {
			return u, nil
		}
		if errors.Is(err, domain.ErrConflict) {
			continue // collision, regenerate
		}
		if errors.Is(err, domain.ErrValidation) {
			return nil, domain.WrapError(domain.ErrValidation, "short URL failed a database constraint")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return nil, domain.WrapError(domain.ErrInternal,
		fmt.Sprintf("short-code generation exhausted %d attempts", maxCodeAttempts))
}

func (s *Service) qrURL(shortCode string) string {
	if !s.qrEnabled {
		return ""
	}
	return s.store.URL(shortCode + ".png")
}

// spawnQRJob renders and uploads the QR artifact fire-and-forget. Failures
// are fail-soft: the short URL is returned without its QR.
func (s *Service) spawnQRJob(shortCode string) {
	if !s.qrEnabled {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		png, err := qrcode.Encode(s.shortLink(shortCode), qrcode.Medium, 256)
		if err != nil {
			s.logger.Warn("qr render failed", "short_code", shortCode, "err", err)
			return
		}
		if err := s.store.Put(ctx, shortCode+".png", png, "image/png"); err != nil {
			s.logger.Warn("qr upload failed", "short_code", shortCode, "err", err)
		}
	}()
}

// shortLink renders the canonical short link embedded in QR payloads.
func (s *Service) shortLink(shortCode string) string {
	return s.baseURL + "/api/v1/" + shortCode
}
