// Package session implements the credential subsystem: signup, login with
// lockout, refresh, logout, and session enumeration.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/security"
)

// Device identifies the client device for session upserts.
type Device struct {
	IP        string
	UserAgent string
	Name      string
}

// TokenPair carries freshly minted credentials plus their expiries.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service implements the session and credential subsystem.
type Service struct {
	users    domain.UserRepo
	sessions domain.SessionRepo
	querier  domain.Querier
	tx       domain.TxManager
	tokens   *security.TokenService
	clock    domain.Clock
	logger   *slog.Logger

	maxFailedAttempts int
	lockTime          time.Duration
}

// NewService creates a session Service.
func NewService(
	users domain.UserRepo,
	sessions domain.SessionRepo,
	querier domain.Querier,
	tx domain.TxManager,
	tokens *security.TokenService,
	clock domain.Clock,
	maxFailedAttempts int,
	lockTime time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:             users,
		sessions:          sessions,
		querier:           querier,
		tx:                tx,
		tokens:            tokens,
		clock:             clock,
		logger:            logger,
		maxFailedAttempts: maxFailedAttempts,
		lockTime:          lockTime,
	}
}

// Signup creates a user. Returns domain.ErrConflict when the email is taken.
func (s *Service) Signup(ctx context.Context, email, password string) (*domain.User, error) {
	const op = "session.Signup"

	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.tx.WithTx(ctx, func(tx domain.Querier) error {
		return s.users.Create(ctx, tx, u)
	}); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.WrapError(domain.ErrConflict, "email already registered")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Login verifies credentials under the lockout state machine and upserts the
// device session. Invalid credentials return domain.ErrUnauthorized; a
// locked account returns domain.ErrForbidden regardless of the password.
func (s *Service) Login(ctx context.Context, email, password string, device Device) (*domain.User, *TokenPair, error) {
	const op = "session.Login"

	now := s.clock.Now()

	user, err := s.users.GetByEmail(ctx, s.querier, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.WrapError(domain.ErrUnauthorized, "invalid credentials")
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	attempts, err := s.users.GetLoginAttempts(ctx, s.querier, user.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Lockout wins over credential validity.
	if attempts != nil && attempts.Locked(now) {
		s.logger.WarnContext(ctx, "login rejected, account locked",
			"user_id", user.ID, "locked_until", attempts.LockedUntil)
		return nil, nil, domain.WrapError(domain.ErrForbidden, "account temporarily locked")
	}

	if !security.VerifyPassword(user.PasswordHash, password) {
		locked, err := s.recordFailure(ctx, user.ID, attempts, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to record login failure", "err", err)
		}
		if locked {
			// The failure that crosses the threshold is already rejected as
			// locked, not merely unauthorized.
			return nil, nil, domain.WrapError(domain.ErrForbidden, "account temporarily locked")
		}
		return nil, nil, domain.WrapError(domain.ErrUnauthorized, "invalid credentials")
	}

	pair, err := s.establish(ctx, user.ID, device, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.tx.WithTx(ctx, func(tx domain.Querier) error {
		if err := s.users.ResetLoginAttempts(ctx, tx, user.ID, now); err != nil {
			return err
		}
		return s.users.StampLastLogin(ctx, tx, user.ID, now)
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to reset login attempts", "err", err)
	}

	return user, pair, nil
}

// recordFailure advances the lockout state machine after a failed verify.
// Returns true when this failure tripped the lock.
func (s *Service) recordFailure(ctx context.Context, userID string, attempts *domain.LoginAttemptRecord, now time.Time) (bool, error) {
	var lockedUntil *time.Time
	if attempts != nil && attempts.Attempts+1 >= s.maxFailedAttempts {
		t := now.Add(s.lockTime)
		lockedUntil = &t
	}
	err := s.users.RecordLoginFailure(ctx, s.querier, userID, now, lockedUntil)
	return lockedUntil != nil && err == nil, err
}

// establish mints a token pair and upserts the device session.
func (s *Service) establish(ctx context.Context, userID string, device Device, now time.Time) (*TokenPair, error) {
	access, accessExp, err := s.tokens.MintAccessToken(userID, now)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp := s.tokens.MintRefreshToken(now)

	sess := &domain.Session{
		UserID:       userID,
		RefreshToken: refresh,
		IssuedAt:     now,
		ExpiresAt:    refreshExp,
		DeviceIP:     device.IP,
		LastUsedAt:   now,
	}
	if device.UserAgent != "" {
		ua := device.UserAgent
		sess.UserAgent = &ua
	}
	if device.Name != "" {
		name := device.Name
		sess.DeviceName = &name
	}

	if err := s.sessions.Upsert(ctx, s.querier, sess); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token value itself is preserved; only last_used_at moves.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "session.Refresh"

	now := s.clock.Now()

	sess, err := s.sessions.GetByRefreshToken(ctx, s.querier, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "invalid refresh token")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !sess.Usable(now) {
		return nil, domain.WrapError(domain.ErrUnauthorized, "refresh token expired or revoked")
	}

	access, accessExp, err := s.tokens.MintAccessToken(sess.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.Touch(ctx, s.querier, sess.ID, now); err != nil {
		s.logger.WarnContext(ctx, "session touch failed", "err", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     sess.RefreshToken,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}

// Logout revokes the session holding refreshToken. Unknown tokens are a
// no-op: logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "session.Logout"

	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, s.querier, refreshToken, s.clock.Now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Sessions lists the user's sessions.
func (s *Service) Sessions(ctx context.Context, userID string, p domain.ListParams) ([]*domain.Session, int64, error) {
	return s.sessions.ListForUser(ctx, s.querier, userID, p)
}

// UserID resolves an access token to its subject.
func (s *Service) UserID(token string) (string, error) {
	return s.tokens.ParseAccessToken(token, s.clock.Now)
}
