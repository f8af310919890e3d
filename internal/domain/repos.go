package domain

import (
	"context"
	"time"
)

// UserRepo persists users and their login-attempt records.
type UserRepo interface {
	// Create inserts a user and its zeroed LoginAttemptRecord in one shot.
	// Returns ErrConflict when the email is already taken.
	Create(ctx context.Context, q Querier, u *User) error

	GetByID(ctx context.Context, q Querier, id string) (*User, error)
	GetByEmail(ctx context.Context, q Querier, email string) (*User, error)

	// Delete removes a user; owned URLs and sessions cascade.
	Delete(ctx context.Context, q Querier, id string) error

	List(ctx context.Context, q Querier, p ListParams) ([]*User, int64, error)

	StampLastLogin(ctx context.Context, q Querier, id string, at time.Time) error

	GetLoginAttempts(ctx context.Context, q Querier, userID string) (*LoginAttemptRecord, error)

	// RecordLoginFailure increments attempts, stamps last_failed_at, and arms
	// locked_until when the attempt count crossed the lockout threshold.
	RecordLoginFailure(ctx context.Context, q Querier, userID string, at time.Time, lockedUntil *time.Time) error

	// ResetLoginAttempts zeroes the record after a successful login and
	// stamps last_success_at.
	ResetLoginAttempts(ctx context.Context, q Querier, userID string, at time.Time) error
}

// SessionRepo persists refresh-token sessions.
type SessionRepo interface {
	// Upsert stores a session keyed by (user_id, device_ip, user_agent),
	// overwriting any previous grant for the same device.
	Upsert(ctx context.Context, q Querier, s *Session) error

	GetByRefreshToken(ctx context.Context, q Querier, token string) (*Session, error)

	// Touch updates last_used_at on activity.
	Touch(ctx context.Context, q Querier, id int64, at time.Time) error

	Revoke(ctx context.Context, q Querier, refreshToken string, at time.Time) error
	RevokeAllForUser(ctx context.Context, q Querier, userID string, at time.Time) error

	ListForUser(ctx context.Context, q Querier, userID string, p ListParams) ([]*Session, int64, error)
}

// DomainRepo persists canonicalised link domains.
type DomainRepo interface {
	// Upsert inserts the domain on first sighting (ON CONFLICT DO NOTHING)
	// and returns the row either way.
	Upsert(ctx context.Context, q Querier, url, urlHash string) (*LinkDomain, error)

	GetByHash(ctx context.Context, q Querier, urlHash string) (*LinkDomain, error)

	// MarkInsecure flips is_secure to false and deletes the domain's URLs.
	MarkInsecure(ctx context.Context, q Querier, id int64) error

	List(ctx context.Context, q Querier, p ListParams) ([]*LinkDomain, int64, error)
}

// URLRepo persists short URLs and ownership edges.
type URLRepo interface {
	// Insert stores a new ShortURL. Returns ErrConflict on a short_code
	// unique violation (caller regenerates and retries) and ErrValidation on
	// a CHECK violation.
	Insert(ctx context.Context, q Querier, u *ShortURL) error

	GetByShortCode(ctx context.Context, q Querier, shortCode string) (*ShortURL, error)

	// FindReusable looks up an active, unexpired row matching the dedup key
	// (domain_id, original_url_hash) with identical expiry/password/title
	// semantics. Returns ErrNotFound when nothing can be reused.
	FindReusable(ctx context.Context, q Querier, domainID int64, urlHash string, title *string, hasPassword bool, expiresAt *time.Time) (*ShortURL, error)

	// IncrementClicks atomically bumps the click counter.
	IncrementClicks(ctx context.Context, q Querier, id int64) error

	// Deactivate soft-deletes (is_active = false).
	Deactivate(ctx context.Context, q Querier, id int64) error

	// Delete hard-deletes the row; analytic events cascade.
	Delete(ctx context.Context, q Querier, id int64) error

	AttachOwner(ctx context.Context, q Querier, urlID int64, userID string, favorite bool) error
	DetachOwner(ctx context.Context, q Querier, urlID int64, userID string) error
	OwnerOf(ctx context.Context, q Querier, urlID int64) (string, bool, error)

	ListForUser(ctx context.Context, q Querier, userID string, p ListParams) ([]*ShortURL, int64, error)
	List(ctx context.Context, q Querier, p ListParams) ([]*ShortURL, int64, error)

	Stats(ctx context.Context, q Querier, shortCode string) (*URLStats, error)
}

// AnalyticsRepo persists click events.
type AnalyticsRepo interface {
	Insert(ctx context.Context, q Querier, ev *AnalyticEvent) error
}

// ViolationRepo persists rate-limit violations.
type ViolationRepo interface {
	// Upsert inserts the violation or, within the same window_start,
	// increments attempts and bumps last_attempt_at.
	Upsert(ctx context.Context, q Querier, v *RateLimitViolation) error

	List(ctx context.Context, q Querier, p ListParams) ([]*RateLimitViolation, int64, error)
}

// LogRepo persists structured log entries from the error funnel.
type LogRepo interface {
	Insert(ctx context.Context, q Querier, e *LogEntry) error
	List(ctx context.Context, q Querier, level *LogLevel, p ListParams) ([]*LogEntry, int64, error)
}
