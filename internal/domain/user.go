package domain

import "time"

// User is a registered account. Emails are stored lowercase and trimmed and
// are unique case-insensitively. PasswordHash is a bcrypt hash and must never
// cross a transport boundary.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// LoginAttemptRecord tracks failed credential attempts for a user.
// One record exists per user, created together with the user row.
// While LockedUntil is in the future, authentication is rejected with 403
// regardless of credential validity.
type LoginAttemptRecord struct {
	UserID        string
	Attempts      int
	LastFailedAt  *time.Time
	LockedUntil   *time.Time
	LastSuccessAt *time.Time
}

// Locked reports whether the record is inside a lockout window at now.
func (r *LoginAttemptRecord) Locked(now time.Time) bool {
	return r.LockedUntil != nil && r.LockedUntil.After(now)
}

// Session is a refresh-token grant bound to a device fingerprint.
// A session is unique per (user_id, device_ip, user_agent); re-authenticating
// from the same device updates the existing row rather than creating another.
type Session struct {
	ID           int64
	UserID       string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Revoked      bool
	RevokedAt    *time.Time
	DeviceName   *string
	DeviceIP     string
	UserAgent    *string
	LastUsedAt   time.Time
}

// Usable reports whether the session may still mint access tokens at now.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
