package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// SessionRepo implements domain.SessionRepo for PostgreSQL.
type SessionRepo struct{}

// NewSessionRepo creates a new SessionRepo instance.
func NewSessionRepo() *SessionRepo {
	return &SessionRepo{}
}

const sessionColumns = `id, user_id, refresh_token, issued_at, expires_at,
	revoked, revoked_at, device_name, device_ip, user_agent, last_used_at`

// Upsert stores the session keyed by (user_id, device_ip, user_agent).
// Re-authenticating from the same device replaces the previous grant instead
// of accumulating rows.
func (r *SessionRepo) Upsert(ctx context.Context, q domain.Querier, s *domain.Session) error {
	const op = "sessionRepo.Upsert"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = dbtx.QueryRow(ctx, `
		INSERT INTO sessions (user_id, refresh_token, issued_at, expires_at,
			revoked, device_name, device_ip, user_agent, last_used_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7, $3)
		ON CONFLICT (user_id, device_ip, user_agent) DO UPDATE SET
			refresh_token = EXCLUDED.refresh_token,
			issued_at     = EXCLUDED.issued_at,
			expires_at    = EXCLUDED.expires_at,
			revoked       = FALSE,
			revoked_at    = NULL,
			device_name   = EXCLUDED.device_name,
			last_used_at  = EXCLUDED.last_used_at
		RETURNING id`,
		s.UserID, s.RefreshToken, s.IssuedAt, s.ExpiresAt,
		s.DeviceName, s.DeviceIP, s.UserAgent,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetByRefreshToken loads a session by its refresh token.
func (r *SessionRepo) GetByRefreshToken(ctx context.Context, q domain.Querier, token string) (*domain.Session, error) {
	const op = "sessionRepo.GetByRefreshToken"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var s domain.Session
	err = dbtx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1`, token).Scan(
		&s.ID, &s.UserID, &s.RefreshToken, &s.IssuedAt, &s.ExpiresAt,
		&s.Revoked, &s.RevokedAt, &s.DeviceName, &s.DeviceIP, &s.UserAgent, &s.LastUsedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return &s, nil
}

// Touch updates last_used_at on activity.
func (r *SessionRepo) Touch(ctx context.Context, q domain.Querier, id int64, at time.Time) error {
	const op = "sessionRepo.Touch"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := dbtx.Exec(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Revoke marks the session holding refreshToken as revoked.
func (r *SessionRepo) Revoke(ctx context.Context, q domain.Querier, refreshToken string, at time.Time) error {
	const op = "sessionRepo.Revoke"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = dbtx.Exec(ctx, `
		UPDATE sessions SET revoked = TRUE, revoked_at = $2
		WHERE refresh_token = $1 AND NOT revoked`,
		refreshToken, at,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeAllForUser revokes every live session of a user.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, q domain.Querier, userID string, at time.Time) error {
	const op = "sessionRepo.RevokeAllForUser"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = dbtx.Exec(ctx, `
		UPDATE sessions SET revoked = TRUE, revoked_at = $2
		WHERE user_id = $1 AND NOT revoked`,
		userID, at,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListForUser returns a page of the user's sessions, newest first.
func (r *SessionRepo) ListForUser(ctx context.Context, q domain.Querier, userID string, p domain.ListParams) ([]*domain.Session, int64, error) {
	const op = "sessionRepo.ListForUser"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var total int64
	if err := dbtx.QueryRow(ctx, `SELECT count(*) FROM sessions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 ORDER BY last_used_at DESC LIMIT $2 OFFSET $3`,
		userID, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.RefreshToken, &s.IssuedAt, &s.ExpiresAt,
			&s.Revoked, &s.RevokedAt, &s.DeviceName, &s.DeviceIP, &s.UserAgent, &s.LastUsedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", op, err)
	}
	return sessions, total, nil
}
