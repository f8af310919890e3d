package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// UserRepo implements domain.UserRepo for PostgreSQL.
type UserRepo struct{}

// NewUserRepo creates a new UserRepo instance.
func NewUserRepo() *UserRepo {
	return &UserRepo{}
}

// Create stores a new user and its zeroed login-attempt record.
// It returns domain.ErrConflict if the email is already taken.
func (r *UserRepo) Create(ctx context.Context, q domain.Querier, u *domain.User) error {
	const op = "userRepo.Create"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, lower(trim($2)), $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO login_attempts (user_id, attempts)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: attempts row: %w", op, err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastLoginAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by id. Returns domain.ErrNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, q domain.Querier, id string) (*domain.User, error) {
	const op = "userRepo.GetByID"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := scanUser(dbtx.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at
		FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return u, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepo) GetByEmail(ctx context.Context, q domain.Querier, email string) (*domain.User, error) {
	const op = "userRepo.GetByEmail"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := scanUser(dbtx.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at
		FROM users WHERE email = lower(trim($1))`, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return u, nil
}

// Delete removes a user. Sessions, login attempts, and ownership edges
// cascade at the schema level.
func (r *UserRepo) Delete(ctx context.Context, q domain.Querier, id string) error {
	const op = "userRepo.Delete"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := dbtx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// List returns a page of users plus the total count.
func (r *UserRepo) List(ctx context.Context, q domain.Querier, p domain.ListParams) ([]*domain.User, int64, error) {
	const op = "userRepo.List"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var total int64
	if err := dbtx.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at
		FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.LastLoginAt); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", op, err)
	}
	return users, total, nil
}

// StampLastLogin records the time of a successful login.
func (r *UserRepo) StampLastLogin(ctx context.Context, q domain.Querier, id string, at time.Time) error {
	const op = "userRepo.StampLastLogin"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := dbtx.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetLoginAttempts loads the user's login-attempt record.
func (r *UserRepo) GetLoginAttempts(ctx context.Context, q domain.Querier, userID string) (*domain.LoginAttemptRecord, error) {
	const op = "userRepo.GetLoginAttempts"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec domain.LoginAttemptRecord
	err = dbtx.QueryRow(ctx, `
		SELECT user_id, attempts, last_failed_at, locked_until, last_success_at
		FROM login_attempts WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.Attempts, &rec.LastFailedAt, &rec.LockedUntil, &rec.LastSuccessAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return &rec, nil
}

// RecordLoginFailure increments attempts, stamps last_failed_at, and arms
// locked_until when the caller decided the threshold was crossed.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, q domain.Querier, userID string, at time.Time, lockedUntil *time.Time) error {
	const op = "userRepo.RecordLoginFailure"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = dbtx.Exec(ctx, `
		UPDATE login_attempts
		SET attempts = attempts + 1,
		    last_failed_at = $2,
		    locked_until = COALESCE($3, locked_until)
		WHERE user_id = $1`,
		userID, at, lockedUntil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetLoginAttempts zeroes the record after a successful login.
func (r *UserRepo) ResetLoginAttempts(ctx context.Context, q domain.Querier, userID string, at time.Time) error {
	const op = "userRepo.ResetLoginAttempts"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = dbtx.Exec(ctx, `
		UPDATE login_attempts
		SET attempts = 0,
		    last_failed_at = NULL,
		    locked_until = NULL,
		    last_success_at = $2
		WHERE user_id = $1`,
		userID, at,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
