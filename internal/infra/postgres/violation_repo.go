package postgres

import (
	"context"
	"fmt"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// ViolationRepo implements domain.ViolationRepo for PostgreSQL.
type ViolationRepo struct{}

// NewViolationRepo creates a new ViolationRepo instance.
func NewViolationRepo() *ViolationRepo {
	return &ViolationRepo{}
}

// Upsert inserts the violation or, within the same window_start, increments
// attempts and bumps last_attempt_at.
func (r *ViolationRepo) Upsert(ctx context.Context, q domain.Querier, v *domain.RateLimitViolation) error {
	const op = "violationRepo.Upsert"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO rate_limit_violations
			(ip_address, path, method, window_start, attempts, created_at, last_attempt_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (ip_address, path, method, window_start) DO UPDATE SET
			attempts = rate_limit_violations.attempts + 1,
			last_attempt_at = EXCLUDED.last_attempt_at`,
		v.IPAddress, v.Path, v.Method, v.WindowStart, v.LastAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// List returns a page of violations, newest first.
func (r *ViolationRepo) List(ctx context.Context, q domain.Querier, p domain.ListParams) ([]*domain.RateLimitViolation, int64, error) {
	const op = "violationRepo.List"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var total int64
	if err := dbtx.QueryRow(ctx, `SELECT count(*) FROM rate_limit_violations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT ip_address, path, method, window_start, attempts, created_at, last_attempt_at
		FROM rate_limit_violations
		ORDER BY last_attempt_at DESC LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*domain.RateLimitViolation
	for rows.Next() {
		var v domain.RateLimitViolation
		if err := rows.Scan(&v.IPAddress, &v.Path, &v.Method, &v.WindowStart, &v.Attempts, &v.CreatedAt, &v.LastAttemptAt); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, total, nil
}
