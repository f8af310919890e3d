package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// PostgreSQL error codes relevant to the shortening engine.
const (
	// pgUniqueViolation is the code for unique constraint violations
	// (short_code collisions, duplicate emails, dedup races).
	pgUniqueViolation = "23505"
	// pgCheckViolation is the code for CHECK constraint violations
	// (malformed short codes, negative counters).
	pgCheckViolation = "23514"
)

// DBTX is the pgx query surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getDBTX extracts the underlying pgx interface from the domain.Querier.
// Repositories need concrete pgx row types for scanning.
func getDBTX(q domain.Querier) (DBTX, error) {
	switch v := q.(type) {
	case *PoolQuerier:
		pool := v.pool.Pool()
		if pool == nil {
			return nil, fmt.Errorf("database not connected")
		}
		return pool, nil
	case *TxQuerier:
		return v.tx, nil
	default:
		return nil, fmt.Errorf("unsupported querier type: %T", q)
	}
}

// classifyError maps driver errors onto domain error kinds: no rows becomes
// ErrNotFound, unique violations ErrConflict, check violations ErrValidation.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.ErrConflict
		case pgCheckViolation:
			return domain.ErrValidation
		}
	}
	return err
}
