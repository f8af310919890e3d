package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate runs idempotent schema migrations against the pool's database.
// Safe to call on every startup; goose tracks applied versions.
func Migrate(ctx context.Context, pool *Pool) error {
	const op = "postgres.Migrate"

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: dialect: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool.Pool())
	defer func() { _ = db.Close() }()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
