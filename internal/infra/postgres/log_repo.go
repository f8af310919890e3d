package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// LogRepo implements domain.LogRepo for PostgreSQL.
type LogRepo struct{}

// NewLogRepo creates a new LogRepo instance.
func NewLogRepo() *LogRepo {
	return &LogRepo{}
}

// Insert persists one structured log entry.
func (r *LogRepo) Insert(ctx context.Context, q domain.Querier, e *domain.LogEntry) error {
	const op = "logRepo.Insert"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = b
		}
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO logs (level, message, path, method, status_code, user_id, stacktrace, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(e.Level), e.Message, e.Path, e.Method, e.StatusCode, e.UserID, e.Stacktrace, meta, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// List returns a page of log entries, optionally filtered by level.
func (r *LogRepo) List(ctx context.Context, q domain.Querier, level *domain.LogLevel, p domain.ListParams) ([]*domain.LogEntry, int64, error) {
	const op = "logRepo.List"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var levelStr *string
	if level != nil {
		s := string(*level)
		levelStr = &s
	}

	var total int64
	if err := dbtx.QueryRow(ctx,
		`SELECT count(*) FROM logs WHERE $1::text IS NULL OR level = $1`, levelStr,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT id, level, message, path, method, status_code, user_id, stacktrace, metadata, created_at
		FROM logs
		WHERE $1::text IS NULL OR level = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		levelStr, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var lvl string
		var meta []byte
		if err := rows.Scan(&e.ID, &lvl, &e.Message, &e.Path, &e.Method, &e.StatusCode, &e.UserID, &e.Stacktrace, &meta, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		e.Level = domain.LogLevel(lvl)
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, total, nil
}
