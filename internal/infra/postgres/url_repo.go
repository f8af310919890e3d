package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// URLRepo implements domain.URLRepo for PostgreSQL.
type URLRepo struct{}

// NewURLRepo creates a new URLRepo instance.
func NewURLRepo() *URLRepo {
	return &URLRepo{}
}

const urlColumns = `u.id, u.domain_id, u.original_url, u.original_url_hash,
	u.short_code, u.clicks, u.password_hash, u.title, u.descr,
	u.expires_at, u.is_active, u.created_at`

// Insert stores a new ShortURL. Returns domain.ErrConflict on a short_code
// unique violation so the engine can regenerate and retry, and
// domain.ErrValidation on a CHECK violation.
func (r *URLRepo) Insert(ctx context.Context, q domain.Querier, u *domain.ShortURL) error {
	const op = "urlRepo.Insert"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = dbtx.QueryRow(ctx, `
		INSERT INTO urls (domain_id, original_url, original_url_hash, short_code,
			password_hash, title, descr, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		RETURNING id`,
		u.DomainID, u.OriginalURL, u.OriginalURLHash, u.ShortCode,
		u.PasswordHash, u.Title, u.Descr, u.ExpiresAt, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classifyError(err))
	}
	u.IsActive = true
	return nil
}

// GetByShortCode loads a short URL by its code.
func (r *URLRepo) GetByShortCode(ctx context.Context, q domain.Querier, shortCode string) (*domain.ShortURL, error) {
	const op = "urlRepo.GetByShortCode"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var u domain.ShortURL
	err = dbtx.QueryRow(ctx, `
		SELECT `+urlColumns+` FROM urls u WHERE u.short_code = $1`,
		shortCode,
	).Scan(
		&u.ID, &u.DomainID, &u.OriginalURL, &u.OriginalURLHash,
		&u.ShortCode, &u.Clicks, &u.PasswordHash, &u.Title, &u.Descr,
		&u.ExpiresAt, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return &u, nil
}

// FindReusable looks up an active, unexpired row matching the dedup key with
// identical expiry/password/title semantics. Reuse never matches across
// differing password presence or titles.
func (r *URLRepo) FindReusable(ctx context.Context, q domain.Querier, domainID int64, urlHash string, title *string, hasPassword bool, expiresAt *time.Time) (*domain.ShortURL, error) {
	const op = "urlRepo.FindReusable"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var u domain.ShortURL
	err = dbtx.QueryRow(ctx, `
		SELECT `+urlColumns+` FROM urls u
		WHERE u.domain_id = $1
		  AND u.original_url_hash = $2
		  AND u.is_active
		  AND (u.expires_at IS NULL OR u.expires_at > now())
		  AND (u.password_hash IS NOT NULL) = $3
		  AND u.title IS NOT DISTINCT FROM $4
		  AND u.expires_at IS NOT DISTINCT FROM $5
		ORDER BY u.created_at DESC
		LIMIT 1`,
		domainID, urlHash, hasPassword, title, expiresAt,
	).Scan(
		&u.ID, &u.DomainID, &u.OriginalURL, &u.OriginalURLHash,
		&u.ShortCode, &u.Clicks, &u.PasswordHash, &u.Title, &u.Descr,
		&u.ExpiresAt, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return &u, nil
}

// IncrementClicks bumps the click counter through the database-side routine
// so concurrent resolutions commute.
func (r *URLRepo) IncrementClicks(ctx context.Context, q domain.Querier, id int64) error {
	const op = "urlRepo.IncrementClicks"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := dbtx.Exec(ctx, `SELECT increment_url_clicks($1)`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Deactivate soft-deletes the row.
func (r *URLRepo) Deactivate(ctx context.Context, q domain.Querier, id int64) error {
	const op = "urlRepo.Deactivate"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := dbtx.Exec(ctx, `UPDATE urls SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// Delete hard-deletes the row; analytic events cascade.
func (r *URLRepo) Delete(ctx context.Context, q domain.Querier, id int64) error {
	const op = "urlRepo.Delete"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := dbtx.Exec(ctx, `DELETE FROM urls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// AttachOwner inserts the ownership edge. A URL has at most one owner;
// attaching over an existing edge updates the favourite flag only.
func (r *URLRepo) AttachOwner(ctx context.Context, q domain.Querier, urlID int64, userID string, favorite bool) error {
	const op = "urlRepo.AttachOwner"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = dbtx.Exec(ctx, `
		INSERT INTO user_urls (url_id, user_id, is_favorite)
		VALUES ($1, $2, $3)
		ON CONFLICT (url_id, user_id) DO UPDATE SET is_favorite = EXCLUDED.is_favorite`,
		urlID, userID, favorite,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return nil
}

// DetachOwner removes the ownership edge.
func (r *URLRepo) DetachOwner(ctx context.Context, q domain.Querier, urlID int64, userID string) error {
	const op = "urlRepo.DetachOwner"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := dbtx.Exec(ctx, `DELETE FROM user_urls WHERE url_id = $1 AND user_id = $2`, urlID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// OwnerOf returns the owning user id, or ok=false for anonymous URLs.
func (r *URLRepo) OwnerOf(ctx context.Context, q domain.Querier, urlID int64) (string, bool, error) {
	const op = "urlRepo.OwnerOf"

	dbtx, err := getDBTX(q)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	var userID string
	err = dbtx.QueryRow(ctx, `SELECT user_id FROM user_urls WHERE url_id = $1`, urlID).Scan(&userID)
	if err != nil {
		if classified := classifyError(err); classified == domain.ErrNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return userID, true, nil
}

// ListForUser returns a page of the user's URLs, newest first.
func (r *URLRepo) ListForUser(ctx context.Context, q domain.Querier, userID string, p domain.ListParams) ([]*domain.ShortURL, int64, error) {
	const op = "urlRepo.ListForUser"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var total int64
	if err := dbtx.QueryRow(ctx, `
		SELECT count(*) FROM urls u
		JOIN user_urls uu ON uu.url_id = u.id
		WHERE uu.user_id = $1 AND u.is_active`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT `+urlColumns+` FROM urls u
		JOIN user_urls uu ON uu.url_id = u.id
		WHERE uu.user_id = $1 AND u.is_active
		ORDER BY u.created_at DESC LIMIT $2 OFFSET $3`,
		userID, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	urls, err := collectURLs(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return urls, total, nil
}

// List returns a page of all URLs (admin surface).
func (r *URLRepo) List(ctx context.Context, q domain.Querier, p domain.ListParams) ([]*domain.ShortURL, int64, error) {
	const op = "urlRepo.List"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var total int64
	if err := dbtx.QueryRow(ctx, `SELECT count(*) FROM urls`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT `+urlColumns+` FROM urls u
		ORDER BY u.created_at DESC LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	urls, err := collectURLs(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return urls, total, nil
}

type urlRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectURLs(rows urlRows) ([]*domain.ShortURL, error) {
	var urls []*domain.ShortURL
	for rows.Next() {
		var u domain.ShortURL
		if err := rows.Scan(
			&u.ID, &u.DomainID, &u.OriginalURL, &u.OriginalURLHash,
			&u.ShortCode, &u.Clicks, &u.PasswordHash, &u.Title, &u.Descr,
			&u.ExpiresAt, &u.IsActive, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		urls = append(urls, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return urls, nil
}

// Stats aggregates click analytics for a short code.
func (r *URLRepo) Stats(ctx context.Context, q domain.Querier, shortCode string) (*domain.URLStats, error) {
	const op = "urlRepo.Stats"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var s domain.URLStats
	var urlID int64
	err = dbtx.QueryRow(ctx, `
		SELECT u.id, u.short_code, u.original_url, u.clicks, u.created_at, u.expires_at,
		       (SELECT max(a.clicked_at) FROM url_analytics a WHERE a.url_id = u.id)
		FROM urls u WHERE u.short_code = $1 AND u.is_active`,
		shortCode,
	).Scan(&urlID, &s.ShortCode, &s.OriginalURL, &s.TotalClicks, &s.CreatedAt, &s.ExpiresAt, &s.LastClickAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}

	s.TopCountries = map[string]int64{}
	s.TopBrowsers = map[string]int64{}

	rows, err := dbtx.Query(ctx, `
		SELECT COALESCE(country_code, 'unknown'), count(*)
		FROM url_analytics WHERE url_id = $1
		GROUP BY 1 ORDER BY 2 DESC LIMIT 10`, urlID)
	if err != nil {
		return nil, fmt.Errorf("%s: countries: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		s.TopCountries[k] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	browserRows, err := dbtx.Query(ctx, `
		SELECT COALESCE(browser, 'unknown'), count(*)
		FROM url_analytics WHERE url_id = $1
		GROUP BY 1 ORDER BY 2 DESC LIMIT 10`, urlID)
	if err != nil {
		return nil, fmt.Errorf("%s: browsers: %w", op, err)
	}
	defer browserRows.Close()
	for browserRows.Next() {
		var k string
		var n int64
		if err := browserRows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		s.TopBrowsers[k] = n
	}
	if err := browserRows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return &s, nil
}
