package postgres

import (
	"context"
	"fmt"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// DomainRepo implements domain.DomainRepo for PostgreSQL.
type DomainRepo struct{}

// NewDomainRepo creates a new DomainRepo instance.
func NewDomainRepo() *DomainRepo {
	return &DomainRepo{}
}

// Upsert inserts the domain on first sighting and returns the row either way.
// ON CONFLICT DO NOTHING keeps concurrent first sightings race-free; the
// follow-up select covers the do-nothing path.
func (r *DomainRepo) Upsert(ctx context.Context, q domain.Querier, url, urlHash string) (*domain.LinkDomain, error) {
	const op = "domainRepo.Upsert"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := dbtx.Exec(ctx, `
		INSERT INTO domains (url, url_hash, is_secure)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (url_hash) DO NOTHING`,
		url, urlHash,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var d domain.LinkDomain
	err = dbtx.QueryRow(ctx, `
		SELECT id, url, url_hash, is_secure FROM domains WHERE url_hash = $1`,
		urlHash,
	).Scan(&d.ID, &d.URL, &d.URLHash, &d.IsSecure)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return &d, nil
}

// GetByHash loads a domain by its canonical URL hash.
func (r *DomainRepo) GetByHash(ctx context.Context, q domain.Querier, urlHash string) (*domain.LinkDomain, error) {
	const op = "domainRepo.GetByHash"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var d domain.LinkDomain
	err = dbtx.QueryRow(ctx, `
		SELECT id, url, url_hash, is_secure FROM domains WHERE url_hash = $1`,
		urlHash,
	).Scan(&d.ID, &d.URL, &d.URLHash, &d.IsSecure)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return &d, nil
}

// MarkInsecure flips is_secure to false and deletes the domain's short URLs.
// Run inside a transaction so a half-applied verdict cannot survive.
func (r *DomainRepo) MarkInsecure(ctx context.Context, q domain.Querier, id int64) error {
	const op = "domainRepo.MarkInsecure"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := dbtx.Exec(ctx, `UPDATE domains SET is_secure = FALSE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := dbtx.Exec(ctx, `DELETE FROM urls WHERE domain_id = $1`, id); err != nil {
		return fmt.Errorf("%s: delete urls: %w", op, err)
	}
	return nil
}

// List returns a page of domains plus the total count.
func (r *DomainRepo) List(ctx context.Context, q domain.Querier, p domain.ListParams) ([]*domain.LinkDomain, int64, error) {
	const op = "domainRepo.List"

	dbtx, err := getDBTX(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	p = p.Normalize()

	var total int64
	if err := dbtx.QueryRow(ctx, `SELECT count(*) FROM domains`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	rows, err := dbtx.Query(ctx, `
		SELECT id, url, url_hash, is_secure FROM domains
		ORDER BY id LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var domains []*domain.LinkDomain
	for rows.Next() {
		var d domain.LinkDomain
		if err := rows.Scan(&d.ID, &d.URL, &d.URLHash, &d.IsSecure); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		domains = append(domains, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", op, err)
	}
	return domains, total, nil
}
