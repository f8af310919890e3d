package postgres

import (
	"context"
	"fmt"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// AnalyticsRepo implements domain.AnalyticsRepo for PostgreSQL.
type AnalyticsRepo struct{}

// NewAnalyticsRepo creates a new AnalyticsRepo instance.
func NewAnalyticsRepo() *AnalyticsRepo {
	return &AnalyticsRepo{}
}

// Insert appends one click event.
func (r *AnalyticsRepo) Insert(ctx context.Context, q domain.Querier, ev *domain.AnalyticEvent) error {
	const op = "analyticsRepo.Insert"

	dbtx, err := getDBTX(q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO url_analytics (url_id, clicked_at, ip_address, country_code,
			city, user_agent, referer, device_type, browser, os)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.URLID, ev.ClickedAt, ev.IPAddress, ev.CountryCode,
		ev.City, ev.UserAgent, ev.Referer, string(ev.DeviceType), ev.Browser, ev.OS,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
