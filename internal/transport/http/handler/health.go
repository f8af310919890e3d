package handler

import (
	"context"
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// Pinger is anything with a context-aware health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler builds the liveness/readiness handler: liveness is a
// goroutine-count guard, readiness checks the database pool and the cache.
func NewHealthHandler(db Pinger, cache domain.Cache) healthcheck.Handler {
	health := healthcheck.NewHandler()

	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(2048))

	health.AddReadinessCheck("database", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Ping(ctx)
	})
	health.AddReadinessCheck("cache", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return cache.Ping(ctx)
	})

	return health
}
