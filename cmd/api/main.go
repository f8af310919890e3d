// Command api runs the URL shortening service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/config"
	"github.com/iruldev/shortlink-api/internal/infra/geoip"
	"github.com/iruldev/shortlink-api/internal/infra/objectstore"
	"github.com/iruldev/shortlink-api/internal/infra/observability"
	"github.com/iruldev/shortlink-api/internal/infra/postgres"
	"github.com/iruldev/shortlink-api/internal/infra/redis"
	"github.com/iruldev/shortlink-api/internal/infra/safebrowsing"
	"github.com/iruldev/shortlink-api/internal/security"
	"github.com/iruldev/shortlink-api/internal/shared/monitor"
	httpTransport "github.com/iruldev/shortlink-api/internal/transport/http"
	"github.com/iruldev/shortlink-api/internal/transport/http/contract"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
	"github.com/iruldev/shortlink-api/internal/transport/http/handler"
	"github.com/iruldev/shortlink-api/internal/transport/http/middleware"
	"github.com/iruldev/shortlink-api/internal/usecase/analytics"
	"github.com/iruldev/shortlink-api/internal/usecase/domainsvc"
	"github.com/iruldev/shortlink-api/internal/usecase/redirect"
	"github.com/iruldev/shortlink-api/internal/usecase/session"
	"github.com/iruldev/shortlink-api/internal/usecase/shorten"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := contract.SetProblemBaseURL(cfg.ProblemBaseURL); err != nil {
		return fmt.Errorf("failed to set PROBLEM_BASE_URL: %w", err)
	}

	// Structured logger with service/env attributes
	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("service starting",
		slog.Int("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
		slog.String("env", cfg.Env),
	)

	clock := domain.RealClock{}

	// Database pool plus idempotent migrations
	const startupTimeout = 10 * time.Second
	ctxStart, cancelStart := context.WithTimeout(ctx, startupTimeout)
	pool, err := postgres.NewPool(ctxStart, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns:        cfg.DBPoolMaxConns,
		MinConns:        cfg.DBPoolMinConns,
		MaxConnLifetime: cfg.DBPoolMaxLifetime,
	})
	cancelStart()
	if err != nil {
		return fmt.Errorf("database not reachable at startup: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("database connected, migrations applied")

	// Cache client
	cache, err := redis.NewClient(redis.ClientConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis not reachable at startup: %w", err)
	}
	defer func() { _ = cache.Close() }()
	logger.Info("cache connected")

	// Filesystem directories (QR artifacts)
	store, err := objectstore.NewFSStore(cfg.ObjectStoreDir, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("object store init failed: %w", err)
	}

	// GeoIP reader (optional)
	var geo geoip.Resolver = geoip.Noop{}
	if cfg.GeoIPDBPath != "" {
		reader, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn("geoip database unavailable, lookups disabled", slog.Any("err", err))
		} else {
			geo = reader
			defer func() { _ = reader.Close() }()
		}
	}

	// Repositories and database plumbing
	querier := postgres.NewPoolQuerier(pool)
	txManager := postgres.NewTxManager(pool)
	userRepo := postgres.NewUserRepo()
	sessionRepo := postgres.NewSessionRepo()
	domainRepo := postgres.NewDomainRepo()
	urlRepo := postgres.NewURLRepo()
	analyticsRepo := postgres.NewAnalyticsRepo()
	violationRepo := postgres.NewViolationRepo()
	logRepo := postgres.NewLogRepo()

	// Metrics registry and monitor
	registry, httpMetrics, engineMetrics := observability.NewMetricsRegistry()
	mon := monitor.New(clock.Now())

	samplerCtx, cancelSampler := context.WithCancel(ctx)
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		mon.RunSampler(samplerCtx, cfg.MonitorSampleInterval, logger)
	}()

	// Security core
	secret := cfg.SecretKey
	if secret == "" {
		// Development fallback: an ephemeral key; tokens do not survive restarts.
		secret = security.EphemeralSecret()
		logger.Warn("SECRET_KEY not set, using ephemeral signing key")
	}
	tokens := security.NewTokenService([]byte(secret), cfg.AdminPassword, cfg.AccessTokenExpire, cfg.RefreshTokenExpire)
	cookies := security.CookiePolicy{Production: cfg.IsProduction()}

	// Error funnel
	funnel := errorfunnel.New(logRepo, querier, clock, logger)

	// Threat-intel client
	var checker safebrowsing.Checker
	if cfg.GoogleSafeBrowsingAPIKey != "" {
		checker = safebrowsing.NewClient(safebrowsing.Config{
			APIKey:             cfg.GoogleSafeBrowsingAPIKey,
			Endpoint:           cfg.SafeBrowsingEndpoint,
			Timeout:            cfg.SafeBrowsingTimeout,
			CBMaxRequests:      cfg.CBMaxRequests,
			CBInterval:         cfg.CBInterval,
			CBTimeout:          cfg.CBTimeout,
			CBFailureThreshold: cfg.CBFailureThreshold,
			RetryMaxAttempts:   cfg.RetryMaxAttempts,
			RetryInitialDelay:  cfg.RetryInitialDelay,
		})
	} else {
		logger.Warn("GOOGLE_SAFE_BROWSING_API_KEY not set, safety screen disabled")
		checker = safebrowsing.AlwaysSafe{}
	}

	// Use cases
	domainSvc := domainsvc.NewService(cache, checker, domainRepo, querier, txManager, cfg.SafeCacheTTL, logger, engineMetrics)
	shortenSvc := shorten.NewService(domainSvc, urlRepo, querier, txManager,
		domain.RandomCodeGenerator{}, clock, store, cfg.BaseURL, cfg.QREnabled, logger, engineMetrics)

	ingestor := analytics.NewIngestor(geo)
	recorder := analytics.NewRecorder(analyticsRepo, querier, 2, 256, logger)
	defer recorder.Close()

	redirectSvc := redirect.NewService(urlRepo, querier, txManager, clock, ingestor, recorder, engineMetrics)
	sessionSvc := session.NewService(userRepo, sessionRepo, querier, txManager, tokens, clock,
		cfg.MaxFailedAttempts, cfg.LockTime, logger)

	// Edge rate limiter and response cache
	limiter := redis.NewFixedWindowLimiter(cache, clock, cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	responseCache := redis.NewResponseCache(cache, clock, redis.ResponseCacheConfig{
		DefaultTTL:          cfg.CacheDefaultTTL,
		Prefix:              cfg.CachePrefix,
		NoCachePrefixes:     []string{"/api/v1/auth", "/api/v1/user", "/api/v1/admin"},
		MaxConcurrentWrites: cfg.CacheMaxConcurrentOps,
		Debug:               cfg.CacheDebug,
	}, logger)

	// Handlers
	authCfg := middleware.AuthConfig{
		Sessions: sessionSvc,
		Tokens:   tokens,
		Cookies:  cookies,
		Clock:    clock,
		Logger:   logger,
	}
	urlHandler := handler.NewURLHandler(shortenSvc, urlRepo, querier, funnel, cfg.BaseURL)
	redirectHandler := handler.NewRedirectHandler(redirectSvc, funnel)
	authHandler := handler.NewAuthHandler(sessionSvc, cookies, clock, funnel)
	adminHandler := handler.NewAdminHandler(userRepo, urlRepo, domainRepo, violationRepo, logRepo,
		querier, cache, mon, funnel)
	health := handler.NewHealthHandler(pool, cache)

	router := httpTransport.NewRouter(httpTransport.RouterDeps{
		Production:      cfg.IsProduction(),
		MaxBodySize:     cfg.MaxRequestSize,
		LoginRPM:        cfg.LoginRateLimitRPM,
		StaticDir:       cfg.ObjectStoreDir,
		EnableCache:     cfg.EnableCache,
		ResponseCache:   responseCache,
		Limiter:         limiter,
		Violations:      violationRepo,
		Querier:         querier,
		Clock:           clock,
		Monitor:         mon,
		Funnel:          funnel,
		Auth:            authCfg,
		Logger:          logger,
		Metrics:         httpMetrics,
		Registry:        registry,
		URLHandler:      urlHandler,
		RedirectHandler: redirectHandler,
		AuthHandler:     authHandler,
		AdminHandler:    adminHandler,
		HealthLive:      health.LiveEndpoint,
		HealthReady:     health.ReadyEndpoint,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTPMaxHeaderBytes,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("err", err))
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.Any("signal", sig))

		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctxShutdown); err != nil {
				_ = srv.Close()
				logger.Error("graceful shutdown failed", slog.Any("err", err))
			}
		}()
		wg.Wait()

		// Stop the sampler with a bounded join, then drain pending cache writes.
		cancelSampler()
		select {
		case <-samplerDone:
		case <-time.After(5 * time.Second):
		}
		responseCache.Drain(2 * time.Second)
	}

	logger.Info("server stopped gracefully")
	return nil
}
