// Package http provides the HTTP transport layer: router assembly and the
// edge middleware chain every request traverses.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/infra/redis"
	"github.com/iruldev/shortlink-api/internal/shared/metrics"
	"github.com/iruldev/shortlink-api/internal/shared/monitor"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
	"github.com/iruldev/shortlink-api/internal/transport/http/handler"
	"github.com/iruldev/shortlink-api/internal/transport/http/middleware"
)

// RouterDeps carries everything the router composes. Built once at startup.
type RouterDeps struct {
	Production bool

	MaxBodySize   int64
	LoginRPM      int
	StaticDir     string
	EnableCache   bool
	ResponseCache *redis.ResponseCache

	Limiter    *redis.FixedWindowLimiter
	Violations middleware.ViolationSink
	Querier    domain.Querier
	Clock      domain.Clock
	Monitor    *monitor.Monitor
	Funnel     *errorfunnel.Funnel

	Auth    middleware.AuthConfig
	Logger  *slog.Logger
	Metrics metrics.HTTPMetrics

	Registry *prometheus.Registry

	URLHandler      *handler.URLHandler
	RedirectHandler *handler.RedirectHandler
	AuthHandler     *handler.AuthHandler
	AdminHandler    *handler.AdminHandler
	HealthLive      http.HandlerFunc
	HealthReady     http.HandlerFunc
}

// NewRouter assembles the chi router with the full edge pipeline:
// request id → security headers → timing/monitor → metrics → logging →
// recoverer → body cap → distributed rate limit → response cache → routes.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// Edge pipeline, applied to every route below.
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.SecureHeaders(deps.Production))
	r.Use(middleware.ResponseTiming(deps.Monitor))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Funnel))
	r.Use(middleware.BodyLimiter(deps.MaxBodySize))
	r.Use(middleware.EdgeRateLimit(deps.Limiter, deps.Violations, deps.Querier, deps.Clock, deps.Logger))
	if deps.EnableCache {
		r.Use(middleware.ResponseCacheMiddleware(deps.ResponseCache))
	}

	// Probes and Prometheus scrape endpoint.
	r.Get("/live", deps.HealthLive)
	r.Get("/ready", deps.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	// QR artifacts written by the object store.
	if deps.StaticDir != "" {
		fs := http.StripPrefix("/static/qr/", http.FileServer(http.Dir(deps.StaticDir)))
		r.Method(http.MethodGet, "/static/qr/*", fs)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(middleware.OptionalUser(deps.Auth))

			pub.Post("/url", deps.URLHandler.Create)
			pub.Get("/url/{short_code:[A-Za-z0-9]{7}}/stats", deps.URLHandler.Stats)

			pub.Get("/{short_code:[A-Za-z0-9]{7}}", deps.RedirectHandler.Resolve)
			pub.Post("/{short_code:[A-Za-z0-9]{7}}/verify", deps.RedirectHandler.Verify)
		})

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", deps.AuthHandler.Signup)
			auth.With(httprate.LimitByIP(deps.LoginRPM, time.Minute)).
				Post("/login", deps.AuthHandler.Login)
			auth.Post("/refresh", deps.AuthHandler.Refresh)
			auth.Post("/logout", deps.AuthHandler.Logout)
			auth.With(middleware.OptionalUser(deps.Auth), middleware.RequireUser).
				Get("/sessions", deps.AuthHandler.Sessions)
		})

		api.Route("/user", func(user chi.Router) {
			user.Use(middleware.OptionalUser(deps.Auth))
			user.Use(middleware.RequireUser)

			user.Get("/urls", deps.URLHandler.ListMine)
			user.Delete("/url", deps.URLHandler.DeleteMine)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.AdminGate(deps.Auth))

			admin.Get("/users", deps.AdminHandler.ListUsers)
			admin.Delete("/users/{user_id}", deps.AdminHandler.DeleteUser)
			admin.Get("/urls", deps.AdminHandler.ListURLs)
			admin.Delete("/urls/{id}", deps.AdminHandler.DeleteURL)
			admin.Get("/domains", deps.AdminHandler.ListDomains)
			admin.Get("/violations", deps.AdminHandler.ListViolations)
			admin.Get("/logs", deps.AdminHandler.ListLogs)
			admin.Get("/cache/keys", deps.AdminHandler.CacheKeys)
			admin.Get("/metrics", deps.AdminHandler.SystemMetrics)
		})
	})

	return r
}
