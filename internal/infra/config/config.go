// Package config provides environment-based configuration loading.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration values for the application.
// Required fields will cause startup failure if not provided.
// Optional fields have sensible defaults. Configuration is loaded once at
// startup and never reloaded.
type Config struct {
	// Required - Database connection string
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Database pool configuration
	// DBPoolMaxConns is the maximum number of connections in the pool. Default: 20.
	DBPoolMaxConns int32 `envconfig:"DB_POOL_MAX_CONNS" default:"20"`
	// DBPoolMinConns is the minimum number of connections in the pool. Default: 5.
	DBPoolMinConns int32 `envconfig:"DB_POOL_MIN_CONNS" default:"5"`
	// DBPoolMaxLifetime is the maximum lifetime of a connection. Default: 1h.
	DBPoolMaxLifetime time.Duration `envconfig:"DB_POOL_MAX_LIFETIME" default:"1h"`
	// DBQueryTimeout is the default timeout for database queries when the
	// request carries no deadline of its own. Default: 5s.
	DBQueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// Optional with defaults
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Env         string `envconfig:"ENV" default:"development"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"shortlink-api"`

	// BaseURL is the public base for generated short links, e.g.
	// https://sho.rt — short URLs are rendered as {BaseURL}/{short_code}.
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Error response contract (RFC 7807)
	ProblemBaseURL string `envconfig:"PROBLEM_BASE_URL" default:"https://api.example.com/problems/"`

	// Security / tokens
	// SecretKey signs access tokens. Required when ENV is production.
	SecretKey string `envconfig:"SECRET_KEY"`
	// Algorithm is the JWT signing algorithm name. It is configuration only
	// and is never accepted from untrusted input. Only HS256 is supported.
	Algorithm string `envconfig:"ALGORITHM" default:"HS256"`
	// AdminPassword gates the admin routes.
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	// AccessTokenExpire is the access-token lifetime. Default: 2h.
	AccessTokenExpire time.Duration `envconfig:"ACCESS_TOKEN_EXPIRE" default:"2h"`
	// RefreshTokenExpire is the refresh-token lifetime. Default: 168h (7 days).
	RefreshTokenExpire time.Duration `envconfig:"REFRESH_TOKEN_EXPIRE" default:"168h"`

	// Lockout
	// MaxFailedAttempts is the failed-login count that trips a lockout. Default: 10.
	MaxFailedAttempts int `envconfig:"MAX_FAILED_ATTEMPTS" default:"10"`
	// LockTime is how long a tripped account stays locked. Default: 16m.
	LockTime time.Duration `envconfig:"LOCK_TIME_MINUTES" default:"16m"`

	// Safety screen
	// GoogleSafeBrowsingAPIKey authenticates threat-intel lookups. When empty
	// the screen is skipped and every domain is treated as safe (dev only).
	GoogleSafeBrowsingAPIKey string `envconfig:"GOOGLE_SAFE_BROWSING_API_KEY"`
	// SafeBrowsingEndpoint overrides the upstream URL (tests point it at a stub).
	SafeBrowsingEndpoint string `envconfig:"SAFE_BROWSING_ENDPOINT" default:"https://safebrowsing.googleapis.com/v4/threatMatches:find"`
	// SafeBrowsingTimeout is the hard timeout on the outbound call. Default: 5s.
	SafeBrowsingTimeout time.Duration `envconfig:"SAFE_BROWSING_TIMEOUT" default:"5s"`
	// SafeCacheTTL is how long safety verdicts are cached. Default: 6h.
	SafeCacheTTL time.Duration `envconfig:"SAFE_CACHE_TTL" default:"6h"`

	// Rate limiting (edge fixed window)
	// RateLimitMaxRequests is the per-identifier budget per window. Default: 200.
	RateLimitMaxRequests int `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"200"`
	// RateLimitWindow is the fixed window length. Default: 30s.
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"30s"`
	// LoginRateLimitRPM is an additional per-route limit on the login
	// endpoint to slow brute forcing. Default: 30 requests/minute.
	LoginRateLimitRPM int `envconfig:"LOGIN_RATE_LIMIT_RPM" default:"30"`

	// HTTP request handling
	// MaxRequestSize is the maximum request body size in bytes. Default: 20MiB.
	MaxRequestSize int64 `envconfig:"MAX_BODY_SIZE" default:"20971520"`

	// Response cache
	// EnableCache turns on the read-through response cache for idempotent GETs.
	EnableCache bool `envconfig:"ENABLE_CACHE" default:"false"`
	// CacheDebug adds X-Cache HIT/MISS headers.
	CacheDebug bool `envconfig:"CACHE_DEBUG" default:"false"`
	// CacheDefaultTTL is the default entry lifetime. Default: 60s.
	CacheDefaultTTL time.Duration `envconfig:"CACHE_DEFAULT_TTL" default:"60s"`
	// CachePrefix namespaces response-cache keys.
	CachePrefix string `envconfig:"CACHE_PREFIX" default:"cache:"`
	// CacheMaxConcurrentOps bounds fire-and-forget cache writes. Default: 16.
	CacheMaxConcurrentOps int `envconfig:"MAX_CONCURRENT_CACHE_OPS" default:"16"`

	// Object store (QR artifacts)
	// ObjectStoreDir is where the filesystem-backed store writes artifacts.
	ObjectStoreDir string `envconfig:"OBJECT_STORE_DIR" default:"./data/objects"`
	// QREnabled toggles QR artifact generation on shorten.
	QREnabled bool `envconfig:"QR_ENABLED" default:"true"`

	// GeoIP
	// GeoIPDBPath points at a MaxMind mmdb file. Empty disables geo lookups.
	GeoIPDBPath string `envconfig:"GEOIP_DB_PATH"`

	// Monitor
	// MonitorSampleInterval is the cadence of the RSS/CPU sampler. Default: 300s.
	MonitorSampleInterval time.Duration `envconfig:"MONITOR_SAMPLE_INTERVAL" default:"300s"`

	// Server timeouts
	// HTTPReadTimeout is the maximum duration for reading the entire request, including the body. Default: 60s.
	HTTPReadTimeout time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"60s"`
	// HTTPWriteTimeout is the maximum duration before timing out writes of the response. Default: 60s.
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	// HTTPIdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled. Default: 60s.
	HTTPIdleTimeout time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	// HTTPReadHeaderTimeout is the amount of time allowed to read request headers. Default: 10s.
	HTTPReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	// HTTPMaxHeaderBytes is the maximum size of request headers. Default: 1MB.
	HTTPMaxHeaderBytes int `envconfig:"HTTP_MAX_HEADER_BYTES" default:"1048576"`
	// ShutdownTimeout is the duration to wait for graceful shutdown. Default: 30s.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Circuit breaker (threat-intel client)
	// CBMaxRequests is the number of requests allowed in the half-open state. Default: 3.
	CBMaxRequests int `envconfig:"CB_MAX_REQUESTS" default:"3"`
	// CBInterval is the cyclic period for clearing internal counts. Default: 10s.
	CBInterval time.Duration `envconfig:"CB_INTERVAL" default:"10s"`
	// CBTimeout is the period to wait before transitioning from open to half-open. Default: 30s.
	CBTimeout time.Duration `envconfig:"CB_TIMEOUT" default:"30s"`
	// CBFailureThreshold is the number of failures to trip the circuit. Default: 5.
	CBFailureThreshold int `envconfig:"CB_FAILURE_THRESHOLD" default:"5"`

	// Retry (threat-intel client, every failed lookup)
	// RetryMaxAttempts is the maximum number of attempts. Default: 2.
	RetryMaxAttempts int `envconfig:"RETRY_MAX_ATTEMPTS" default:"2"`
	// RetryInitialDelay is the initial delay before the first retry. Default: 100ms.
	RetryInitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms"`
}

// Redacted returns a safe string representation of the Config for logging.
func (c *Config) Redacted() string {
	safe := *c
	safe.DatabaseURL = "[REDACTED]"
	safe.RedisPassword = "[REDACTED]"
	safe.SecretKey = "[REDACTED]"
	safe.AdminPassword = "[REDACTED]"
	safe.GoogleSafeBrowsingAPIKey = "[REDACTED]"
	return fmt.Sprintf("%+v", safe)
}

// Load reads configuration from environment variables.
// It returns an error if required fields are missing.
func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate checks invariants across the loaded configuration and normalises
// string fields in place.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required and cannot be empty")
	}

	// Allow 0 for dynamic port allocation
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: must be between 0 and 65535")
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid REDIS_PORT: must be between 1 and 65535")
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("invalid SERVICE_NAME: must not be empty")
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.Algorithm = strings.ToUpper(strings.TrimSpace(c.Algorithm))

	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("invalid ENV: must be one of development, staging, production, test")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: must be one of debug, info, warn, error")
	}

	// The algorithm is configuration, never negotiated with clients.
	if c.Algorithm != "HS256" {
		return fmt.Errorf("invalid ALGORITHM: only HS256 is supported")
	}

	if err := validateBaseURL("BASE_URL", c.BaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("PROBLEM_BASE_URL", c.ProblemBaseURL); err != nil {
		return err
	}

	// Production requires real secrets; development may fall back to an
	// ephemeral key minted at startup.
	if c.Env == "production" {
		if c.SecretKey == "" {
			return fmt.Errorf("ENV=production requires SECRET_KEY to be set")
		}
		if c.AdminPassword == "" {
			return fmt.Errorf("ENV=production requires ADMIN_PASSWORD to be set")
		}
	}
	if c.SecretKey != "" && len(c.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 bytes")
	}

	if c.MaxRequestSize < 1 {
		return fmt.Errorf("invalid MAX_BODY_SIZE: must be greater than 0")
	}
	if c.RateLimitMaxRequests < 1 {
		return fmt.Errorf("invalid RATE_LIMIT_MAX_REQUESTS: must be greater than 0")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_WINDOW: must be greater than 0")
	}
	if c.MaxFailedAttempts < 1 {
		return fmt.Errorf("invalid MAX_FAILED_ATTEMPTS: must be greater than 0")
	}
	if c.LockTime <= 0 {
		return fmt.Errorf("invalid LOCK_TIME_MINUTES: must be greater than 0")
	}
	if c.AccessTokenExpire <= 0 || c.RefreshTokenExpire <= 0 {
		return fmt.Errorf("token lifetimes must be greater than 0")
	}
	if c.CacheMaxConcurrentOps < 1 {
		return fmt.Errorf("invalid MAX_CONCURRENT_CACHE_OPS: must be greater than 0")
	}

	if c.DBPoolMaxConns < 1 {
		return fmt.Errorf("invalid DB_POOL_MAX_CONNS: must be greater than 0")
	}
	if c.DBPoolMinConns < 0 {
		return fmt.Errorf("invalid DB_POOL_MIN_CONNS: must be non-negative")
	}
	if c.DBPoolMinConns > c.DBPoolMaxConns {
		return fmt.Errorf("invalid DB_POOL_MIN_CONNS: must be less than or equal to DB_POOL_MAX_CONNS")
	}
	if c.DBPoolMaxLifetime <= 0 {
		return fmt.Errorf("invalid DB_POOL_MAX_LIFETIME: must be greater than 0")
	}
	if c.DBQueryTimeout <= 0 {
		return fmt.Errorf("invalid DB_QUERY_TIMEOUT: must be greater than 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: must be greater than 0")
	}

	return nil
}

func validateBaseURL(name, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("invalid %s: must not be empty", name)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must be an absolute URL (scheme + host)", name)
	}
	return nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
