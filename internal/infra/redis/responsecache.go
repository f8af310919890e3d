package redis

import (
	"context"
	"crypto/md5" //nolint:gosec // cache fingerprinting, not authentication
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// maxRawFingerprint is the longest fingerprint stored unhashed.
const maxRawFingerprint = 250

// sensitiveParams are query parameter names that disqualify a request from
// response caching.
var sensitiveParams = []string{"password", "token", "key", "secret", "auth", "session"}

// headersNotStored are stripped from cached responses.
var headersNotStored = map[string]bool{
	"Set-Cookie":    true,
	"Authorization": true,
	"X-Api-Key":     true,
}

// CachedResponse is the stored shape of one cacheable response.
type CachedResponse struct {
	Content   []byte              `json:"content"`
	Status    int                 `json:"status"`
	Headers   map[string][]string `json:"headers"`
	MediaType string              `json:"media_type"`
	CachedAt  time.Time           `json:"cached_at"`
}

// ResponseCacheConfig tunes the read-through response cache.
type ResponseCacheConfig struct {
	// DefaultTTL is the entry lifetime; entries older than 2×DefaultTTL are
	// evicted on read.
	DefaultTTL time.Duration
	// Prefix namespaces cache keys.
	Prefix string
	// NoCachePrefixes are path prefixes that are never cached.
	NoCachePrefixes []string
	// MaxConcurrentWrites bounds fire-and-forget cache writes.
	MaxConcurrentWrites int
	// Debug adds X-Cache HIT/MISS headers.
	Debug bool
}

// ResponseCache guards idempotent GETs against eligible routes. Reads are
// synchronous; writes happen on detached goroutines bounded by a semaphore so
// the response is never delayed. Cache failures degrade to a MISS.
type ResponseCache struct {
	cache  domain.Cache
	clock  domain.Clock
	cfg    ResponseCacheConfig
	logger *slog.Logger

	writeSem chan struct{}
	wg       sync.WaitGroup
}

// NewResponseCache creates a ResponseCache.
func NewResponseCache(cache domain.Cache, clock domain.Clock, cfg ResponseCacheConfig, logger *slog.Logger) *ResponseCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 60 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = domain.CacheKeyResponse
	}
	if cfg.MaxConcurrentWrites <= 0 {
		cfg.MaxConcurrentWrites = 16
	}
	return &ResponseCache{
		cache:    cache,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		writeSem: make(chan struct{}, cfg.MaxConcurrentWrites),
	}
}

// Cacheable reports whether the request qualifies for the response cache:
// GET only, no sensitive query parameters, no no-cache path prefix, no
// client no-cache/no-store directive, and Authorization only under /public/.
func (rc *ResponseCache) Cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}

	query := r.URL.Query()
	for _, p := range sensitiveParams {
		if query.Has(p) {
			return false
		}
	}

	for _, prefix := range rc.cfg.NoCachePrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}

	cc := strings.ToLower(r.Header.Get("Cache-Control"))
	if strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store") {
		return false
	}

	if r.Header.Get("Authorization") != "" && !strings.HasPrefix(r.URL.Path, "/public/") {
		return false
	}

	return true
}

// Fingerprint derives the cache key for a request: path, query, and the
// first 50 characters of the authorization, accept-language and user-agent
// headers. Fingerprints longer than 250 bytes are MD5-hashed.
func (rc *ResponseCache) Fingerprint(r *http.Request) string {
	raw := r.URL.Path + "?" + r.URL.RawQuery + "|" +
		clip(r.Header.Get("Authorization"), 50) + "," +
		clip(r.Header.Get("Accept-Language"), 50) + "," +
		clip(r.Header.Get("User-Agent"), 50)

	if len(raw) > maxRawFingerprint {
		sum := md5.Sum([]byte(raw)) //nolint:gosec // cache fingerprinting
		raw = hex.EncodeToString(sum[:])
	}
	return rc.cfg.Prefix + raw
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Lookup returns the cached response for the request, or nil on a miss.
// Entries older than 2×DefaultTTL are evicted and treated as misses.
func (rc *ResponseCache) Lookup(ctx context.Context, r *http.Request) *CachedResponse {
	key := rc.Fingerprint(r)

	raw, err := rc.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	var entry CachedResponse
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		_ = rc.cache.Delete(ctx, key)
		return nil
	}

	if rc.clock.Now().Sub(entry.CachedAt) > 2*rc.cfg.DefaultTTL {
		_ = rc.cache.Delete(ctx, key)
		return nil
	}
	return &entry
}

// Store persists the response asynchronously. The write is fire-and-forget,
// bounded by the semaphore; when the semaphore is saturated the write is
// dropped rather than queued unboundedly.
func (rc *ResponseCache) Store(r *http.Request, status int, header http.Header, body []byte, mediaType string) {
	entry := CachedResponse{
		Content:   body,
		Status:    status,
		Headers:   map[string][]string{},
		MediaType: mediaType,
		CachedAt:  rc.clock.Now(),
	}
	for k, v := range header {
		if headersNotStored[http.CanonicalHeaderKey(k)] {
			continue
		}
		entry.Headers[k] = v
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	key := rc.Fingerprint(r)

	select {
	case rc.writeSem <- struct{}{}:
	default:
		rc.logger.Debug("response cache write dropped, semaphore full", "key", key)
		return
	}

	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		defer func() { <-rc.writeSem }()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rc.cache.Set(ctx, key, string(payload), rc.cfg.DefaultTTL); err != nil {
			rc.logger.Debug("response cache write failed", "key", key, "err", err)
		}
	}()
}

// DebugEnabled reports whether X-Cache headers should be added.
func (rc *ResponseCache) DebugEnabled() bool { return rc.cfg.Debug }

// Drain waits for pending writes up to the deadline. Called on shutdown.
func (rc *ResponseCache) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		rc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
