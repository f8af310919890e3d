package middleware

import (
	"bytes"
	"net/http"

	"github.com/iruldev/shortlink-api/internal/infra/redis"
)

// ResponseCacheMiddleware serves eligible idempotent GETs from the
// read-through response cache. Hits replay the stored status, headers and
// body; misses capture successful responses and store them asynchronously.
// Cache unavailability degrades to a MISS.
func ResponseCacheMiddleware(rc *redis.ResponseCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rc == nil || !rc.Cacheable(r) {
				next.ServeHTTP(w, r)
				return
			}

			if entry := rc.Lookup(r.Context(), r); entry != nil {
				h := w.Header()
				for k, vals := range entry.Headers {
					for _, v := range vals {
						h.Add(k, v)
					}
				}
				if entry.MediaType != "" {
					h.Set("Content-Type", entry.MediaType)
				}
				if rc.DebugEnabled() {
					h.Set("X-Cache", "HIT")
				}
				w.WriteHeader(entry.Status)
				_, _ = w.Write(entry.Content)
				return
			}

			if rc.DebugEnabled() {
				w.Header().Set("X-Cache", "MISS")
			}

			rec := &recordingWriter{ResponseWrapper: NewResponseWrapper(w)}
			next.ServeHTTP(rec, r)

			// Only successful responses are cached.
			if rec.Status() >= 200 && rec.Status() < 300 {
				rc.Store(r, rec.Status(), w.Header().Clone(), rec.body.Bytes(), w.Header().Get("Content-Type"))
			}
		})
	}
}

// recordingWriter tees the response body for the async cache write.
type recordingWriter struct {
	*ResponseWrapper
	body bytes.Buffer
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWrapper.Write(b)
}
