package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iruldev/shortlink-api/internal/domain"
	"github.com/iruldev/shortlink-api/internal/transport/http/errorfunnel"
)

func TestRecoverer_PanicBecomesGeneric500(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	funnel := errorfunnel.New(nil, nil, clock, slog.Default())

	h := Recoverer(funnel)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom: secret internals")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/url", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	assert.NotContains(t, rec.Body.String(), "secret internals")
}

func TestRecoverer_NoPanicPassesThrough(t *testing.T) {
	clock := &domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	funnel := errorfunnel.New(nil, nil, clock, slog.Default())

	h := Recoverer(funnel)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
