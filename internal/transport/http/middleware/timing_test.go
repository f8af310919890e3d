package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/shortlink-api/internal/shared/monitor"
)

func TestResponseTiming_HeaderFormat(t *testing.T) {
	handler := ResponseTiming(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	got := rec.Header().Get("X-Response-Time")
	require.NotEmpty(t, got)
	assert.Regexp(t, regexp.MustCompile(`^\d+\.\d{2}$`), got, "milliseconds with two decimals")
}

func TestResponseTiming_HeaderPresentWithoutExplicitWriteHeader(t *testing.T) {
	handler := ResponseTiming(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("implicit 200"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time"))
}

func TestResponseTiming_FeedsMonitor(t *testing.T) {
	mon := monitor.New(time.Now())

	ok := ResponseTiming(mon)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	failing := ResponseTiming(mon)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	snap := mon.Snapshot()
	assert.Equal(t, uint64(3), snap.RequestTotal)
	assert.Equal(t, uint64(1), snap.ErrorTotal)
}
