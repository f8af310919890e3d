package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/iruldev/shortlink-api/internal/shared/monitor"
)

// headerXResponseTime reports handler wall time in milliseconds, two
// decimals.
const headerXResponseTime = "X-Response-Time"

// ResponseTiming returns middleware that measures handler elapsed time with
// the monotonic clock, sets X-Response-Time, and feeds the system monitor's
// request counters.
//
// The header is written via a pre-write hook because headers cannot be added
// after the handler's first body write.
func ResponseTiming(mon *monitor.Monitor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			tw := &timingWriter{ResponseWrapper: NewResponseWrapper(w), start: start}
			next.ServeHTTP(tw, r)

			elapsed := time.Since(start)
			if !tw.wroteHeader {
				tw.setTimingHeader()
			}
			if mon != nil {
				mon.RecordRequest(elapsed, tw.Status() >= 500)
			}
		})
	}
}

// timingWriter stamps X-Response-Time just before the status line goes out.
type timingWriter struct {
	*ResponseWrapper
	start       time.Time
	wroteHeader bool
}

func (t *timingWriter) setTimingHeader() {
	ms := float64(time.Since(t.start).Microseconds()) / 1000.0
	t.Header().Set(headerXResponseTime, fmt.Sprintf("%.2f", ms))
}

func (t *timingWriter) WriteHeader(status int) {
	if !t.wroteHeader {
		t.setTimingHeader()
		t.wroteHeader = true
	}
	t.ResponseWrapper.WriteHeader(status)
}

func (t *timingWriter) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.setTimingHeader()
		t.wroteHeader = true
	}
	return t.ResponseWrapper.Write(b)
}
