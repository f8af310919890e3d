package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iruldev/shortlink-api/internal/shared/metrics"
)

// httpMetrics implements metrics.HTTPMetrics using Prometheus collectors.
type httpMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	responseSize *prometheus.HistogramVec
}

func (m *httpMetrics) IncRequest(method, route, status string) {
	m.requests.WithLabelValues(method, route, status).Inc()
}

func (m *httpMetrics) ObserveRequestDuration(method, route string, seconds float64) {
	m.duration.WithLabelValues(method, route).Observe(seconds)
}

func (m *httpMetrics) ObserveResponseSize(method, route string, bytes float64) {
	m.responseSize.WithLabelValues(method, route).Observe(bytes)
}

// engineMetrics implements metrics.EngineMetrics using Prometheus counters.
type engineMetrics struct {
	shortens  *prometheus.CounterVec
	redirects *prometheus.CounterVec
	verdicts  *prometheus.CounterVec
}

func (m *engineMetrics) IncShorten(outcome string) {
	m.shortens.WithLabelValues(outcome).Inc()
}

func (m *engineMetrics) IncRedirect(outcome string) {
	m.redirects.WithLabelValues(outcome).Inc()
}

func (m *engineMetrics) IncSafetyVerdict(outcome string) {
	m.verdicts.WithLabelValues(outcome).Inc()
}

// NewMetricsRegistry creates a Prometheus registry pre-registered with Go
// runtime and process collectors plus the service's HTTP and engine
// recorders.
func NewMetricsRegistry() (*prometheus.Registry, metrics.HTTPMetrics, metrics.EngineMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Subsystem: "server",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		}, []string{"method", "route"}),
	}
	registry.MustRegister(h.requests, h.duration, h.responseSize)

	e := &engineMetrics{
		shortens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "shorten_total",
			Help:      "Shorten operations by outcome",
		}, []string{"outcome"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "redirect_total",
			Help:      "Redirect resolutions by outcome",
		}, []string{"outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "safety_verdict_total",
			Help:      "Safety screen verdicts by outcome",
		}, []string{"outcome"}),
	}
	registry.MustRegister(e.shortens, e.redirects, e.verdicts)

	return registry, h, e
}
