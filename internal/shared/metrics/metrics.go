// Package metrics declares the metric recorder interfaces consumed by the
// transport layer. Concrete Prometheus-backed implementations live in
// internal/infra/observability.
package metrics

// HTTPMetrics records request-level metrics from transport middleware.
type HTTPMetrics interface {
	// IncRequest increments the request counter for (method, route, status).
	IncRequest(method, route, status string)
	// ObserveRequestDuration records the request duration in seconds.
	ObserveRequestDuration(method, route string, seconds float64)
	// ObserveResponseSize records the response size in bytes.
	ObserveResponseSize(method, route string, bytes float64)
}

// EngineMetrics records shortener-engine events.
type EngineMetrics interface {
	// IncShorten counts shorten outcomes: "created", "reused", "rejected".
	IncShorten(outcome string)
	// IncRedirect counts redirect outcomes: "redirected", "challenged",
	// "expired", "not_found".
	IncRedirect(outcome string)
	// IncSafetyVerdict counts safety screen outcomes: "safe", "unsafe",
	// "cache_hit", "upstream_error".
	IncSafetyVerdict(outcome string)
}
