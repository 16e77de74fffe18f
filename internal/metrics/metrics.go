package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_http_requests_total",
			Help: "Total number of gateway HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookfinder_http_request_duration_seconds",
			Help:    "Gateway HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upstream (Open Library) metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_upstream_requests_total",
			Help: "Total number of Open Library requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookfinder_upstream_request_duration_seconds",
			Help:    "Open Library request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookfinder_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_circuit_breaker_transitions_total",
			Help: "Upstream circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Recommendation subjects are user supplied, so only trending is labelled.
	TrendingSubjectSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfinder_trending_subject_selections_total",
			Help: "Subjects chosen for trending queries",
		},
		[]string{"subject"},
	)
)

var knownRoutes = map[string]bool{
	"/books/search":          true,
	"/books/trending":        true,
	"/books/recommendations": true,
	"/health":                true,
	"/metrics":               true,
}

// RouteLabel keeps the path label bounded: unknown paths collapse to "other".
func RouteLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// RecordHTTPRequest records one completed gateway request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpstream records one Open Library call.
func RecordUpstream(operation string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	UpstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
