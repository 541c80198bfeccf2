package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ActiveSessions tracks sessions currently in the Running state
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_active_sessions",
			Help: "Number of sessions currently running",
		},
	)

	// ExecutionsTotal counts finished executions by terminal status
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_executions_total",
			Help: "Total executions by terminal status",
		},
		[]string{"status"},
	)

	// ExecutionDuration tracks how long executions run
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_execution_duration_seconds",
			Help:    "Execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	// EventsStreamed counts events forwarded to clients
	EventsStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_events_streamed_total",
			Help: "Total events forwarded over the push stream",
		},
		[]string{"type"},
	)

	// RateLimitRejections counts requests rejected by a rate limiter
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_rate_limit_rejections_total",
			Help: "Total requests rejected by rate limiting",
		},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware creates an HTTP middleware that records metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath normalizes URL paths to avoid high cardinality
func normalizePath(path string) string {
	switch path {
	case "/api/v1/health", "/api/v1/execute", "/api/v1/schema", "/inference", "/metrics":
		return path
	default:
		if strings.HasPrefix(path, "/api/v1/sessions/") {
			return "/api/v1/sessions/{id}"
		}
		return "other"
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSessionStart increments the running session gauge
func RecordSessionStart() {
	ActiveSessions.Inc()
}

// RecordSessionEnd decrements the gauge and records the outcome
func RecordSessionEnd(status string, durationSeconds float64) {
	ActiveSessions.Dec()
	ExecutionsTotal.WithLabelValues(status).Inc()
	ExecutionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordEventStreamed counts one forwarded event
func RecordEventStreamed(eventType string) {
	EventsStreamed.WithLabelValues(eventType).Inc()
}

// RecordRateLimitRejection counts one rejected request
func RecordRateLimitRejection() {
	RateLimitRejections.Inc()
}
