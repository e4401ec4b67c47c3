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
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudexec_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claudexec_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Resolutions counts which step produced the launch command
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudexec_resolutions_total",
			Help: "Total number of command resolutions by source",
		},
		[]string{"source"},
	)

	// Launches counts launch outcomes
	Launches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudexec_launches_total",
			Help: "Total number of executor launches",
		},
		[]string{"executor", "variant", "outcome"},
	)

	// FallbackAttempts counts retries with the npx fallback
	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudexec_fallback_attempts_total",
			Help: "Total number of launches retried with the npx fallback",
		},
		[]string{"executor"},
	)

	// NormalizedEntries counts normalized entries by kind
	NormalizedEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudexec_normalized_entries_total",
			Help: "Total number of normalized log entries",
		},
		[]string{"entry_type"},
	)

	// ActiveExecutions tracks currently running executions
	ActiveExecutions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "claudexec_active_executions",
			Help: "Number of running executions",
		},
	)

	// ExecutionDuration tracks how long executions run
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claudexec_execution_duration_seconds",
			Help:    "Execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	// PrunedExecutions counts executions removed by retention cleanup
	PrunedExecutions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claudexec_pruned_executions_total",
			Help: "Total number of executions removed by retention cleanup",
		},
	)

	// ToolCalls tracks MCP tool invocations
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudexec_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "status"},
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
	case "/health", "/ready", "/mcp", "/mcp/", "/metrics":
		return path
	default:
		if len(path) > 5 && path[:5] == "/mcp/" {
			return "/mcp"
		}
		return "other"
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordResolution records which step resolved the launch command
func RecordResolution(source string) {
	Resolutions.WithLabelValues(source).Inc()
}

// RecordLaunch records a launch outcome: primary, fallback or failed
func RecordLaunch(executor, variant, outcome string) {
	Launches.WithLabelValues(executor, variant, outcome).Inc()
}

// RecordFallbackAttempt records a retry with the npx fallback
func RecordFallbackAttempt(executor string) {
	FallbackAttempts.WithLabelValues(executor).Inc()
}

// RecordNormalizedEntries adds per-kind entry counts
func RecordNormalizedEntries(counts map[string]int) {
	for kind, n := range counts {
		NormalizedEntries.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordExecutionStart increments the active execution gauge
func RecordExecutionStart() {
	ActiveExecutions.Inc()
}

// RecordExecutionEnd decrements the active execution gauge and records duration
func RecordExecutionEnd(status string, durationSeconds float64) {
	ActiveExecutions.Dec()
	ExecutionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordPruned records executions removed by cleanup
func RecordPruned(count int64) {
	PrunedExecutions.Add(float64(count))
}

// RecordToolCall records an MCP tool invocation
func RecordToolCall(tool, status string) {
	ToolCalls.WithLabelValues(tool, status).Inc()
}
