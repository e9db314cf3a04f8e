// Package metrics provides Prometheus instrumentation for the portfolio service.
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
	// TransactionsTotal counts ledger mutations, partitioned by type.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portman_transactions_total",
		Help: "Total number of ledger transactions recorded",
	}, []string{"type"})

	// RecomputeRuns counts position recomputations by outcome.
	RecomputeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portman_recompute_runs_total",
		Help: "Position snapshot recomputations",
	}, []string{"outcome"})

	// RecomputeLatency tracks how long a full ledger fold plus snapshot
	// replacement takes.
	RecomputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "portman_recompute_latency_seconds",
		Help:    "Duration of a full position recomputation",
		Buckets: prometheus.DefBuckets,
	})

	// ImportedRows counts CSV import rows by result.
	ImportedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portman_import_rows_total",
		Help: "CSV import rows processed",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portman_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portman_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portman_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// CacheHits counts Redis cache hits and misses on the read-through paths.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portman_cache_requests_total",
		Help: "Read-through cache lookups",
	}, []string{"result"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
