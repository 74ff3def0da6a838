// Package metrics provides Prometheus metrics for the optimizer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveopt_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driveopt_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Plan execution
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveopt_operations_total",
			Help: "Storage operations executed, by type and outcome",
		},
		[]string{"type", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driveopt_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Optimization
	optimizeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveopt_optimize_requests_total",
			Help: "Optimization results, by producing model",
		},
		[]string{"model"},
	)

	workflowCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driveopt_workflow_call_duration_seconds",
			Help:    "Remote workflow call duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOperation records one create, move or delete.
func RecordOperation(operationType string, duration time.Duration, success bool) {
	operationDuration.WithLabelValues(operationType).Observe(duration.Seconds())
	operationsTotal.WithLabelValues(operationType, outcome(success)).Inc()
}

// RecordOptimization counts an optimization result by the model that produced it.
func RecordOptimization(model string) {
	optimizeRequestsTotal.WithLabelValues(model).Inc()
}

// RecordWorkflowCall records a remote workflow round trip.
func RecordWorkflowCall(duration time.Duration, success bool) {
	workflowCallDuration.WithLabelValues(outcome(success)).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. Routes are labeled by
// their registered pattern to keep label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, recorder.status, time.Since(start))
	})
}

func outcome(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}
