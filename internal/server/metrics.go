// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// completionRequestsTotal counts completed /api/completions requests,
	// partitioned by outcome: "ok" or "error".
	completionRequestsTotal *prometheus.CounterVec

	// completionDurationSeconds records the wall-clock duration of each
	// /api/completions request from first byte received to stream completion.
	completionDurationSeconds *prometheus.HistogramVec

	// completionActiveStreams is the number of SSE streams currently open.
	completionActiveStreams prometheus.Gauge

	// contextItemsPerRequest records how many context items were attached to
	// each completion request after the merge.
	contextItemsPerRequest prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		completionRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Subsystem: "completions",
			Name:      "requests_total",
			Help:      "Total number of /api/completions requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		completionDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quill",
			Subsystem: "completions",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/completions requests from receipt to stream completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		completionActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quill",
			Subsystem: "completions",
			Name:      "active_streams",
			Help:      "Number of /api/completions SSE streams currently open.",
		}),

		contextItemsPerRequest: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quill",
			Subsystem: "completions",
			Name:      "context_items",
			Help:      "Number of context items attached to each completion request after merging.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quill",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
