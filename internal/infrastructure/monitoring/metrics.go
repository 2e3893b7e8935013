package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics of the auth subsystem.
type Metrics struct {
	ValidationRequests  *prometheus.CounterVec
	ValidationLatency   *prometheus.HistogramVec
	ReplayRejections    *prometheus.CounterVec
	KeyOperations       *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ValidationRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_validation_requests_total",
				Help: "Total number of api key validation requests.",
			},
			[]string{"strategy", "result", "reason"},
		),
		ValidationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keygate_validation_latency_seconds",
				Help:    "Latency of api key validation requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		ReplayRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_replay_rejections_total",
				Help: "Requests rejected by replay protection.",
			},
			[]string{"reason"},
		),
		KeyOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_key_operations_total",
				Help: "Key management operations by type and result.",
			},
			[]string{"operation", "result"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_http_requests_total",
				Help: "Total HTTP requests by method, route template, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keygate_http_request_duration_seconds",
				Help:    "HTTP request duration by method and route template.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordValidation records one validation decision. reason is empty on allow.
func (m *Metrics) RecordValidation(strategy, result, reason string, duration time.Duration) {
	m.ValidationRequests.WithLabelValues(strategy, result, reason).Inc()
	m.ValidationLatency.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordReplayRejection counts a replay-protection rejection.
func (m *Metrics) RecordReplayRejection(reason string) {
	m.ReplayRejections.WithLabelValues(reason).Inc()
}

// RecordKeyOperation counts a management-surface operation.
func (m *Metrics) RecordKeyOperation(operation, result string) {
	m.KeyOperations.WithLabelValues(operation, result).Inc()
}
