package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pos"

// Metrics groups the collectors exported by the engine.
type Metrics struct {
	Checkouts        *prometheus.CounterVec
	GatewayRequests  *prometheus.CounterVec
	GatewayDuration  prometheus.Histogram
	Callbacks        *prometheus.CounterVec
	Reversals        *prometheus.CounterVec
	ReapedPending    prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
	HTTPReqDurations *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkouts_total",
			Help: "Checkouts by payment method and resulting status.",
		}, []string{"payment_method", "status"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gateway_requests_total",
			Help: "Payment push requests by outcome.",
		}, []string{"outcome"}),
		GatewayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "gateway_request_duration_seconds",
			Help:    "Latency of payment push requests including token exchange.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "callbacks_total",
			Help: "Payment callbacks by outcome.",
		}, []string{"outcome"}),
		Reversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reversals_total",
			Help: "Completed reversals by mode.",
		}, []string{"mode"}),
		ReapedPending: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reaped_pending_total",
			Help: "Pending mobile-payment transactions failed by the reaper.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPReqDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Checkouts, m.GatewayRequests, m.GatewayDuration, m.Callbacks,
			m.Reversals, m.ReapedPending, m.HTTPRequests, m.HTTPReqDurations,
		)
	}

	return m
}

// NewNop returns unregistered collectors, for tests and tools.
func NewNop() *Metrics {
	return New(nil)
}
