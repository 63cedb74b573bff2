// Package metrics registers the Prometheus metrics for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	Verifications      *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
	VerifyDuration     prometheus.Histogram
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ktp_verify_requests_total",
			Help: "Verification requests by terminal outcome",
		}, []string{"outcome"}),
		ExtractionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ktp_verify_extraction_failures_total",
			Help: "Vision extraction failures by kind",
		}, []string{"kind"}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ktp_verify_duration_seconds",
			Help:    "End to end verification latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveVerification records one finished request.
func (m *Metrics) ObserveVerification(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
	m.VerifyDuration.Observe(elapsed.Seconds())
}

// ObserveExtractionFailure records one typed vision failure.
func (m *Metrics) ObserveExtractionFailure(kind string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.WithLabelValues(kind).Inc()
}
