// Package metrics defines the Prometheus metrics exported by hmcert.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the service records.
type Metrics struct {
	// Fingerprints counts fingerprint computations by result.
	Fingerprints *prometheus.CounterVec
	// FingerprintDuration tracks how long fingerprinting takes.
	FingerprintDuration prometheus.Histogram
	// BytesHashed counts bytes fed into folder fingerprints.
	BytesHashed prometheus.Counter
	// Presigns counts presigned upload URLs by result.
	Presigns *prometheus.CounterVec
	// UploadsRecorded counts catalogue records created from uploads.
	UploadsRecorded prometheus.Counter
	// Requests counts HTTP requests by route and status code.
	Requests *prometheus.CounterVec
	// RequestDuration tracks HTTP latency by route.
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Fingerprints: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hmcert_fingerprints_total",
			Help: "Total number of folder fingerprints computed",
		}, []string{"result"}),

		FingerprintDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hmcert_fingerprint_duration_seconds",
			Help:    "Duration of folder fingerprint computation",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),

		BytesHashed: f.NewCounter(prometheus.CounterOpts{
			Name: "hmcert_fingerprint_bytes_total",
			Help: "Total number of bytes hashed into folder fingerprints",
		}),

		Presigns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hmcert_presigned_urls_total",
			Help: "Total number of presigned upload URL requests",
		}, []string{"result"}),

		UploadsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "hmcert_uploads_recorded_total",
			Help: "Total number of uploads recorded in the catalogue",
		}),

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hmcert_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "code"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hmcert_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveFingerprint records one fingerprint computation.
// It is safe to call on a nil *Metrics.
func (m *Metrics) ObserveFingerprint(start time.Time, bytes int64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Fingerprints.WithLabelValues(result).Inc()
	m.FingerprintDuration.Observe(time.Since(start).Seconds())
	if err == nil && bytes > 0 {
		m.BytesHashed.Add(float64(bytes))
	}
}
