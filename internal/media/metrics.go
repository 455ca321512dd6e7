package media

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSignRequests  = "media_sign_requests_total"
	MetricSignFailures  = "media_sign_failures_total"
	MetricImagesOmitted = "media_images_omitted_total"
)

// Metrics contains Prometheus metrics for media signing. All
// operations are thread-safe.
type Metrics struct {
	signRequests  *prometheus.CounterVec
	signFailures  *prometheus.CounterVec
	imagesOmitted prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to
// register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		signRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSignRequests,
				Help: "Total number of signed URL requests by operation",
			},
			[]string{"op"},
		),
		signFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSignFailures,
				Help: "Total number of signed URL failures by operation",
			},
			[]string{"op"},
		),
		imagesOmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricImagesOmitted,
				Help: "Total number of images omitted from responses after signing failures",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.signRequests,
		m.signFailures,
		m.imagesOmitted,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncSignRequests increments the sign request counter.
// op: "get" or "put".
func (m *Metrics) IncSignRequests(op string) {
	if m == nil {
		return
	}
	m.signRequests.WithLabelValues(op).Inc()
}

// IncSignFailures increments the sign failure counter.
func (m *Metrics) IncSignFailures(op string) {
	if m == nil {
		return
	}
	m.signFailures.WithLabelValues(op).Inc()
}

// IncImagesOmitted increments the omitted image counter.
func (m *Metrics) IncImagesOmitted() {
	if m == nil {
		return
	}
	m.imagesOmitted.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.signRequests,
		m.signFailures,
		m.imagesOmitted,
	}
}
