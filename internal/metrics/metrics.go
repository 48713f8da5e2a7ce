// Package metrics provides Prometheus counters for the monitoring engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values for detection outcomes.
const (
	ResultAccepted  = "accepted"
	ResultDiscarded = "discarded"
	ResultNoChange  = "no_change"
	ResultError     = "error"
)

// Metrics contains the Prometheus collectors for detection activity. All
// operations are safe for concurrent use.
type Metrics struct {
	detectionsTotal    *prometheus.CounterVec
	lightSwitchesTotal prometheus.Counter
	cameraFailures     prometheus.Counter
}

// New creates the collectors. They are not registered; call Register.
func New() *Metrics {
	return &Metrics{
		detectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detections_total",
				Help: "Total number of completed detection calls by result",
			},
			[]string{"result"},
		),
		lightSwitchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "light_switches_total",
				Help: "Total number of automatic light state changes",
			},
		),
		cameraFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "camera_failures_total",
				Help: "Total number of camera acquisition or capture failures",
			},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.detectionsTotal, m.lightSwitchesTotal, m.cameraFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordDetection counts a completed detection call.
func (m *Metrics) RecordDetection(result string) {
	m.detectionsTotal.WithLabelValues(result).Inc()
}

// RecordLightSwitch counts an automatic light state change.
func (m *Metrics) RecordLightSwitch() {
	m.lightSwitchesTotal.Inc()
}

// RecordCameraFailure counts a camera failure.
func (m *Metrics) RecordCameraFailure() {
	m.cameraFailures.Inc()
}
