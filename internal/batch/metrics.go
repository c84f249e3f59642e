package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultDone   = "done"
	resultFailed = "failed"
)

// Metrics records batch progress. A nil *Metrics is valid and records nothing.
type Metrics struct {
	units    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the batch collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockrun",
			Subsystem: "batch",
			Name:      "units_total",
			Help:      "Work units finished, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lockrun",
			Subsystem: "batch",
			Name:      "unit_duration_seconds",
			Help:      "Time spent computing one work unit.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.units, m.duration)
	}
	return m
}

func (m *Metrics) unit(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(result).Inc()
	m.duration.Observe(took.Seconds())
}
