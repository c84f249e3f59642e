package lockfile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lock styles, used as the "style" label.
const (
	styleToken  = "token"
	styleHandle = "handle"
)

// Failure reasons, used as the "reason" label.
const (
	reasonNameTooLong = "name_too_long"
	reasonTableFull   = "table_full"
	reasonUnavailable = "unavailable"
	reasonIO          = "io"
	reasonOpen        = "open"
)

// Metrics records lock table activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	retries      prometheus.Counter
	failures     *prometheus.CounterVec
	held         prometheus.Gauge
	wait         prometheus.Histogram
}

// NewMetrics creates the lock collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockrun",
			Subsystem: "lock",
			Name:      "acquisitions_total",
			Help:      "Lock files successfully created, by acquisition style.",
		}, []string{"style"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockrun",
			Subsystem: "lock",
			Name:      "contention_retries_total",
			Help:      "Attempts that found the lock file already present.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockrun",
			Subsystem: "lock",
			Name:      "failures_total",
			Help:      "Failed acquisitions, by reason.",
		}, []string{"reason"}),
		held: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lockrun",
			Subsystem: "lock",
			Name:      "held",
			Help:      "Locks currently held by this process.",
		}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lockrun",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent acquiring a lock, including backoff.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.acquisitions, m.retries, m.failures, m.held, m.wait)
	}
	return m
}

func (m *Metrics) acquired(style string, waited time.Duration, held int) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(style).Inc()
	m.wait.Observe(waited.Seconds())
	m.held.Set(float64(held))
}

func (m *Metrics) contended() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) failed(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

func (m *Metrics) released(held int) {
	if m == nil {
		return
	}
	m.held.Set(float64(held))
}
