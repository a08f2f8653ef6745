package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeAllowed    = "allowed"
	outcomeDenied     = "denied"
	outcomeStoreError = "store_error"
)

// Metrics counts per-tier outcomes and store latency.
type Metrics struct {
	decisions     *prometheus.CounterVec
	storeDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg. A nil reg yields unregistered
// collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit tier evaluations by outcome.",
		}, []string{"tier", "outcome"}),
		storeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gatewarden",
			Subsystem: "ratelimit",
			Name:      "store_duration_seconds",
			Help:      "Latency of sliding window store calls.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.storeDuration)
	}
	return m
}

func (m *Metrics) observe(tier, outcome string, took time.Duration) {
	m.decisions.WithLabelValues(tier, outcome).Inc()
	m.storeDuration.Observe(took.Seconds())
}
