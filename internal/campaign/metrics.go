package campaign

import (
	"time"

	"swfdiff/internal/compare"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus series a campaign updates. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	cycles      *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	filed       *prometheus.CounterVec
	lanesActive prometheus.Gauge
}

// NewMetrics registers the campaign series on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swfdiff",
			Name:      "cycles_total",
			Help:      "Lane cycles by outcome.",
		}, []string{"outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swfdiff",
			Name:      "verdicts_total",
			Help:      "Comparison verdicts by kind and reason.",
		}, []string{"kind", "reason"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swfdiff",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one player run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 13),
		}, []string{"side"}),
		filed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swfdiff",
			Name:      "failures_filed_total",
			Help:      "Filed divergences, split into new fingerprints and duplicates.",
		}, []string{"kind"}),
		lanesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "swfdiff",
			Name:      "lanes_active",
			Help:      "Lanes currently cycling.",
		}),
	}
	reg.MustRegister(m.cycles, m.verdicts, m.runDuration, m.filed, m.lanesActive)
	return m
}

func (m *Metrics) cycle(outcome string) {
	if m != nil {
		m.cycles.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) verdict(v compare.Verdict) {
	if m != nil {
		m.verdicts.WithLabelValues(string(v.Kind), string(v.Reason)).Inc()
	}
}

func (m *Metrics) run(side string, d time.Duration) {
	if m != nil {
		m.runDuration.WithLabelValues(side).Observe(d.Seconds())
	}
}

func (m *Metrics) filedFailure(isNew bool) {
	if m == nil {
		return
	}
	if isNew {
		m.filed.WithLabelValues("new").Inc()
	} else {
		m.filed.WithLabelValues("duplicate").Inc()
	}
}

func (m *Metrics) laneUp(delta float64) {
	if m != nil {
		m.lanesActive.Add(delta)
	}
}
