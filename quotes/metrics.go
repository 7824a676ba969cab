package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the import pipeline collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	records  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotes",
			Subsystem: "import",
			Name:      "records_total",
			Help:      "Import file records by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotes",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Import runs by final status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quotes",
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of completed import runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.runs, m.duration)
	}
	return m
}

func (m *Metrics) record(o outcome) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) runFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	if status == runCompleted {
		m.duration.Observe(seconds)
	}
}
