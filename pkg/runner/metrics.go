package runner

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the batch-level prometheus instruments.
type Metrics struct {
	Completed prometheus.Counter
	Failed    prometheus.Counter
	Duration  prometheus.Histogram
}

// NewMetrics creates the batch instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qutip_trajectories_completed_total",
			Help: "Total number of trajectories folded into the aggregator",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qutip_trajectories_failed_total",
			Help: "Total number of trajectories that ended in an error",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "qutip_trajectory_duration_seconds",
			Help: "Wall-clock duration of individual trajectories",
		}),
	}
	reg.MustRegister(m.Completed, m.Failed, m.Duration)
	return m
}
