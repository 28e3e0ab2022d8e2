package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records maintenance job runs. The zero value and a nil
// pointer are no-ops.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     map[bool]*prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, []string{"job"})
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "maintenance_job_duration_seconds",
			Help: "Duration of maintenance jobs in seconds.",
			// Retention deletes run from milliseconds to minutes on a large outbox.
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		runs: map[bool]*prometheus.CounterVec{
			true:  counter("maintenance_job_success_total", "Successful maintenance job runs."),
			false: counter("maintenance_job_failure_total", "Failed maintenance job runs."),
		},
	}
	reg.MustRegister(m.duration, m.runs[true], m.runs[false])
	return m
}

// ObserveRun records one run of job and whether it succeeded.
func (m *CronJobMetrics) ObserveRun(job string, elapsed time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	label := normalizeLabel(job)
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	m.runs[err == nil].WithLabelValues(label).Inc()
}
