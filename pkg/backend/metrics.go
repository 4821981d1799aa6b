package backend

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	operations   *prometheus.CounterVec
	casConflicts *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func newMetrics(r prometheus.Registerer) *metrics {
	var m metrics

	m.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_operations_total",
			Help: "Total counter operations by outcome",
		},
		[]string{"op", "outcome"})

	m.casConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_cas_conflicts_total",
			Help: "Total compare-and-swap writes rejected because of a concurrent update",
		},
		[]string{"op"})

	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_operation_duration_seconds",
			Help:    "Duration of counter operations, including pool wait and retries",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16),
		},
		[]string{"op"})

	r.MustRegister(m.operations, m.casConflicts, m.duration)
	return &m
}
