// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "energy_crm"

var (
	ImportTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "imports",
			Name:      "transitions_total",
			Help:      "Import status transitions by target status",
		},
		[]string{"status"},
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "imports",
			Name:      "rows_total",
			Help:      "Spreadsheet rows handled by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "total",
			Help:      "Import tasks by kind and result",
		},
		[]string{"kind", "result"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Import task duration in seconds",
			Buckets:   []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	TasksInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "in_progress",
			Help:      "Import tasks currently running",
		},
		[]string{"kind"},
	)
)

func RecordTransition(status string) {
	ImportTransitions.WithLabelValues(status).Inc()
}

func RecordRow(phase, outcome string) {
	RowsTotal.WithLabelValues(phase, outcome).Inc()
}

// TrackTask marks a task as running and returns the function that records
// its result.
func TrackTask(kind string) func(result string) {
	start := time.Now()
	TasksInProgress.WithLabelValues(kind).Inc()
	return func(result string) {
		TasksInProgress.WithLabelValues(kind).Dec()
		TaskDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		TasksTotal.WithLabelValues(kind, result).Inc()
	}
}
