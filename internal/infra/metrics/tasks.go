package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tasksProcessedTotal, taskDurationSeconds, taskValidationFailuresTotal) }

var tasksProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ml_tasks_processed_total",
		Help: "Total number of ML tasks processed, labeled by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'failed', 'retried', 'duplicate'
)

var taskDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ml_task_duration_seconds",
		Help:    "Wall-clock duration of inference calls.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
)

var taskValidationFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ml_task_validation_failures_total",
		Help: "Tasks rejected by validation before any inference call.",
	},
)

func IncTask(outcome string) {
	tasksProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveTaskDuration(seconds float64) {
	taskDurationSeconds.Observe(seconds)
}

func IncValidationFailure() {
	taskValidationFailuresTotal.Inc()
}
