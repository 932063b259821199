package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tasksPublishedTotal, publishFailuresTotal) }

var tasksPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_tasks_published_total",
		Help: "Tasks published to the broker, labeled by priority.",
	},
	[]string{"priority"}, // 'low', 'normal', 'high'
)

var publishFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "queue_publish_failures_total",
		Help: "Publish attempts that failed at the transport.",
	},
)

func IncPublished(priority string) {
	tasksPublishedTotal.WithLabelValues(norm(priority)).Inc()
}

func IncPublishFailure() {
	publishFailuresTotal.Inc()
}
