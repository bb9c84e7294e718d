package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal, workerQueueDropsTotal) }

var (
	// channel: email|attribution|telegram ; result: sent|failed|skipped
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Fire-and-forget notification attempts by channel and result.",
		},
		[]string{"channel", "result"},
	)

	workerQueueDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_queue_drops_total",
			Help: "Background tasks dropped because the worker queue was full.",
		},
	)
)

func IncNotification(channel, result string) {
	notificationsTotal.WithLabelValues(norm(channel), norm(result)).Inc()
}

func IncWorkerDrop() { workerQueueDropsTotal.Inc() }
