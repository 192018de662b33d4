package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tasksCreatedTotal, tasksProcessedTotal, storeDegraded) }

var tasksCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "harvest_tasks_created_total",
		Help: "Total number of harvest tasks accepted.",
	},
)

var tasksProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "harvest_tasks_processed_total",
		Help: "Total number of harvest tasks finished, labeled by terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var storeDegraded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "harvest_store_degraded",
		Help: "1 when the process fell back to the in-memory store, 0 otherwise.",
	},
)

func IncTaskCreated() { tasksCreatedTotal.Inc() }

func IncTaskProcessed(status string) {
	tasksProcessedTotal.WithLabelValues(status).Inc()
}

func SetStoreDegraded(degraded bool) {
	if degraded {
		storeDegraded.Set(1)
		return
	}
	storeDegraded.Set(0)
}
