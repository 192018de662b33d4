package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookDeliveriesTotal) }

var webhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "harvest_webhook_deliveries_total",
		Help: "Callback delivery outcomes.",
	},
	[]string{"outcome"}, // 'delivered', 'exhausted'
)

func IncWebhookDelivery(outcome string) {
	webhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}
