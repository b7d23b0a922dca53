package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(billingEventsTotal) }

var billingEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_events_total",
		Help: "Billing confirmations and cancellations by provider, action and status.",
	},
	[]string{"provider", "action", "status"},
)

func IncBillingEvent(provider, action, status string) {
	billingEventsTotal.WithLabelValues(norm(provider), norm(action), norm(status)).Inc()
}
