package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		quotaChecksTotal,
		quotaConsumedTotal,
		quotaRejectionsTotal,
		periodResetsTotal,
		recordsByTier,
	)
}

var (
	quotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_checks_total",
			Help: "Advisory quota checks by resource and result (allowed/denied/error).",
		},
		[]string{"resource", "result"},
	)

	quotaConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_consumed_total",
			Help: "Units recorded against quotas, by tier and resource.",
		},
		[]string{"tier", "resource"},
	)

	quotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_rejections_total",
			Help: "Consumptions rejected by the conditional increment, by tier and resource.",
		},
		[]string{"tier", "resource"},
	)

	periodResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_period_resets_total",
			Help: "Monthly counter resets, by trigger (read/sweep).",
		},
		[]string{"trigger"},
	)

	recordsByTier = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscription_records",
			Help: "Active subscription records by tier.",
		},
		[]string{"tier"},
	)
)

func IncQuotaCheck(resource, result string) {
	quotaChecksTotal.WithLabelValues(norm(resource), norm(result)).Inc()
}

func AddQuotaConsumed(tier, resource string, n int64) {
	if n <= 0 {
		return
	}
	quotaConsumedTotal.WithLabelValues(norm(tier), norm(resource)).Add(float64(n))
}

func IncQuotaRejection(tier, resource string) {
	quotaRejectionsTotal.WithLabelValues(norm(tier), norm(resource)).Inc()
}

func IncPeriodReset(trigger string) {
	periodResetsTotal.WithLabelValues(norm(trigger)).Inc()
}

func SetRecordsByTier(counts map[string]int) {
	for tier, n := range counts {
		recordsByTier.WithLabelValues(norm(tier)).Set(float64(n))
	}
}
