package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatency,
		generationsTotal,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in_total",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out_total",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_duration_seconds",
			Help:    "AI call latency distribution.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 90, 120},
		},
		[]string{"provider", "model", "success"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Generation requests by resource and outcome (ok/quota/failed/discarded).",
		},
		[]string{"resource", "outcome"},
	)
)

func ObserveAICall(provider, model string, tokensIn, tokensOut int, elapsed time.Duration, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatency.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(elapsed.Seconds())
}

func IncGeneration(resource, outcome string) {
	generationsTotal.WithLabelValues(norm(resource), norm(outcome)).Inc()
}
