package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(aiTokensIn, aiTokensOut, aiCallLatencyMs) }

var aiTokensIn = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "harvest_ai_tokens_in",
		Help: "Sum of prompt (input) tokens per provider/model.",
	},
	[]string{"provider", "model"},
)

var aiTokensOut = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "harvest_ai_tokens_out",
		Help: "Sum of completion (output) tokens per provider/model.",
	},
	[]string{"provider", "model"},
)

var aiCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "harvest_ai_call_latency_ms",
		Help:    "Inference call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"provider", "model", "success"},
)

// ObserveInference records one inference call outcome.
func ObserveInference(provider, model string, tokensIn, tokensOut, latencyMs int, success bool) {
	lbl := "false"
	if success {
		lbl = "true"
	}
	aiCallLatencyMs.WithLabelValues(provider, model, lbl).Observe(float64(latencyMs))
	if tokensIn > 0 {
		aiTokensIn.WithLabelValues(provider, model).Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		aiTokensOut.WithLabelValues(provider, model).Add(float64(tokensOut))
	}
}
