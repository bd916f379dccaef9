package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ChatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatgw",
			Name:      "chat_tokens_total",
			Help:      "Total tokens consumed by completed chat requests",
		},
		[]string{"direction"}, // "input" / "output"
	)

	QuotaDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatgw",
			Name:      "quota_denials_total",
			Help:      "Requests denied because the daily token limit was reached",
		},
	)

	StoreFallbackActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatgw",
			Name:      "store_fallback_active",
			Help:      "1 when the in-memory fallback usage store is active",
		},
	)
)

func init() {
	prometheus.MustRegister(ChatTokensTotal)
	prometheus.MustRegister(QuotaDenialsTotal)
	prometheus.MustRegister(StoreFallbackActive)
}
