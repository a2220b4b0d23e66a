package metering

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"stage"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed (estimated)",
		},
		[]string{"stage", "direction"},
	)

	searchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Name:      "search_queries_total",
			Help:      "Total external lookup queries",
		},
		[]string{"stage"},
	)

	refusalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Name:      "refusals_total",
			Help:      "Total answers refused by the groundedness gate",
		},
	)
)
