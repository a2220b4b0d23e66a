package ragchat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	planFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "ragchat",
			Name:      "plan_failures_total",
			Help:      "Plan responses unparseable after the repair pass",
		},
	)

	planRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "ragchat",
			Name:      "plan_repairs_total",
			Help:      "Plan responses that needed the repair pass",
		},
	)

	retrievalFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "ragchat",
			Name:      "retrieval_failures_total",
			Help:      "Failed retrieval calls during context assembly",
		},
		[]string{"source"},
	)

	answersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "ragchat",
			Name:      "answers_total",
			Help:      "Answer outcomes by verification result",
		},
		[]string{"outcome"},
	)
)
