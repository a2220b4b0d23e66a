package research

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "research",
			Name:      "lookup_failures_total",
			Help:      "Failed external lookups during research",
		},
		[]string{"source"},
	)

	researchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "research",
			Name:      "failures_total",
			Help:      "Subjects whose research produced only an error marker",
		},
	)

	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "research",
			Name:      "summaries_total",
			Help:      "Context summarization outcomes",
		},
		[]string{"status"},
	)
)
