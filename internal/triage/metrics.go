package triage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "triage",
			Name:      "batches_total",
			Help:      "Total classification batch calls",
		},
		[]string{"status"},
	)

	omittedItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "triage",
			Name:      "omitted_items_total",
			Help:      "Items silently dropped from an otherwise valid batch response",
		},
	)

	fallbackFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "triage",
			Name:      "fallback_failures_total",
			Help:      "Items whose single-item fallback classification also failed",
		},
	)

	reassessmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "triage",
			Name:      "reassessments_total",
			Help:      "Ambiguous items escalated to re-assessment",
		},
	)
)
