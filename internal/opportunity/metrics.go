package opportunity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	skippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "opportunity",
			Name:      "skipped_total",
			Help:      "Subjects skipped because synthesis failed or returned malformed output",
		},
	)

	declinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prospector",
			Subsystem: "opportunity",
			Name:      "declined_total",
			Help:      "Subjects the synthesizer deliberately declined for lack of facts",
		},
	)
)
