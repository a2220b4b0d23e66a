package assess

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var invalidResponsesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "prospector",
		Subsystem: "assess",
		Name:      "invalid_responses_total",
		Help:      "Deep-assessment responses that failed strict validation",
	},
)
