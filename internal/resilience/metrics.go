package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors are labelled by target, e.g. "catalog_cache".
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kasir",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Breaker state per target (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kasir",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Breaker state changes per target.",
	}, []string{"target", "from", "to"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions)
}
