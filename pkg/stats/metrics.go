package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xswap"

var (
	swapTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swap_transitions_total",
		Help:      "Number of swap status transitions by target status.",
	}, []string{"status"})

	activeSwaps = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_swaps",
		Help:      "Number of swaps not yet in a terminal status.",
	})

	resolverFills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolver_orders_total",
		Help:      "Number of orders handled by resolver agents by outcome.",
	}, []string{"resolver", "outcome"})

	chainCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chain_call_duration_seconds",
		Help:      "Duration of escrow calls by chain, operation and result.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "op", "result"})
)

func init() {
	prometheus.MustRegister(swapTransitions, activeSwaps, resolverFills, chainCalls)
}

// SwapTransition counts a swap entering status.
func SwapTransition(status string) {
	swapTransitions.WithLabelValues(status).Inc()
}

// SetActiveSwaps sets the number of swaps being driven.
func SetActiveSwaps(n int) {
	activeSwaps.Set(float64(n))
}

// ResolverOutcome counts an order reaching a final state in a resolver.
func ResolverOutcome(resolver, outcome string) {
	resolverFills.WithLabelValues(resolver, outcome).Inc()
}

// ObserveChainCall records the duration of an escrow call started at start.
func ObserveChainCall(chain, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	chainCalls.WithLabelValues(chain, op, result).Observe(time.Since(start).Seconds())
}
