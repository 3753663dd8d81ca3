// Package metrics exposes Prometheus instrumentation for the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts committed turns by handler and terminal status.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majordomo_turns_total",
		Help: "Committed turns by selected handler and terminal status.",
	}, []string{"handler", "status"})

	// ToolInvocationsTotal counts tool invocations by tool and settled status.
	ToolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majordomo_tool_invocations_total",
		Help: "Tool invocations by tool name and settled status.",
	}, []string{"tool", "status"})

	// TurnDuration observes end-to-end turn latency.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "majordomo_turn_duration_seconds",
		Help:    "End-to-end turn duration from routing to commit.",
		Buckets: prometheus.DefBuckets,
	})

	// AmbiguousRoutesTotal counts turns routed to the default handler
	// because no candidate cleared the confidence floor.
	AmbiguousRoutesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "majordomo_ambiguous_routes_total",
		Help: "Turns routed to the default handler below the confidence floor.",
	})
)
