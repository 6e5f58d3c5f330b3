package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ArchgraphTurnTotal tracks chat turns by the persona that handled them
	ArchgraphTurnTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archgraph_turn_total",
			Help: "Total chat turns processed, by persona",
		},
		[]string{"persona"},
	)

	// ArchgraphApplyTotal tracks diff applications by outcome
	ArchgraphApplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archgraph_apply_total",
			Help: "Total diff applications, by outcome",
		},
		[]string{"outcome"},
	)

	// ArchgraphViolationTotal tracks validation rule hits
	ArchgraphViolationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archgraph_violation_total",
			Help: "Total validation violations, by rule",
		},
		[]string{"rule_id"},
	)

	// ArchgraphGraphSize tracks the current node and edge counts
	ArchgraphGraphSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "archgraph_graph_size",
			Help: "Current graph size per system",
		},
		[]string{"system_id", "kind"},
	)

	// ArchgraphSnapshotCache tracks cache effectiveness
	ArchgraphSnapshotCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archgraph_snapshot_cache_total",
			Help: "Snapshot cache lookups, by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(ArchgraphTurnTotal)
	prometheus.MustRegister(ArchgraphApplyTotal)
	prometheus.MustRegister(ArchgraphViolationTotal)
	prometheus.MustRegister(ArchgraphGraphSize)
	prometheus.MustRegister(ArchgraphSnapshotCache)
}
