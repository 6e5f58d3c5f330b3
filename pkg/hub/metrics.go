package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ArchgraphClientsConnected tracks the number of connected clients
var ArchgraphClientsConnected = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "archgraph_clients_connected",
		Help: "Number of clients connected to the hub",
	},
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(ArchgraphClientsConnected)
}
