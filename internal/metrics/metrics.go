// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatroom"

var (
	ActiveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscriptions",
		Help:      "Open remote listeners by stream kind.",
	}, []string{"kind"})

	SnapshotsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_received_total",
		Help:      "Snapshots delivered to live subscriptions by stream kind.",
	}, []string{"kind"})

	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Remote entries that could not be decoded and were skipped.",
	}, []string{"kind"})

	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_writes_total",
		Help:      "Document writes issued by the sync core.",
	}, []string{"op", "result"})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_room_sessions",
		Help:      "Room sessions currently open.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Realtime UI connections registered with the hub.",
	})
)

// ObserveWrite counts one write outcome.
func ObserveWrite(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreWrites.WithLabelValues(op, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
