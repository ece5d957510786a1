package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Relay metrics
	SessionsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_sessions_connected",
			Help: "Sessions currently in the fan-out set",
		},
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_messages_relayed_total",
			Help: "Messages fanned out by the relay",
		},
	)

	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_deliveries_total",
			Help: "Per-session message deliveries",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_sessions_evicted_total",
			Help: "Sessions evicted because their outbound queue was full",
		},
	)

	InboundRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_inbound_rejected_total",
			Help: "Inbound frames answered with an error envelope",
		},
		[]string{"code"},
	)
)
