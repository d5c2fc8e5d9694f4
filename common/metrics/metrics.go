package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reason labels for MessagesRejected
const (
	ReasonUnknownPeer    = "unknown_peer"
	ReasonStalePeer      = "stale_peer"
	ReasonUnknownChannel = "unknown_channel"
	ReasonQueueFull      = "queue_full"
	ReasonHandlerError   = "handler_error"
)

var (
	// MessagesReceived counts the inbound messages accepted for delivery
	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_messages_received_total",
		Help: "Number of inbound messages accepted for handler delivery",
	}, []string{"reactor", "channel"})

	// MessagesRejected counts the inbound messages rejected before delivery
	MessagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_messages_rejected_total",
		Help: "Number of inbound messages rejected, by reason",
	}, []string{"reactor", "reason"})

	// ActivePeers tracks the number of peers with running routines
	ActivePeers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "p2p_active_peers",
		Help: "Number of active peers per reactor",
	}, []string{"reactor"})
)

func init() {
	prometheus.MustRegister(MessagesReceived, MessagesRejected, ActivePeers)
}
