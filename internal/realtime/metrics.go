package realtime

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes.
const (
	deliveryDelivered    = "delivered"
	deliveryOffline      = "dropped_offline"
	deliveryBackpressure = "dropped_backpressure"
)

// Event outcomes.
const (
	outcomeHandled  = "handled"
	outcomeIgnored  = "ignored"
	outcomeRejected = "rejected"
)

var (
	// onlineUsers is the size of the online set.
	onlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_online_users",
		Help: "Users currently bound to a live session.",
	})

	// openSessions counts connected sockets, joined or not.
	openSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_sessions",
		Help: "Open realtime sessions.",
	})

	// eventsTotal counts inbound events by type and outcome. The type label
	// is clamped to known event names.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Inbound realtime events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// deliveriesTotal counts targeted deliveries by outcome.
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Targeted frame deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	// notifyDropped counts bridge notifications lost to a full dispatch queue.
	notifyDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_notify_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full.",
	})
)

func init() {
	prometheus.MustRegister(onlineUsers, openSessions, eventsTotal, deliveriesTotal, notifyDropped)
}

// eventLabel keeps the type label bounded.
func eventLabel(typ string) string {
	switch typ {
	case EventJoin, EventTyping, EventStopTyping, EventSendMessage, EventLogout:
		return typ
	case eventClosed:
		return "close"
	}
	return "unknown"
}
