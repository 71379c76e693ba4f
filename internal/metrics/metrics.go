package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatroom",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Live websocket connections",
		},
	)

	Rooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatroom",
			Subsystem: "ws",
			Name:      "rooms",
			Help:      "Rooms with at least one subscribed connection",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatroom",
			Subsystem: "ws",
			Name:      "events_delivered_total",
			Help:      "Events queued to a connection",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatroom",
			Subsystem: "ws",
			Name:      "events_dropped_total",
			Help:      "Events dropped because the connection was closed or too slow",
		},
		[]string{"type"},
	)

	RejectedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatroom",
			Subsystem: "ws",
			Name:      "rejected_connections_total",
			Help:      "Connections closed because the hub was at capacity",
		},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatroom",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatroom",
			Subsystem: "service",
			Name:      "operation_errors_total",
			Help:      "Service operations that returned an error, by kind",
		},
		[]string{"op", "kind"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatroom",
			Subsystem: "attachments",
			Name:      "uploads_total",
			Help:      "Attachment uploads by outcome",
		},
		[]string{"status"},
	)
)

// ObserveOperation: defer metrics.ObserveOperation("chat.Create", time.Now())
func ObserveOperation(op string, start time.Time) {
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func RecordDelivery(eventType string, ok bool) {
	if ok {
		EventsDelivered.WithLabelValues(eventType).Inc()
		return
	}
	EventsDropped.WithLabelValues(eventType).Inc()
}
