package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the event bus.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	EventsPublished  *prometheus.CounterVec
	ClientsDropped   prometheus.Counter
	ControlMessages  *prometheus.CounterVec
}

// New registers and returns event bus metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "emblem_notify_connected_clients",
			Help: "Current number of attached event bus clients",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_notify_events_published_total",
			Help: "Total events published, labeled by scope and event type",
		}, []string{"scope", "type"}),
		ClientsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emblem_notify_clients_dropped_total",
			Help: "Total clients force-closed for not draining their queue",
		}),
		ControlMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_notify_control_messages_total",
			Help: "Total inbound control messages, labeled by type",
		}, []string{"type"}),
	}
}
