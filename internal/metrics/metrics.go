package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records relay activity.
type Collector interface {
	ClientConnected()
	ClientDisconnected()

	// JoinAttempt records the outcome of a "create or join" request.
	JoinAttempt(outcome string)
	RoomOpened()
	RoomClosed()

	EventReceived(event string)
	MessageRelayed(sizeBytes int)
	EventDropped(reason string)
}

// PrometheusCollector implements Collector on its own registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	activeClients prometheus.Gauge
	connections   prometheus.Counter
	activeRooms   prometheus.Gauge
	joins         *prometheus.CounterVec
	events        *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	relayed       prometheus.Counter
	messageSize   prometheus.Histogram
}

// NewPrometheusCollector creates a collector with a fresh registry, so
// several instances can coexist in one process.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		activeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairlink_active_clients",
			Help: "Number of connected websocket clients",
		}),
		connections: f.NewCounter(prometheus.CounterOpts{
			Name: "pairlink_client_connections_total",
			Help: "Total number of websocket connections accepted",
		}),
		activeRooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairlink_active_rooms",
			Help: "Number of rooms with at least one member",
		}),
		joins: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairlink_join_attempts_total",
				Help: "Create-or-join requests by outcome",
			},
			[]string{"outcome"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairlink_events_received_total",
				Help: "Inbound events by name",
			},
			[]string{"event"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairlink_events_dropped_total",
				Help: "Inbound events that were ignored, by reason",
			},
			[]string{"reason"},
		),
		relayed: f.NewCounter(prometheus.CounterOpts{
			Name: "pairlink_messages_relayed_total",
			Help: "Signaling messages delivered to a peer",
		}),
		messageSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairlink_message_size_bytes",
			Help:    "Size of relayed signaling payloads",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64B to 32KB
		}),
	}
}

func (c *PrometheusCollector) ClientConnected() {
	c.connections.Inc()
	c.activeClients.Inc()
}

func (c *PrometheusCollector) ClientDisconnected() { c.activeClients.Dec() }

func (c *PrometheusCollector) JoinAttempt(outcome string) {
	c.joins.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) RoomOpened() { c.activeRooms.Inc() }
func (c *PrometheusCollector) RoomClosed() { c.activeRooms.Dec() }

func (c *PrometheusCollector) EventReceived(event string) {
	c.events.WithLabelValues(event).Inc()
}

func (c *PrometheusCollector) MessageRelayed(sizeBytes int) {
	c.relayed.Inc()
	c.messageSize.Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) EventDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *PrometheusCollector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler for the metrics endpoint.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ClientConnected() {}
func (Nop) ClientDisconnected() {}
func (Nop) JoinAttempt(string) {}
func (Nop) RoomOpened() {}
func (Nop) RoomClosed() {}
func (Nop) EventReceived(string) {}
func (Nop) MessageRelayed(int) {}
func (Nop) EventDropped(string) {}
