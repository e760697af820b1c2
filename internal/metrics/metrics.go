package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	TranslationOK       = "ok"
	TranslationFallback = "fallback"

	RecordVerbatim   = "verbatim"
	RecordTranslated = "translated"

	DropOffline = "offline"
	DropNoCall  = "no_call"
	DropBusy    = "busy"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// Connection metrics
	ClientConnected()
	ClientDisconnected()

	// Chat metrics
	MessageBroadcast(sendTo, dropped int)
	RecordPersisted(kind string)
	RecordFailed(kind string)
	Translation(outcome string)

	// Signaling metrics
	SignalForwarded(kind string, delivered int)
	SignalDropped(kind, reason string)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler
}

// PrometheusCollector implements the Collector interface using Prometheus.
// It owns its registry so several collectors can coexist in one process.
type PrometheusCollector struct {
	registry *prometheus.Registry

	activeClients     prometheus.Gauge
	clientConnections prometheus.Counter

	broadcastDeliveries prometheus.Counter
	broadcastDropped    prometheus.Counter
	recordsPersisted    *prometheus.CounterVec
	recordsFailed       *prometheus.CounterVec
	translations        *prometheus.CounterVec

	signalsForwarded *prometheus.CounterVec
	signalsDropped   *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		activeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "polyglot_active_connections",
			Help: "Number of live real-time connections",
		}),
		clientConnections: f.NewCounter(prometheus.CounterOpts{
			Name: "polyglot_connections_total",
			Help: "Total number of accepted real-time connections",
		}),

		broadcastDeliveries: f.NewCounter(prometheus.CounterOpts{
			Name: "polyglot_broadcast_deliveries_total",
			Help: "Room messages handed to live connections",
		}),
		broadcastDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "polyglot_broadcast_dropped_total",
			Help: "Room messages dropped because of backpressure",
		}),
		recordsPersisted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyglot_records_persisted_total",
				Help: "Message records written to the message log",
			},
			[]string{"kind"},
		),
		recordsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyglot_records_failed_total",
				Help: "Message records the message log rejected",
			},
			[]string{"kind"},
		),
		translations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyglot_translations_total",
				Help: "Translation requests by outcome",
			},
			[]string{"outcome"},
		),

		signalsForwarded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyglot_signals_forwarded_total",
				Help: "Call signaling events delivered to at least one connection",
			},
			[]string{"type"},
		),
		signalsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyglot_signals_dropped_total",
				Help: "Call signaling events dropped without delivery",
			},
			[]string{"type", "reason"},
		),
	}
}

func (c *PrometheusCollector) ClientConnected() {
	c.activeClients.Inc()
	c.clientConnections.Inc()
}

func (c *PrometheusCollector) ClientDisconnected() {
	c.activeClients.Dec()
}

func (c *PrometheusCollector) MessageBroadcast(sendTo, dropped int) {
	c.broadcastDeliveries.Add(float64(sendTo))
	c.broadcastDropped.Add(float64(dropped))
}

func (c *PrometheusCollector) RecordPersisted(kind string) {
	c.recordsPersisted.WithLabelValues(kind).Inc()
}

func (c *PrometheusCollector) RecordFailed(kind string) {
	c.recordsFailed.WithLabelValues(kind).Inc()
}

func (c *PrometheusCollector) Translation(outcome string) {
	c.translations.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) SignalForwarded(kind string, delivered int) {
	if delivered == 0 {
		c.signalsDropped.WithLabelValues(kind, DropOffline).Inc()
		return
	}
	c.signalsForwarded.WithLabelValues(kind).Inc()
}

func (c *PrometheusCollector) SignalDropped(kind, reason string) {
	c.signalsDropped.WithLabelValues(kind, reason).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nop discards everything. Used by tests and tools that do not expose metrics.
type Nop struct{}

func (Nop) ClientConnected() {}
func (Nop) ClientDisconnected() {}
func (Nop) MessageBroadcast(int, int) {}
func (Nop) RecordPersisted(string) {}
func (Nop) RecordFailed(string) {}
func (Nop) Translation(string) {}
func (Nop) SignalForwarded(string, int) {}
func (Nop) SignalDropped(string, string) {}
func (Nop) Handler() http.Handler { return http.NotFoundHandler() }
