package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "observer_companion"

// Metrics holds all Prometheus metrics for the application.
//
// The Record helpers are safe to call on a nil *Metrics so components can run
// without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Shortcut metrics
	ShortcutsRegistered  prometheus.Gauge
	ShortcutsSkipped     prometheus.Gauge
	ShortcutPressesTotal *prometheus.CounterVec
	ShortcutErrorsTotal  *prometheus.CounterVec

	// Command bus metrics
	CommandsSubmittedTotal *prometheus.CounterVec
	CommandsPending        prometheus.Gauge
	StreamSubscribers      prometheus.Gauge
	StreamMissedTotal      prometheus.Counter

	// Gateway metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RPCCallsTotal       *prometheus.CounterVec
	WebsocketClients    prometheus.Gauge

	// Backend metrics
	BackendProbesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ShortcutsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "shortcuts_registered",
				Help:      "Number of global shortcuts registered with the OS",
			},
		),
		ShortcutsSkipped: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "shortcuts_skipped",
				Help:      "Number of configured shortcuts that could not be registered",
			},
		),
		ShortcutPressesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shortcut_presses_total",
				Help:      "Total number of shortcut presses dispatched",
			},
			[]string{"action"},
		),
		ShortcutErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shortcut_effect_errors_total",
				Help:      "Total number of shortcut effects that failed",
			},
			[]string{"action"},
		),

		CommandsSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_submitted_total",
				Help:      "Total number of agent commands submitted",
			},
			[]string{"source"},
		),
		CommandsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "commands_pending",
				Help:      "Number of agents with an undelivered command",
			},
		),
		StreamSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_subscribers",
				Help:      "Number of live command stream subscribers",
			},
		),
		StreamMissedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_missed_total",
				Help:      "Total number of stream messages dropped for slow subscribers",
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RPCCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_calls_total",
				Help:      "Total number of RPC calls",
			},
			[]string{"method", "status"},
		),
		WebsocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Number of connected websocket clients",
			},
		),

		BackendProbesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_probes_total",
				Help:      "Total number of inference backend probes",
			},
			[]string{"result"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.ShortcutsRegistered,
		m.ShortcutsSkipped,
		m.ShortcutPressesTotal,
		m.ShortcutErrorsTotal,
		m.CommandsSubmittedTotal,
		m.CommandsPending,
		m.StreamSubscribers,
		m.StreamMissedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RPCCallsTotal,
		m.WebsocketClients,
		m.BackendProbesTotal,
	)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRegistration records the outcome of shortcut registration.
func (m *Metrics) RecordRegistration(registered, skipped int) {
	if m == nil {
		return
	}
	m.ShortcutsRegistered.Set(float64(registered))
	m.ShortcutsSkipped.Set(float64(skipped))
}

// RecordShortcutPress counts a dispatched press for the given action kind.
func (m *Metrics) RecordShortcutPress(action string) {
	if m == nil {
		return
	}
	m.ShortcutPressesTotal.WithLabelValues(action).Inc()
}

// RecordShortcutError counts a failed effect for the given action kind.
func (m *Metrics) RecordShortcutError(action string) {
	if m == nil {
		return
	}
	m.ShortcutErrorsTotal.WithLabelValues(action).Inc()
}

// RecordCommand counts a submitted command by source (shortcut, http, rpc).
func (m *Metrics) RecordCommand(source string) {
	if m == nil {
		return
	}
	m.CommandsSubmittedTotal.WithLabelValues(source).Inc()
}

// SetPending sets the number of pending mailbox entries.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.CommandsPending.Set(float64(n))
}

// SetSubscribers sets the number of live stream subscribers.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.StreamSubscribers.Set(float64(n))
}

// RecordMissed adds n dropped stream messages.
func (m *Metrics) RecordMissed(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.StreamMissedTotal.Add(float64(n))
}

// RecordHTTP counts a finished HTTP request and observes its duration.
func (m *Metrics) RecordHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRPC counts an RPC call by method and status (ok, error).
func (m *Metrics) RecordRPC(method, status string) {
	if m == nil {
		return
	}
	m.RPCCallsTotal.WithLabelValues(method, status).Inc()
}

// SetWebsocketClients sets the number of connected websocket clients.
func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Set(float64(n))
}

// RecordProbe counts a backend probe by result (reachable, unreachable).
func (m *Metrics) RecordProbe(result string) {
	if m == nil {
		return
	}
	m.BackendProbesTotal.WithLabelValues(result).Inc()
}
