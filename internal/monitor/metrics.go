// Package monitor exposes prometheus metrics and the health/status HTTP
// endpoints the dashboard UI polls for its connection indicator.
package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	websocketConnected prometheus.Gauge
	reconnectAttempts  prometheus.Counter
	framesReceived     *prometheus.CounterVec
	framesDropped      *prometheus.CounterVec
	subscriptions      prometheus.Gauge
	reconciliations    *prometheus.CounterVec
	baselineFetches    *prometheus.CounterVec
	natsConnected      prometheus.Gauge
	statesPublished    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		websocketConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connected",
				Help:      "WebSocket connection status (1=connected, 0=disconnected)",
			},
		),
		reconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnect_attempts_total",
				Help:      "Total number of reconnect attempts",
			},
		),
		framesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_received_total",
				Help:      "Total number of data frames received",
			},
			[]string{"channel"},
		),
		framesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Total number of frames dropped (undecodable or unmatched)",
			},
			[]string{"channel"},
		),
		subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscriptions_active",
				Help:      "Current number of logical subscription entries",
			},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Account reconciliations by outcome",
			},
			[]string{"outcome"}, // applied, suppressed
		),
		baselineFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "baseline_fetches_total",
				Help:      "REST baseline fetches by result",
			},
			[]string{"result"}, // hit, miss, error
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		statesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "states_published_total",
				Help:      "Total number of account states published to NATS",
			},
		),
	}

	prometheus.MustRegister(
		m.websocketConnected,
		m.reconnectAttempts,
		m.framesReceived,
		m.framesDropped,
		m.subscriptions,
		m.reconciliations,
		m.baselineFetches,
		m.natsConnected,
		m.statesPublished,
	)

	return m
}

func (m *Metrics) SetWebSocketConnected(connected bool) {
	if connected {
		m.websocketConnected.Set(1)
	} else {
		m.websocketConnected.Set(0)
	}
}

func (m *Metrics) IncReconnectAttempts() {
	m.reconnectAttempts.Inc()
}

func (m *Metrics) IncFramesReceived(channel string) {
	m.framesReceived.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncFramesDropped(channel string) {
	m.framesDropped.WithLabelValues(channel).Inc()
}

func (m *Metrics) SetSubscriptions(count int) {
	m.subscriptions.Set(float64(count))
}

func (m *Metrics) IncReconciliations(outcome string) {
	m.reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncBaselineFetches(result string) {
	m.baselineFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

func (m *Metrics) IncStatesPublished() {
	m.statesPublished.Inc()
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("hl_dashboard")
	})
	return globalMetrics
}

func InitMetrics() {
	GetMetrics()
}
