package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	OutboundMessages *prometheus.CounterVec
	Relays           *prometheus.CounterVec
	StageLatency     *prometheus.HistogramVec
	ProviderErrors   *prometheus.CounterVec

	window *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live pairing sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session registry transitions by event.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		OutboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound messages by type and enqueue result.",
		}, []string{"type", "result"}),
		Relays: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_total",
			Help:      "Completed relays by result and failing stage.",
		}, []string{"result", "stage"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_stage_latency_ms",
			Help:      "Relay stage latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"stage"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		window: newStageWindow(256),
	}
}

func (m *Metrics) ObserveSessionEvent(event string, active int) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
	m.ActiveSessions.Set(float64(active))
}

func (m *Metrics) ObserveInbound(msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues("in", msgType).Inc()
}

// ObserveOutbound counts an outbound message; delivered is false when the
// message was dropped.
func (m *Metrics) ObserveOutbound(msgType string, delivered bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !delivered {
		result = "dropped"
	}
	m.WSMessages.WithLabelValues("out", msgType).Inc()
	m.OutboundMessages.WithLabelValues(msgType, result).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
	m.window.Observe(stage, d)
}

// ObserveRelay records the end of a relay. stage is empty on success.
func (m *Metrics) ObserveRelay(result, stage string, total time.Duration) {
	if m == nil {
		return
	}
	m.Relays.WithLabelValues(result, stage).Inc()
	m.window.ObserveOutcome(result)
	if result == "delivered" {
		m.window.Observe("relay", total)
	}
}

func (m *Metrics) ObserveProviderError(provider, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) SnapshotStages() LatencySnapshot {
	if m == nil {
		return newStageWindow(0).Snapshot()
	}
	return m.window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
