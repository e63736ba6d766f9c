package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instrumentation for sessions. A nil
// *Metrics is valid and records nothing, so instrumentation stays
// optional.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive     prometheus.Gauge
	SessionsTotal      *prometheus.CounterVec
	TurnsTotal         prometheus.Counter
	InterruptionsTotal prometheus.Counter
	ToolCallsTotal     *prometheus.CounterVec
	AudioBytesTotal    *prometheus.CounterVec
	TokensInUse        *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "livebridge"
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions currently open",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total sessions by terminal outcome",
		}, []string{"outcome"}),
		TurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total model turns started",
		}),
		InterruptionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total model turns aborted by user activity",
		}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total function calls by outcome",
		}, []string{"outcome"}),
		AudioBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total PCM bytes by direction",
		}, []string{"direction"}),
		TokensInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens_in_use",
			Help:      "Latest cumulative token usage by category",
		}, []string{"category"}),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.TurnsTotal,
		m.InterruptionsTotal,
		m.ToolCallsTotal,
		m.AudioBytesTotal,
		m.TokensInUse,
	)
	return m
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.TurnsTotal.Inc()
}

func (m *Metrics) TurnInterrupted() {
	if m == nil {
		return
	}
	m.InterruptionsTotal.Inc()
}

func (m *Metrics) ObserveToolCall(outcome string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAudio(direction string, bytes int) {
	if m == nil {
		return
	}
	m.AudioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

func (m *Metrics) ObserveTokens(usage Usage) {
	if m == nil {
		return
	}
	m.TokensInUse.WithLabelValues("prompt").Set(float64(usage.PromptTokens))
	m.TokensInUse.WithLabelValues("cached").Set(float64(usage.CachedTokens))
	m.TokensInUse.WithLabelValues("response").Set(float64(usage.ResponseTokens))
	m.TokensInUse.WithLabelValues("tool_use").Set(float64(usage.ToolUseTokens))
	m.TokensInUse.WithLabelValues("thought").Set(float64(usage.ThoughtTokens))
	m.TokensInUse.WithLabelValues("total").Set(float64(usage.TotalTokens))
}
