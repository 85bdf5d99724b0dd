package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the companion's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GuidanceTurnsTotal *prometheus.CounterVec
	ChatTurnsTotal     *prometheus.CounterVec
	LiveConnectsTotal  *prometheus.CounterVec
	LiveSessionsActive prometheus.Gauge
	ProviderDuration   *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mindful"
	}

	registry := prometheus.NewRegistry()

	guidanceTurns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guidance_turns_total",
			Help:      "Guidance turns by outcome (resolved, fallback, failed)",
		},
		[]string{"outcome"},
	)

	chatTurns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome (replied, failed)",
		},
		[]string{"outcome"},
	)

	liveConnects := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_connects_total",
			Help:      "Live session connect attempts by outcome",
		},
		[]string{"outcome"},
	)

	liveActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of streaming live sessions",
		},
	)

	providerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_seconds",
			Help:      "Provider request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		guidanceTurns,
		chatTurns,
		liveConnects,
		liveActive,
		providerDuration,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:           registry,
		GuidanceTurnsTotal: guidanceTurns,
		ChatTurnsTotal:     chatTurns,
		LiveConnectsTotal:  liveConnects,
		LiveSessionsActive: liveActive,
		ProviderDuration:   providerDuration,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordGuidanceTurn(outcome string) {
	if m == nil {
		return
	}
	m.GuidanceTurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLiveConnect(outcome string) {
	if m == nil {
		return
	}
	m.LiveConnectsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLiveSessionStart() {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Inc()
}

func (m *Metrics) RecordLiveSessionEnd() {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Dec()
}

func (m *Metrics) ObserveProvider(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
