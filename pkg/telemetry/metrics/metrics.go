// Package metrics registers the gateway's Prometheus instrumentation and
// serves the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Metrics holds all Prometheus instruments the gateway records into.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts completion requests by provider and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes upstream latency by provider.
	RequestDuration *prometheus.HistogramVec

	// TokensTotal counts tokens by provider and kind (prompt/completion).
	TokensTotal *prometheus.CounterVec

	// CostTotal accumulates estimated dollar cost by provider.
	CostTotal *prometheus.CounterVec

	// ProviderSwitches counts active-provider switches.
	ProviderSwitches prometheus.Counter

	// TunnelConnected reports whether a tunnel client is attached.
	TunnelConnected prometheus.Gauge

	// TunnelReconnects counts tunnel client reconnect attempts.
	TunnelReconnects prometheus.Counter
}

// New creates and registers the gateway metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completion requests by provider and status.",
		}, []string{"provider", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency by provider.",
			// LLM latencies run long; buckets reach the upstream deadline
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),

		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens processed by provider and kind.",
		}, []string{"provider", "kind"}),

		CostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_dollars_total",
			Help:      "Estimated spend by provider in dollars.",
		}, []string{"provider"}),

		ProviderSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_switches_total",
			Help:      "Active provider switches.",
		}),

		TunnelConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tunnel_connected",
			Help:      "1 when a tunnel client is attached to the bridge.",
		}),

		TunnelReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tunnel_reconnects_total",
			Help:      "Tunnel client reconnect attempts.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.TokensTotal,
		m.CostTotal,
		m.ProviderSwitches,
		m.TunnelConnected,
		m.TunnelReconnects,
	)

	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
