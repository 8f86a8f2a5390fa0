// Package metrics exposes Prometheus counters for capture and composition.
// All recording methods are safe on a nil *Metrics, so core packages can run
// without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paramtrail"

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	captured       *prometheus.CounterVec
	decodeFallback *prometheus.CounterVec
	composed       *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	sessions       prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		captured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captured_values_total",
			Help:      "Parameter values written into a session by the capture pipeline.",
		}, []string{"parameter"}),
		decodeFallback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_fallbacks_total",
			Help:      "Incoming values that were not valid tokens and were kept literally.",
		}, []string{"parameter"}),
		composed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composed_urls_total",
			Help:      "URLs produced by the composer, by kind.",
		}, []string{"kind"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_pairs_total",
			Help:      "Pairs omitted from composed URLs because the name is not tracked.",
		}, []string{"kind"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live sessions held by the session manager.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Captured counts one stored value.
func (m *Metrics) Captured(parameter string) {
	if m == nil {
		return
	}
	m.captured.WithLabelValues(parameter).Inc()
}

// DecodeFallback counts one value kept literally after a failed decode.
func (m *Metrics) DecodeFallback(parameter string) {
	if m == nil {
		return
	}
	m.decodeFallback.WithLabelValues(parameter).Inc()
}

// Composed counts one generated URL.
func (m *Metrics) Composed(kind string) {
	if m == nil {
		return
	}
	m.composed.WithLabelValues(kind).Inc()
}

// Dropped counts pairs omitted from a generated URL.
func (m *Metrics) Dropped(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(kind).Add(float64(n))
}

// SetSessions records the current session count.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
