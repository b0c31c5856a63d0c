// Package metrics holds the Prometheus collectors shared by the API process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storyforge"

// Metrics owns its registry rather than using the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestsInflight prometheus.Gauge

	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	PromptTokens       *prometheus.HistogramVec

	ScenesServed   *prometheus.CounterVec
	SavesTotal     *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		}, []string{"method", "route", "status"}),
		RequestsInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		}),
		GenerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_generations_total",
			Help:      "Text generations by model and outcome.",
		}, []string{"model", "status"}),
		GenerationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_generation_duration_seconds",
			Help:      "Time spent waiting on the text-completion engine.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"model"}),
		PromptTokens: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_prompt_tokens",
			Help:      "Estimated prompt size in tokens.",
			Buckets:   prometheus.LinearBuckets(100, 100, 10),
		}, []string{"model"}),
		ScenesServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_served_total",
			Help:      "Scenes shown to players by source (template or ai).",
		}, []string{"source"}),
		SavesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save persistence operations by kind and outcome.",
		}, []string{"op", "status"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Game sessions held in memory.",
		}),
	}
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Status maps an error to the label used on outcome counters.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
