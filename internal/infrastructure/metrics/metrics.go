// Package metrics exposes scan pipeline metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bytelense"

// Metrics records scan, lookup, agent and keep-alive metrics on a private registry
type Metrics struct {
	scansStarted  prometheus.Counter
	scansFinished *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec

	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	agentRuns       *prometheus.CounterVec
	agentIterations prometheus.Histogram
	fallbacks       *prometheus.CounterVec

	keepAlivePings *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Total number of scans started",
		}),
		scansFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_finished_total",
				Help:      "Total number of scans finished by outcome",
			},
			[]string{"outcome"},
		),
		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of a whole scan in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_stage_duration_seconds",
				Help:      "Duration of each scan stage in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nutrition_provider_calls_total",
				Help:      "Total number of nutrition provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "nutrition_provider_duration_seconds",
				Help:      "Duration of nutrition provider calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		agentRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_runs_total",
				Help:      "Total number of reasoning agent runs by outcome",
			},
			[]string{"outcome"},
		),
		agentIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_iterations",
			Help:      "Reasoning iterations used per agent run",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scoring_fallback_total",
				Help:      "Total number of times deterministic scoring was used",
			},
			[]string{"reason"},
		),

		keepAlivePings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searxng_keepalive_pings_total",
				Help:      "Total number of web search keep-alive pings by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.scansStarted,
		m.scansFinished,
		m.scanDuration,
		m.stageDuration,
		m.providerCalls,
		m.providerDuration,
		m.agentRuns,
		m.agentIterations,
		m.fallbacks,
		m.keepAlivePings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ScanStarted() {
	m.scansStarted.Inc()
}

func (m *Metrics) ScanFinished(outcome string, duration time.Duration) {
	m.scansFinished.WithLabelValues(outcome).Inc()
	m.scanDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) StageCompleted(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) ProviderCall(provider, outcome string, duration time.Duration) {
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) AgentRun(iterations int, outcome string) {
	m.agentRuns.WithLabelValues(outcome).Inc()
	m.agentIterations.Observe(float64(iterations))
}

func (m *Metrics) FallbackUsed(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

// KeepAlivePing records the result of one web search keep-alive ping
func (m *Metrics) KeepAlivePing(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.keepAlivePings.WithLabelValues(result).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
