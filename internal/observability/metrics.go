// File: internal/observability/metrics.go
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "remixer"

// Metrics holds the collectors for workflow activity. A nil *Metrics is valid
// and records nothing, so components never need to check whether metrics are enabled.
type Metrics struct {
	registry      *prometheus.Registry
	workflows     *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	downloadTier  *prometheus.CounterVec
	images        prometheus.Counter
	imageFailures prometheus.Counter
	active        prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry, along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Workflow runs by strategy and terminal outcome.",
		}, []string{"strategy", "outcome"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each workflow phase.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180, 300},
		}, []string{"phase"}),
		downloadTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "download",
			Name:      "attempts_total",
			Help:      "Download attempts by tier and result.",
		}, []string{"tier", "result"}),
		images: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "images_generated_total",
			Help:      "Images successfully generated and saved.",
		}),
		imageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "image_failures_total",
			Help:      "Images that failed and were skipped within a run.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "workflow",
			Name:      "active",
			Help:      "Workflows currently holding the browser.",
		}),
	}
	m.registry.MustRegister(
		m.workflows, m.phaseDuration, m.downloadTier, m.images, m.imageFailures, m.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveWorkflow(strategy, outcome string) {
	if m == nil {
		return
	}
	m.workflows.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) ObserveDownload(tier, result string) {
	if m == nil {
		return
	}
	m.downloadTier.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) IncImages() {
	if m == nil {
		return
	}
	m.images.Inc()
}

func (m *Metrics) IncImageFailures() {
	if m == nil {
		return
	}
	m.imageFailures.Inc()
}

func (m *Metrics) IncActive() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) DecActive() {
	if m == nil {
		return
	}
	m.active.Dec()
}
