// Package metrics exposes Prometheus instrumentation for evolution runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "darwin"

// Metrics holds the run collectors on a private registry so that several
// servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	generations  *prometheus.CounterVec
	activeRuns   prometheus.Gauge
	runDuration  *prometheus.HistogramVec
	bestFitness  *prometheus.GaugeVec
}

// New creates and registers the collectors, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Evolution runs started, by problem.",
		}, []string{"problem"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Evolution runs finished, by problem and final status.",
		}, []string{"problem", "status"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations evaluated, by problem.",
		}, []string{"problem"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"problem"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness of the most recent generation, by problem.",
		}, []string{"problem"}),
	}

	m.registry.MustRegister(
		m.runsStarted, m.runsFinished, m.generations,
		m.activeRuns, m.runDuration, m.bestFitness,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunStarted(problem string) {
	m.runsStarted.WithLabelValues(problem).Inc()
	m.activeRuns.Inc()
}

func (m *Metrics) RunFinished(problem, status string, elapsed time.Duration) {
	m.runsFinished.WithLabelValues(problem, status).Inc()
	m.activeRuns.Dec()
	m.runDuration.WithLabelValues(problem).Observe(elapsed.Seconds())
}

// Generation records one evaluated generation and its best fitness.
func (m *Metrics) Generation(problem string, best float64) {
	m.generations.WithLabelValues(problem).Inc()
	m.bestFitness.WithLabelValues(problem).Set(best)
}
