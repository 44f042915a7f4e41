// Package metrics defines the Prometheus collectors used by the ranking
// batch and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a batch run.
type Metrics struct {
	ContextsTotal       *prometheus.CounterVec
	ContextDuration     prometheus.Histogram
	ContextsInFlight    prometheus.Gauge
	CorpusDocuments     prometheus.Histogram
	HitsPerRecord       prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	SinkWritesTotal     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ContextsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerank_contexts_total",
				Help: "Query contexts handled, by outcome (ranked, cached, empty_corpus, empty_query, malformed_record, corpus_unavailable, timeout, error).",
			},
			[]string{"outcome"},
		),
		ContextDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filerank_context_duration_seconds",
				Help:    "Time to index, score and select one query context.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		ContextsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "filerank_contexts_in_flight",
				Help: "Query contexts currently being ranked.",
			},
		),
		CorpusDocuments: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filerank_corpus_documents",
				Help:    "Number of documents per query context corpus.",
				Buckets: []float64{0, 10, 100, 500, 1000, 5000, 10000},
			},
		),
		HitsPerRecord: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filerank_hits_per_record",
				Help:    "Number of hits emitted per result record.",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "filerank_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "filerank_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		SinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filerank_sink_writes_total",
				Help: "Result records written to the output sink, by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filerank_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.ContextsTotal,
		m.ContextDuration,
		m.ContextsInFlight,
		m.CorpusDocuments,
		m.HitsPerRecord,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SinkWritesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
