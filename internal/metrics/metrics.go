// Package metrics holds the Prometheus collectors for the index and query paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is the process registry exposed at /metrics.
var Registry = prometheus.NewRegistry()

var (
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librag_index_refresh_total",
			Help: "Index refreshes by result (ok, data_unavailable, error)",
		},
		[]string{"result"},
	)
	RefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "librag_index_refresh_duration_seconds",
			Help:    "Duration of full index rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
	IndexEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "librag_index_entries",
			Help: "Entries in the live index generation",
		},
		[]string{"index"},
	)
	IndexGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "librag_index_generation",
			Help: "Sequence number of the live index generation",
		},
	)
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librag_queries_total",
			Help: "Query operations by stage (retrieve, generate) and result",
		},
		[]string{"stage", "result"},
	)
	GenerateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "librag_generate_duration_seconds",
			Help:    "Latency of generative service calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		RefreshTotal, RefreshDuration, IndexEntries, IndexGeneration,
		QueriesTotal, GenerateDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
