// Package metrics defines the Prometheus collectors of a batch run. A run
// has no scrape endpoint; the registry is written to a node-exporter
// textfile when the run ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for a run.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal         *prometheus.CounterVec
	ResultsCount         prometheus.Histogram
	CandidatesCount      prometheus.Histogram
	SkippedRecordsTotal  *prometheus.CounterVec
	ClampedTermsTotal    prometheus.Counter
	UndefinedMetricTotal prometheus.Counter
	IndexDocuments       prometheus.Gauge
	IndexTerms           prometheus.Gauge
	MeanAveragePrecision prometheus.Gauge
	MeanReciprocalRank   prometheus.Gauge
	RunDuration          prometheus.Gauge
}

// New creates all collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bm25eval_queries_total",
				Help: "Queries by outcome (ranked, evaluated, excluded).",
			},
			[]string{"outcome"},
		),
		ResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bm25eval_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
		),
		CandidatesCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bm25eval_candidates_count",
				Help:    "Number of candidate documents scored per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		SkippedRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bm25eval_skipped_records_total",
				Help: "Malformed input records skipped, by input kind.",
			},
			[]string{"input"},
		),
		ClampedTermsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25eval_clamped_terms_total",
				Help: "Query terms whose relevance weight was clamped to zero.",
			},
		),
		UndefinedMetricTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25eval_undefined_average_precision_total",
				Help: "Evaluated queries that retrieved no relevant document.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bm25eval_index_documents",
				Help: "Documents in the posting index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bm25eval_index_terms",
				Help: "Distinct terms in the posting index.",
			},
		),
		MeanAveragePrecision: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bm25eval_mean_average_precision",
				Help: "MAP of the last run.",
			},
		),
		MeanReciprocalRank: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bm25eval_mean_reciprocal_rank",
				Help: "MRR of the last run.",
			},
		),
		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bm25eval_run_duration_seconds",
				Help: "Wall time of the last run.",
			},
		),
	}

	m.Registry.MustRegister(
		m.QueriesTotal,
		m.ResultsCount,
		m.CandidatesCount,
		m.SkippedRecordsTotal,
		m.ClampedTermsTotal,
		m.UndefinedMetricTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.MeanAveragePrecision,
		m.MeanReciprocalRank,
		m.RunDuration,
	)

	return m
}

// WriteTextfile writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
