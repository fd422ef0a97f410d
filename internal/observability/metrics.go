package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and ranking paths.
type Metrics struct {
	RecordsDecoded      prometheus.Counter
	CitiesAdded         prometheus.Counter
	ObservationsWritten prometheus.Counter
	RecordsSkipped      prometheus.Counter
	IngestErrors        prometheus.Counter
	IngestDuration      prometheus.Histogram

	// Ranking metrics.
	RankRequests *prometheus.CounterVec // labels: mode={weighted,population}

	// Dataset download metrics.
	DatasetFetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsDecoded,
		m.CitiesAdded,
		m.ObservationsWritten,
		m.RecordsSkipped,
		m.IngestErrors,
		m.IngestDuration,
		m.RankRequests,
		m.DatasetFetchDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_etl",
			Name:      "records_decoded_total",
			Help:      "Total cube cells decoded into flat records.",
		}),
		CitiesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_etl",
			Name:      "cities_added_total",
			Help:      "Total new city rows created during ingestion.",
		}),
		ObservationsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_etl",
			Name:      "observations_written_total",
			Help:      "Total observation upserts, including replacements.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_etl",
			Name:      "records_skipped_total",
			Help:      "Total records skipped by role resolution or code policy.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "city_etl",
			Name:      "ingest_errors_total",
			Help:      "Total malformed records and per-record store failures.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "city_etl",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete cube ingestion batch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RankRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "city_etl",
			Name:      "rank_requests_total",
			Help:      "Ranking calls by scoring mode.",
		}, []string{"mode"}),
		DatasetFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "city_etl",
			Name:      "dataset_fetch_duration_seconds",
			Help:      "Eurostat dataset download duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
