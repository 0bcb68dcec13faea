package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the download and
// compilation pipeline.
type Metrics struct {
	ArchiveDownloads *prometheus.CounterVec // labels: outcome={ok,not_found,corrupt,error}
	DownloadBytes    prometheus.Counter
	FetchRetries     prometheus.Counter

	RawCacheLookups       *prometheus.CounterVec // labels: result={hit,miss,invalid}
	ProcessedCacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	CompileDuration prometheus.Histogram
	RowsCompiled    prometheus.Counter
	TableErrors     prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ArchiveDownloads,
		m.DownloadBytes,
		m.FetchRetries,
		m.RawCacheLookups,
		m.ProcessedCacheLookups,
		m.CompileDuration,
		m.RowsCompiled,
		m.TableErrors,
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
		ArchiveDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "archive_downloads_total",
			Help:      "Monthly archive fetch attempts by outcome.",
		}, []string{"outcome"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "download_bytes_total",
			Help:      "Total bytes of extracted archive CSV content.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "fetch_retries_total",
			Help:      "Transient fetch failures that triggered a retry.",
		}),
		RawCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "raw_cache_lookups_total",
			Help:      "Raw cache presence checks by result.",
		}, []string{"result"}),
		ProcessedCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "processed_cache_lookups_total",
			Help:      "Processed cache matches by result.",
		}, []string{"result"}),
		CompileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridseer",
			Name:      "compile_duration_seconds",
			Help:      "Duration of a single-table compilation.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RowsCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "rows_compiled_total",
			Help:      "Rows in compiled results after filtering and dedup.",
		}),
		TableErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridseer",
			Name:      "table_errors_total",
			Help:      "Tables whose compilation failed.",
		}),
	}
}
