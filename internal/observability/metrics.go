package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the arXiv query service.
// Metrics are organized by subsystem: searches, downloads, extraction, the
// rate limiter, and outbound API traffic. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// SearchesStarted counts searches initiated, labeled by search mode
	// (general, id, category, author, date_range).
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by search mode.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by search mode.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by search mode.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the distribution of papers returned per search,
	// labeled by search mode.
	PapersPerSearch *prometheus.HistogramVec

	// DownloadsStarted counts PDF downloads initiated.
	DownloadsStarted prometheus.Counter

	// DownloadsCompleted counts PDF downloads that finished successfully.
	DownloadsCompleted prometheus.Counter

	// DownloadsFailed counts PDF downloads that failed, labeled by error type.
	DownloadsFailed *prometheus.CounterVec

	// DownloadsSkipped counts downloads short-circuited because the file
	// already existed.
	DownloadsSkipped prometheus.Counter

	// DownloadDuration observes download duration in seconds.
	DownloadDuration prometheus.Histogram

	// DownloadBytes observes downloaded PDF sizes in bytes.
	DownloadBytes prometheus.Histogram

	// ExtractionsStarted counts text extractions initiated.
	ExtractionsStarted prometheus.Counter

	// ExtractionsCompleted counts extractions that produced text, labeled by
	// the strategy that succeeded (remote_ocr, local_ocr, local_parser).
	ExtractionsCompleted *prometheus.CounterVec

	// ExtractionsFailed counts extractions where every strategy failed.
	ExtractionsFailed prometheus.Counter

	// ExtractionDuration observes extraction duration in seconds, labeled by strategy.
	ExtractionDuration *prometheus.HistogramVec

	// RateLimitRejections counts calls rejected by the quota limiter, labeled
	// by the exhausted quota (minute, day, interval).
	RateLimitRejections *prometheus.CounterVec

	// APIRequestsTotal counts outbound API requests, labeled by target
	// (arxiv, mistral_ocr) and endpoint.
	APIRequestsTotal *prometheus.CounterVec

	// APIRequestsFailed counts failed outbound API requests, labeled by
	// target, endpoint, and error type.
	APIRequestsFailed *prometheus.CounterVec

	// APIRequestDuration observes outbound API request duration in seconds.
	APIRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of paper searches started by mode",
		}, []string{"mode"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of paper searches completed by mode",
		}, []string{"mode"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of paper searches that failed by mode",
		}, []string{"mode"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of paper searches in seconds by mode",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"mode"}),
		PapersPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per search by mode",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}, []string{"mode"}),

		// Downloads
		DownloadsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_started_total",
			Help:      "Total number of PDF downloads started",
		}),
		DownloadsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_completed_total",
			Help:      "Total number of PDF downloads completed successfully",
		}),
		DownloadsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_failed_total",
			Help:      "Total number of PDF downloads that failed by error type",
		}, []string{"error_type"}),
		DownloadsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_skipped_total",
			Help:      "Total number of downloads skipped because the file already existed",
		}),
		DownloadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of PDF downloads in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		DownloadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_bytes",
			Help:      "Size of downloaded PDF files in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),

		// Extraction
		ExtractionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_started_total",
			Help:      "Total number of text extractions started",
		}),
		ExtractionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_completed_total",
			Help:      "Total number of text extractions completed by strategy",
		}, []string{"strategy"}),
		ExtractionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_failed_total",
			Help:      "Total number of text extractions where every strategy failed",
		}),
		ExtractionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of text extractions in seconds by strategy",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),

		// Rate limiting
		RateLimitRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of calls rejected by the quota limiter",
		}, []string{"quota"}),

		// Outbound APIs
		APIRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of outbound API requests",
		}, []string{"target", "endpoint"}),
		APIRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_failed_total",
			Help:      "Total number of failed outbound API requests",
		}, []string{"target", "endpoint", "error_type"}),
		APIRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of outbound API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"target", "endpoint"}),
	}
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(mode string) {
	m.SearchesStarted.WithLabelValues(mode).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(mode string, paperCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(mode).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(mode).Observe(float64(paperCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(mode string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(mode).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordDownloadStarted records that a PDF download has started.
func (m *Metrics) RecordDownloadStarted() {
	m.DownloadsStarted.Inc()
}

// RecordDownloadCompleted records a successful PDF download.
func (m *Metrics) RecordDownloadCompleted(bytes int64, durationSeconds float64) {
	m.DownloadsCompleted.Inc()
	m.DownloadDuration.Observe(durationSeconds)
	m.DownloadBytes.Observe(float64(bytes))
}

// RecordDownloadFailed records a failed PDF download.
func (m *Metrics) RecordDownloadFailed(errorType string) {
	m.DownloadsFailed.WithLabelValues(errorType).Inc()
}

// RecordDownloadSkipped records a download skipped because the file existed.
func (m *Metrics) RecordDownloadSkipped() {
	m.DownloadsSkipped.Inc()
}

// RecordExtractionStarted records that a text extraction has started.
func (m *Metrics) RecordExtractionStarted() {
	m.ExtractionsStarted.Inc()
}

// RecordExtractionCompleted records a successful extraction and the strategy
// that produced the text.
func (m *Metrics) RecordExtractionCompleted(strategy string, durationSeconds float64) {
	m.ExtractionsCompleted.WithLabelValues(strategy).Inc()
	m.ExtractionDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordExtractionFailed records an extraction where every strategy failed.
func (m *Metrics) RecordExtractionFailed() {
	m.ExtractionsFailed.Inc()
}

// RecordRateLimitRejection records a call rejected by the quota limiter.
func (m *Metrics) RecordRateLimitRejection(quota string) {
	m.RateLimitRejections.WithLabelValues(quota).Inc()
}

// RecordAPIRequest records an outbound API request.
func (m *Metrics) RecordAPIRequest(target, endpoint string, durationSeconds float64) {
	m.APIRequestsTotal.WithLabelValues(target, endpoint).Inc()
	m.APIRequestDuration.WithLabelValues(target, endpoint).Observe(durationSeconds)
}

// RecordAPIRequestFailed records a failed outbound API request.
func (m *Metrics) RecordAPIRequestFailed(target, endpoint, errorType string) {
	m.APIRequestsFailed.WithLabelValues(target, endpoint, errorType).Inc()
}
