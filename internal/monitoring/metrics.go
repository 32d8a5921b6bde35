package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the worker.
type Metrics struct {
	PagesCrawled  prometheus.Counter
	PagesFailed   prometheus.Counter
	FetchDuration prometheus.Histogram
	IssuesFound   *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
}

// New registers and returns the worker metrics.
func New() *Metrics {
	return &Metrics{
		PagesCrawled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_pages_crawled_total",
			Help: "The total number of pages fetched and extracted",
		}),
		PagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_pages_failed_total",
			Help: "The total number of pages whose fetch permanently failed",
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "siteaudit_fetch_duration_seconds",
			Help:    "Time spent fetching and extracting one page",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		IssuesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_issues_found_total",
			Help: "The total number of issues detected",
		}, []string{"severity"}),
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_jobs_processed_total",
			Help: "The total number of jobs finished",
		}, []string{"status"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'db_save_failed', 'issue_save_failed'
	}
}
