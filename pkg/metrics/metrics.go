package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Emails seen by the sync engine, labelled by what happened to them.
	// status: staged, skipped_duplicate, failed
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_emails_processed_total",
			Help: "Total number of emails handled by the sync engine",
		},
		[]string{"status"},
	)

	// Batch commit outcomes. outcome: ok, retried, dropped
	BatchCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_batch_commits_total",
			Help: "Total number of batch commit attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Sync invocations. mode: query, history, fallback; outcome: ok, error
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync engine invocations",
		},
		[]string{"mode", "outcome"},
	)

	// Unsubscribe attempt results keyed by terminal status and method.
	UnsubscribeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unsubscribe_attempts_total",
			Help: "Total number of unsubscribe attempts by status and method",
		},
		[]string{"status", "method"},
	)

	// Gmail API call latency in milliseconds.
	GmailCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail_call_latency_ms",
			Help:    "Gmail API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"operation", "status"},
	)

	// AI service call latency in milliseconds.
	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_latency_ms",
			Help:    "AI categorization/summarization call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
		[]string{"endpoint", "status"},
	)

	// HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

// RecordEmailProcessed counts one email by terminal status.
func RecordEmailProcessed(status string) {
	EmailsProcessed.WithLabelValues(status).Inc()
}

// RecordBatchCommit counts one batch commit attempt.
func RecordBatchCommit(outcome string) {
	BatchCommits.WithLabelValues(outcome).Inc()
}

// RecordSyncRun counts one sync invocation.
func RecordSyncRun(mode, outcome string) {
	SyncRuns.WithLabelValues(mode, outcome).Inc()
}

// RecordUnsubscribeAttempt counts one unsubscribe outcome.
func RecordUnsubscribeAttempt(status, method string) {
	UnsubscribeAttempts.WithLabelValues(status, method).Inc()
}

// RecordGmailCallLatency records one Gmail API call.
func RecordGmailCallLatency(operation, status string, duration time.Duration) {
	GmailCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordAICallLatency records one AI service call.
func RecordAICallLatency(endpoint, status string, duration time.Duration) {
	AICallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration records one HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
