// Package metrics provides Prometheus metrics for newsdigest.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsdigest"

var (
	// IngestRunsTotal counts ingestion cycles by outcome.
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Total number of ingestion cycles",
		},
		[]string{"source", "result"},
	)

	// ArticlesTotal counts articles seen by ingestion, by what happened to them.
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Articles processed by ingestion",
		},
		[]string{"source", "outcome"},
	)

	// IngestDuration measures ingestion cycle duration.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of ingestion cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// NotificationsTotal counts notification publish attempts.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification publish attempts",
		},
		[]string{"transport", "status"},
	)

	// SummariesTotal counts summarization cycles by outcome.
	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of summarization cycles",
		},
		[]string{"result"},
	)

	// GenerationDuration measures text generation latency.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of text generation requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
)

// Article outcomes.
const (
	OutcomeAppended  = "appended"
	OutcomeDuplicate = "duplicate"
	OutcomeDropped   = "dropped"
	OutcomeFiltered  = "filtered"
)

// RecordIngest records one ingestion cycle.
func RecordIngest(source, result string, seconds float64) {
	IngestRunsTotal.WithLabelValues(source, result).Inc()
	IngestDuration.WithLabelValues(source).Observe(seconds)
}

// RecordArticles adds n articles with the given outcome.
func RecordArticles(source, outcome string, n int) {
	if n <= 0 {
		return
	}
	ArticlesTotal.WithLabelValues(source, outcome).Add(float64(n))
}

// RecordNotification records a publish attempt on a transport.
func RecordNotification(transport string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsTotal.WithLabelValues(transport, status).Inc()
}

// RecordSummary records one summarization cycle.
func RecordSummary(result string) {
	SummariesTotal.WithLabelValues(result).Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
