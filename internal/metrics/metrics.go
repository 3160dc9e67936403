package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsAnalyzed counts sessions that completed analysis, by
	// resulting severity.
	SessionsAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrowtrace",
		Name:      "sessions_analyzed_total",
		Help:      "Sessions analyzed, labeled by report severity.",
	}, []string{"severity"})

	// EventsParsed counts parsed events by category.
	EventsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrowtrace",
		Name:      "events_parsed_total",
		Help:      "Events parsed from session logs, by event type.",
	}, []string{"event_type"})

	// MalformedEvents counts events skipped during lenient parsing.
	MalformedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "escrowtrace",
		Name:      "malformed_events_total",
		Help:      "Events skipped as malformed.",
	})

	// AnomaliesFound counts anomaly records by kind.
	AnomaliesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrowtrace",
		Name:      "anomalies_total",
		Help:      "Anomaly records extracted, by source event type.",
	}, []string{"event_type"})

	// AnalysisDuration observes per-session analysis latency.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "escrowtrace",
		Name:      "analysis_duration_seconds",
		Help:      "Wall time spent analyzing one session.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// WriteFailures counts report sink write errors.
	WriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "escrowtrace",
		Name:      "report_write_failures_total",
		Help:      "Failed report batch writes.",
	})
)

// ObserveAnalysis records the latency of one session analysis.
func ObserveAnalysis(start time.Time) {
	AnalysisDuration.Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
