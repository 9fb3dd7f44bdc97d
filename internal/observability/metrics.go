package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PostEvents counts post lifecycle events (created, updated, deleted).
	PostEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_post_events_total",
		Help: "Total number of post lifecycle events",
	}, []string{"event"})

	// PostViews counts single-post reads that incremented the view counter.
	PostViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_post_views_total",
		Help: "Total number of recorded post views",
	})

	// CommentEvents counts comment lifecycle events by resulting status.
	CommentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_comment_events_total",
		Help: "Total number of comment lifecycle events",
	}, []string{"event", "status"})

	// AuthEvents counts sign-up, sign-in and verification outcomes.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_events_total",
		Help: "Total number of authentication events",
	}, []string{"event", "result"})

	// MailDeliveries counts outbound mail attempts.
	MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_mail_deliveries_total",
		Help: "Total number of outbound mail attempts",
	}, []string{"template", "result"})

	// SearchOperations counts search index operations.
	SearchOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_search_operations_total",
		Help: "Total number of search index operations",
	}, []string{"operation", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// Result labels an outcome for counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
