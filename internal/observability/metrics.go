package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApprovalActions counts approval actions by action and outcome
	// (applied, forbidden, conflict, invalid, error).
	ApprovalActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "city_workflow_approval_actions_total",
		Help: "Approval actions processed, by action and outcome",
	}, []string{"action", "outcome"})

	// RequestsSubmitted counts new access requests by initial status.
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "city_workflow_requests_submitted_total",
		Help: "Access requests submitted, by initial status",
	}, []string{"status"})

	// DatabaseQueryLatency records latency of the heavier repository queries.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "city_workflow_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by key family and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "city_workflow_cache_lookups_total",
		Help: "Cache lookups by key family and result (hit, miss)",
	}, []string{"family", "result"})

	// WebSocketConnections is the gauge of open event-stream connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "city_workflow_websocket_connections",
		Help: "Number of open WebSocket event-stream connections",
	})

	// WebSocketEventsTotal counts events delivered to clients by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "city_workflow_websocket_events_total",
		Help: "WebSocket events delivered, by event type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts events dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "city_workflow_websocket_backpressure_drops_total",
		Help: "WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
