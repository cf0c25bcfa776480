// Package metrics defines the Prometheus collectors shared across the service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route pattern, method and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_pulse_http_requests_total",
		Help: "HTTP requests handled, by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route pattern
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nse_pulse_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// SnapshotIngests counts stored market snapshots by kind (preopen, delivery)
	SnapshotIngests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_pulse_snapshot_ingests_total",
		Help: "Market snapshots ingested, by kind.",
	}, []string{"kind"})

	// SnapshotSkippedRecords counts records dropped during ingestion
	SnapshotSkippedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_pulse_snapshot_skipped_records_total",
		Help: "Snapshot records skipped for lacking a symbol, by kind.",
	}, []string{"kind"})

	// WebhookEvents counts received webhook alerts
	WebhookEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nse_pulse_webhook_events_total",
		Help: "Webhook alerts received and stored.",
	})

	// AICalls counts AI provider calls by outcome (ok, error, rate_limited)
	AICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_pulse_ai_calls_total",
		Help: "AI provider calls, by outcome.",
	}, []string{"outcome"})

	// AIRetries counts retries after HTTP 429
	AIRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nse_pulse_ai_retries_total",
		Help: "AI provider retries after rate limiting.",
	})

	// CalendarRows counts uploaded calendar rows by result (inserted, duplicate, invalid)
	CalendarRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nse_pulse_calendar_rows_total",
		Help: "Financial calendar upload rows, by result.",
	}, []string{"result"})

	// LiveClients tracks connected SSE and websocket clients
	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nse_pulse_live_clients",
		Help: "Connected live event clients.",
	})
)
