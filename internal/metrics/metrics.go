package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsEnqueued counts queue entries created, by notification type
	EmailsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrm_emails_enqueued_total",
			Help: "Total number of emails written to the delivery queue",
		},
		[]string{"type"},
	)

	// EmailsDelivered counts delivery outcomes, status is SENT or FAILED
	EmailsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrm_emails_delivered_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"type", "status"},
	)

	// ClaimsLost counts entries another worker claimed first
	ClaimsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrm_email_claims_lost_total",
			Help: "Total number of queue entries skipped because another pass claimed them",
		},
	)

	// QueuePassDuration tracks one ProcessQueue pass
	QueuePassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrm_email_queue_pass_duration_seconds",
			Help:    "Duration of one delivery queue pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTPRequests counts API requests by route and status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks API latency by route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrm_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimited counts rejected requests
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrm_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// WebsocketClients tracks connected inbox sockets
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrm_websocket_clients",
			Help: "Number of connected notification websocket clients",
		},
	)
)
