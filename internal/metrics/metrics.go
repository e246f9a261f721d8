// Package metrics exposes the Prometheus collectors of ReplyPipe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replypipe_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Conversation metrics
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_inbound_events_total",
			Help: "Inbound webhook messages by processing outcome",
		},
		[]string{"outcome"}, // processed, duplicate, ineligible, failed
	)

	RouterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_router_decisions_total",
			Help: "Routed messages by resulting task",
		},
		[]string{"task"},
	)

	// Gateway metrics
	SendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_send_attempts_total",
			Help: "Outbound send attempts against the gateway",
		},
		[]string{"kind", "result"}, // result: ok or error
	)

	MessagesUndelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_messages_undelivered_total",
			Help: "Outbound messages given up after all attempts",
		},
		[]string{"kind"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replypipe_gateway_latency_seconds",
			Help:    "Gateway API call latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_cache_refreshes_total",
			Help: "Team and label cache fetches",
		},
		[]string{"cache"},
	)

	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replypipe_assignments_total",
			Help: "Human handoff attempts by outcome",
		},
		[]string{"outcome"}, // assigned, no_member, disabled, failed
	)

	// Background work
	QueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replypipe_queue_dropped_total",
			Help: "Background tasks dropped because the queue was full",
		},
	)
)
