package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Delivery metrics
	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "landchat_messages_delivered_total",
			Help: "Total messages persisted and fanned out",
		},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_delivery_failures_total",
			Help: "Total rejected or failed deliveries",
		},
		[]string{"reason"}, // "validation" or "persistence"
	)

	FanoutPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_fanout_pushes_total",
			Help: "Receive events pushed to sessions",
		},
		[]string{"result"}, // "delivered" or "missed"
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_notifications_total",
			Help: "Push notification attempts",
		},
		[]string{"outcome"}, // "sent", "skipped" or "failed"
	)

	// Transport metrics
	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "landchat_sessions_open",
			Help: "Currently open socket sessions",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_inbound_events_total",
			Help: "Frames received from socket sessions",
		},
		[]string{"event"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landchat_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landchat_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landchat_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"op"},
	)
)
