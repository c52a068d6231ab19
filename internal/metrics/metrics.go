package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pms_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	// AI cascade metrics
	AIRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_ai_replies_total",
			Help: "Chat replies by the cascade tier that produced them",
		},
		[]string{"tier"}, // PRIMARY, SECONDARY or DEFAULT
	)

	AIUpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_ai_upstream_failures_total",
			Help: "Failed upstream AI calls by target and failure kind",
		},
		[]string{"target", "kind"},
	)

	AIUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pms_ai_upstream_duration_seconds",
			Help:    "Latency of single upstream AI attempts",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"target"},
	)

	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pms_circuit_state",
			Help: "Circuit breaker state per target (0 closed, 1 half-open, 2 open)",
		},
		[]string{"target"},
	)

	// Chat metrics
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_chat_messages_total",
			Help: "Persisted chat messages by role",
		},
		[]string{"role"},
	)

	RetrievedDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pms_retrieved_documents",
			Help:    "Documents attached to an outbound chat request",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_history_cache_lookups_total",
			Help: "History cache lookups by result",
		},
		[]string{"result"}, // hit, miss or error
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pms_websocket_connections",
			Help: "Open websocket connections",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pms_notifications_total",
			Help: "Realtime events handed to the notification workers",
		},
		[]string{"result"}, // queued or dropped
	)
)
