package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// 转账生命周期指标
	// ============================================
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_total",
			Help: "Transfer lifecycle events by outcome (created, confirmed, completed, cancelled, failed)",
		},
		[]string{"outcome"},
	)

	RejectedCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_rejected_calls_total",
			Help: "Bridge operations rejected, by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	PendingTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_pending_transfers",
		Help: "Number of transfers awaiting quorum",
	})

	OldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_oldest_pending_age_seconds",
		Help: "Age of the oldest pending transfer in seconds",
	})

	StalePendingTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_stale_pending_transfers",
		Help: "Pending transfers older than the configured stale age",
	})

	// ============================================
	// 托管与限额指标
	// ============================================
	CustodyLocked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_custody_locked",
			Help: "Amount (amount + fee) held for pending transfers, per asset",
		},
		[]string{"asset"},
	)

	RouteUtilisation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_route_utilisation_ratio",
			Help: "Share of the daily limit used in the current window",
		},
		[]string{"asset", "destination_chain"},
	)

	ValidatorCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_validators",
		Help: "Number of registered validators",
	})

	BridgeAvailability = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_availability_flag",
			Help: "Pause and emergency stop flags (1=set)",
		},
		[]string{"flag"},
	)

	// ============================================
	// 事件持久化与推送指标
	// ============================================
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_emitted_total",
			Help: "Bridge events emitted by name",
		},
		[]string{"event"},
	)

	EventPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_event_persist_failures_total",
			Help: "Events whose state could not be written to the database",
		},
		[]string{"event"},
	)

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_websocket_clients",
		Help: "Connected websocket clients",
	})

	// ============================================
	// 数据库连接指标
	// ============================================
	DBConnectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_active",
		Help: "Number of active database connections",
	})

	DBConnectionIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_idle",
		Help: "Number of idle database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS 连接和消息指标
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"event_type"},
	)

	NATSMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nats_messages_failed_total",
			Help: "Total number of NATS messages failed to publish",
		},
		[]string{"event_type", "error_type"},
	)

	// ============================================
	// HTTP 指标
	// ============================================
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_http_rate_limited_total",
		Help: "Requests rejected by the per-IP rate limiter",
	})
)
