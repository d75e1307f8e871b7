package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/service"
	"github.com/proofhub/proof-notify/internal/token"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsQueued   *prometheus.CounterVec
	NotificationsRejected *prometheus.CounterVec
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   *prometheus.CounterVec
	DeliveryLatency       *prometheus.HistogramVec
	QueueDepth            prometheus.Gauge
	StaleQueued           prometheus.Gauge

	TokensIssued   *prometheus.CounterVec
	TokensConsumed *prometheus.CounterVec
	TokensRejected *prometheus.CounterVec

	AuthEvents        *prometheus.CounterVec
	LoginLockouts     prometheus.Counter
	AuditPublishFails prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_queued_total",
			Help: "Notifications accepted into the delivery queue.",
		}, []string{"kind"}),

		NotificationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_rejected_total",
			Help: "Notification requests refused before enqueue, by reason.",
		}, []string{"reason"}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of messages accepted by the mail transport.",
		}, []string{"host"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of messages the transport refused or that panicked.",
		}, []string{"host"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Latency from enqueue to transport acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_queue_depth",
			Help: "Current number of jobs waiting in the delivery queue.",
		}),

		StaleQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifications_stale_queued",
			Help: "Ledger rows still queued past the staleness threshold.",
		}),

		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Invite and reset tokens issued.",
		}, []string{"purpose"}),

		TokensConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_consumed_total",
			Help: "Tokens successfully redeemed.",
		}, []string{"purpose"}),

		TokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_rejected_total",
			Help: "Token validations or redemptions that failed, by reason.",
		}, []string{"purpose", "reason"}),

		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Audit events recorded, by type.",
		}, []string{"type"}),

		LoginLockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "login_lockouts_total",
			Help: "Times a client IP crossed the failed-login threshold.",
		}),

		AuditPublishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_publish_failures_total",
			Help: "Audit events that could not be mirrored to the event stream.",
		}),
	}

	reg.MustRegister(
		m.NotificationsQueued,
		m.NotificationsRejected,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.DeliveryLatency,
		m.QueueDepth,
		m.StaleQueued,
		m.TokensIssued,
		m.TokensConsumed,
		m.TokensRejected,
		m.AuthEvents,
		m.LoginLockouts,
		m.AuditPublishFails,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onSent func(host string, latency time.Duration),
	onFailed func(host string),
) {
	onSent = func(host string, latency time.Duration) {
		m.NotificationsSent.WithLabelValues(host).Inc()
		m.DeliveryLatency.WithLabelValues(host).Observe(latency.Seconds())
	}
	onFailed = func(host string) {
		m.NotificationsFailed.WithLabelValues(host).Inc()
	}
	return
}

// TokenHooks adapts the token counters to token.MetricHooks.
func (m *Metrics) TokenHooks() token.MetricHooks {
	return token.MetricHooks{
		OnIssued: func(p domain.Purpose) {
			m.TokensIssued.WithLabelValues(string(p)).Inc()
		},
		OnConsumed: func(p domain.Purpose) {
			m.TokensConsumed.WithLabelValues(string(p)).Inc()
		},
		OnRejected: func(p domain.Purpose, reason string) {
			m.TokensRejected.WithLabelValues(string(p), reason).Inc()
		},
	}
}

func (m *Metrics) NotificationHooks() service.NotificationHooks {
	return service.NotificationHooks{
		OnQueued: func(kind string) {
			m.NotificationsQueued.WithLabelValues(kind).Inc()
		},
		OnRejected: func(reason string) {
			m.NotificationsRejected.WithLabelValues(reason).Inc()
		},
	}
}

func (m *Metrics) AuditHooks() audit.MetricHooks {
	return audit.MetricHooks{
		OnEvent: func(t domain.EventType) {
			m.AuthEvents.WithLabelValues(string(t)).Inc()
		},
		OnLockout:       m.LoginLockouts.Inc,
		OnPublishFailed: m.AuditPublishFails.Inc,
	}
}

// StaleHook sets the stale-row gauge from the monitor's count.
func (m *Metrics) StaleHook() func(int) {
	return func(n int) { m.StaleQueued.Set(float64(n)) }
}
