package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/metrics"
)

func TestHooks(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	onSent, onFailed := m.WorkerHooks()
	onSent("smtp.example.com", 150*time.Millisecond)
	onSent("smtp.example.com", 50*time.Millisecond)
	onFailed("smtp.other.example")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("smtp.example.com")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("smtp.other.example")))

	hooks := m.TokenHooks()
	hooks.OnIssued(domain.PurposeInvite)
	hooks.OnConsumed(domain.PurposeInvite)
	hooks.OnRejected(domain.PurposeReset, "expired")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("invite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensConsumed.WithLabelValues("invite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensRejected.WithLabelValues("reset", "expired")))
}

func TestServiceHooks(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	nh := m.NotificationHooks()
	nh.OnQueued("proof_ready")
	nh.OnRejected("queue_full")
	nh.OnRejected("queue_full")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsQueued.WithLabelValues("proof_ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsRejected.WithLabelValues("queue_full")))

	ah := m.AuditHooks()
	ah.OnEvent(domain.EventLoginFailure)
	ah.OnLockout()
	ah.OnPublishFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("login.failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginLockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditPublishFails))

	m.StaleHook()(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.StaleQueued))
}
