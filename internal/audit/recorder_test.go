package audit_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/ratelimiter"
	"github.com/proofhub/proof-notify/internal/repository"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.AuthEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *domain.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newRecorder(pub audit.Publisher, hooks audit.MetricHooks) (*audit.Recorder, *repository.MockAuthEventRepository) {
	repo := repository.NewMockAuthEventRepository()
	th := ratelimiter.NewLoginThrottle(3, time.Minute)
	return audit.NewRecorder(repo, pub, th, hooks, zap.NewNop()), repo
}

func TestRecord_AppendsAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	r, repo := newRecorder(pub, audit.MetricHooks{})

	meta := domain.ClientMeta{IP: "203.0.113.7", UserAgent: strings.Repeat("a", 600)}
	e, err := r.Record(context.Background(), "c1", domain.EventInviteSent, meta, "sent to c1@example.com")
	require.NoError(t, err)

	assert.Equal(t, domain.EventInviteSent, e.Type)
	assert.Len(t, e.UserAgent, domain.MaxUserAgent)
	assert.False(t, e.OccurredAt.IsZero())

	stored := repo.Events()
	require.Len(t, stored, 1)
	assert.Equal(t, e.ID, stored[0].ID)
	assert.Len(t, pub.events, 1)
}

func TestRecord_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	var failures int
	r, repo := newRecorder(pub, audit.MetricHooks{OnPublishFailed: func() { failures++ }})

	_, err := r.Record(context.Background(), "c1", domain.EventTokenConsumed, domain.ClientMeta{}, "")
	require.NoError(t, err)
	assert.Len(t, repo.Events(), 1)
	assert.Equal(t, 1, failures)
}

func TestRecord_AppendFailurePropagates(t *testing.T) {
	r, repo := newRecorder(nil, audit.MetricHooks{})
	repo.AppendErr = errors.New("db down")

	_, err := r.Record(context.Background(), "c1", domain.EventLoginSuccess, domain.ClientMeta{}, "")
	assert.Error(t, err)
}

func TestRecord_RequiresSubject(t *testing.T) {
	r, _ := newRecorder(nil, audit.MetricHooks{})
	_, err := r.Record(context.Background(), "", domain.EventLoginSuccess, domain.ClientMeta{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestRecordLogin_ThrottleAndEvents(t *testing.T) {
	var lockouts int
	r, repo := newRecorder(nil, audit.MetricHooks{OnLockout: func() { lockouts++ }})
	ctx := context.Background()
	meta := domain.ClientMeta{IP: "198.51.100.9"}

	for i := 0; i < 2; i++ {
		out, err := r.RecordLogin(ctx, "c1", false, meta)
		require.NoError(t, err)
		assert.False(t, out.Locked)
	}

	// Unknown account: counts toward the limit but writes no event.
	out, err := r.RecordLogin(ctx, "", false, meta)
	require.NoError(t, err)
	assert.True(t, out.Locked)
	assert.True(t, r.Throttled(meta.IP).Locked)

	_, err = r.RecordLogin(ctx, "", false, meta)
	require.NoError(t, err)
	assert.Equal(t, 1, lockouts, "lockout counted once")

	_, err = r.RecordLogin(ctx, "c1", true, meta)
	require.NoError(t, err)
	assert.False(t, r.Throttled(meta.IP).Locked, "success clears the IP")

	events := repo.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventLoginFailure, events[0].Type)
	assert.Equal(t, domain.EventLoginSuccess, events[2].Type)

	listed, err := r.Events(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}
