package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/ratelimiter"
	"github.com/proofhub/proof-notify/internal/repository"
)

// MetricHooks are optional callbacks for audit outcomes.
type MetricHooks struct {
	OnEvent         func(t domain.EventType)
	OnLockout       func()
	OnPublishFailed func()
}

// LoginOutcome reports the throttle state after a login attempt.
type LoginOutcome struct {
	Locked     bool          `json:"locked"`
	RetryAfter time.Duration `json:"-"`
}

// Recorder appends auth events to the audit log and keeps the per-IP login
// throttle in step with login outcomes.
type Recorder struct {
	repo      repository.AuthEventRepository
	publisher Publisher
	throttle  *ratelimiter.LoginThrottle
	hooks     MetricHooks
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecorder builds a Recorder. publisher may be nil.
func NewRecorder(
	repo repository.AuthEventRepository,
	publisher Publisher,
	throttle *ratelimiter.LoginThrottle,
	hooks MetricHooks,
	logger *zap.Logger,
) *Recorder {
	return &Recorder{
		repo: repo, publisher: publisher, throttle: throttle,
		hooks: hooks, logger: logger,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one event. A failed append is returned; a failed mirror
// publish is only logged.
func (r *Recorder) Record(ctx context.Context, subjectID string, typ domain.EventType, meta domain.ClientMeta, detail string) (*domain.AuthEvent, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject_id is required", domain.ErrInvalidRequest)
	}
	e := &domain.AuthEvent{
		ID:         uuid.New().String(),
		SubjectID:  subjectID,
		Type:       typ,
		IPAddress:  meta.IP,
		UserAgent:  truncate(meta.UserAgent, domain.MaxUserAgent),
		Detail:     domain.TruncateDetail(detail),
		OccurredAt: r.now(),
	}
	if err := r.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	if r.hooks.OnEvent != nil {
		r.hooks.OnEvent(typ)
	}
	r.logger.Info("auth event recorded",
		zap.String("event_id", e.ID),
		zap.String("subject_id", subjectID),
		zap.String("event_type", string(typ)),
		zap.String("ip", meta.IP),
	)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, e); err != nil {
			if r.hooks.OnPublishFailed != nil {
				r.hooks.OnPublishFailed()
			}
			r.logger.Warn("audit mirror publish failed", zap.String("event_id", e.ID), zap.Error(err))
		}
	}
	return e, nil
}

// RecordLogin feeds a login outcome to the throttle and, when the subject is
// known, appends a login event. Failures against unknown accounts still count
// toward the IP's limit.
func (r *Recorder) RecordLogin(ctx context.Context, subjectID string, success bool, meta domain.ClientMeta) (LoginOutcome, error) {
	var out LoginOutcome
	typ := domain.EventLoginFailure
	if success {
		typ = domain.EventLoginSuccess
		r.throttle.Success(meta.IP)
	} else {
		wasLocked := r.throttle.Locked(meta.IP)
		out.Locked = r.throttle.Failure(meta.IP)
		if out.Locked {
			out.RetryAfter = r.throttle.RetryAfter(meta.IP)
			if !wasLocked {
				if r.hooks.OnLockout != nil {
					r.hooks.OnLockout()
				}
				r.logger.Warn("login throttle engaged", zap.String("ip", meta.IP))
			}
		}
	}

	if subjectID == "" {
		return out, nil
	}
	if _, err := r.Record(ctx, subjectID, typ, meta, ""); err != nil {
		return out, err
	}
	return out, nil
}

// Throttled reports whether ip is currently locked out of logging in.
func (r *Recorder) Throttled(ip string) LoginOutcome {
	if !r.throttle.Locked(ip) {
		return LoginOutcome{}
	}
	return LoginOutcome{Locked: true, RetryAfter: r.throttle.RetryAfter(ip)}
}

// Events lists the most recent events for a subject.
func (r *Recorder) Events(ctx context.Context, subjectID string, limit int) ([]*domain.AuthEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.repo.ListBySubject(ctx, subjectID, limit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
