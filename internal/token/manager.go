package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/repository"
)

// MetricHooks are optional callbacks for token outcomes.
type MetricHooks struct {
	OnIssued   func(purpose domain.Purpose)
	OnConsumed func(purpose domain.Purpose)
	OnRejected func(purpose domain.Purpose, reason string)
}

// Options configures a Manager. Zero TTLs fall back to 72h for invites
// and 24h for resets.
type Options struct {
	InviteTTL time.Duration
	ResetTTL  time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// IssueRequest asks for a new token. A nil TTL selects the purpose default;
// a zero or negative TTL produces a token that is already expired.
type IssueRequest struct {
	SubjectID string
	Purpose   domain.Purpose
	TTL       *time.Duration
	IssuedBy  *string
	// Force expires any active token for the subject and purpose instead of
	// returning a DuplicateTokenError.
	Force bool
}

// Issued carries the plaintext, which is returned exactly once and never stored.
type Issued struct {
	Plaintext string
	Token     *domain.AuthToken
}

// Manager issues, validates and consumes single-use tokens.
type Manager struct {
	repo   repository.TokenRepository
	hasher *Hasher
	ttl    map[domain.Purpose]time.Duration
	now    func() time.Time
	hooks  MetricHooks
	logger *zap.Logger
}

func NewManager(repo repository.TokenRepository, hasher *Hasher, opts Options, hooks MetricHooks, logger *zap.Logger) *Manager {
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = 72 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{
		repo:   repo,
		hasher: hasher,
		ttl: map[domain.Purpose]time.Duration{
			domain.PurposeInvite: opts.InviteTTL,
			domain.PurposeReset:  opts.ResetTTL,
		},
		now:    opts.Now,
		hooks:  hooks,
		logger: logger,
	}
}

// DefaultTTL returns the configured lifetime for purpose.
func (m *Manager) DefaultTTL(purpose domain.Purpose) time.Duration {
	return m.ttl[purpose]
}

func (m *Manager) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if !req.Purpose.IsValid() {
		return nil, domain.ErrInvalidPurpose
	}
	if req.SubjectID == "" {
		return nil, fmt.Errorf("%w: subject_id is required", domain.ErrInvalidRequest)
	}

	ttl := m.ttl[req.Purpose]
	if req.TTL != nil {
		ttl = *req.TTL
	}

	// Retry once on a token-hash collision.
	for attempt := 0; ; attempt++ {
		plaintext, err := generate()
		if err != nil {
			return nil, err
		}
		now := m.now()
		t := &domain.AuthToken{
			ID:        uuid.New().String(),
			SubjectID: req.SubjectID,
			Purpose:   req.Purpose,
			TokenHash: m.hasher.Hash(plaintext),
			ExpiresAt: now.Add(ttl),
			IssuedBy:  req.IssuedBy,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = m.repo.Issue(ctx, t, req.Force, now)
		if errors.Is(err, repository.ErrHashCollision) && attempt == 0 {
			m.logger.Warn("token hash collision, regenerating", zap.String("purpose", string(req.Purpose)))
			continue
		}
		if err != nil {
			return nil, err
		}

		if m.hooks.OnIssued != nil {
			m.hooks.OnIssued(req.Purpose)
		}
		m.logger.Info("token issued",
			zap.String("token_id", t.ID),
			zap.String("subject_id", t.SubjectID),
			zap.String("purpose", string(t.Purpose)),
			zap.Time("expires_at", t.ExpiresAt),
			zap.Bool("forced", req.Force),
		)
		return &Issued{Plaintext: plaintext, Token: t}, nil
	}
}

// Validate checks a token without consuming it and returns its subject.
func (m *Manager) Validate(ctx context.Context, plaintext string, purpose domain.Purpose) (string, error) {
	if !purpose.IsValid() {
		return "", domain.ErrInvalidPurpose
	}
	t, err := m.lookup(ctx, plaintext)
	if err != nil {
		return "", m.reject(purpose, err)
	}
	if err := m.classify(t, purpose); err != nil {
		return "", m.reject(purpose, err)
	}
	return t.SubjectID, nil
}

// Consume atomically marks the token used. Among concurrent callers
// presenting the same token exactly one succeeds.
func (m *Manager) Consume(ctx context.Context, plaintext string, purpose domain.Purpose) (string, error) {
	if !purpose.IsValid() {
		return "", domain.ErrInvalidPurpose
	}
	if plaintext == "" {
		return "", m.reject(purpose, domain.ErrTokenInvalid)
	}

	hash := m.hasher.Hash(plaintext)
	t, err := m.repo.Consume(ctx, hash, purpose, m.now())
	if err == nil {
		if m.hooks.OnConsumed != nil {
			m.hooks.OnConsumed(purpose)
		}
		m.logger.Info("token consumed",
			zap.String("token_id", t.ID),
			zap.String("subject_id", t.SubjectID),
			zap.String("purpose", string(purpose)),
		)
		return t.SubjectID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	// Nothing matched; work out why so expired links get a distinct answer.
	existing, lerr := m.repo.GetByHash(ctx, hash)
	if lerr != nil {
		if errors.Is(lerr, domain.ErrNotFound) {
			return "", m.reject(purpose, domain.ErrTokenInvalid)
		}
		return "", lerr
	}
	if cerr := m.classify(existing, purpose); cerr != nil {
		return "", m.reject(purpose, cerr)
	}
	return "", m.reject(purpose, domain.ErrTokenInvalid)
}

// Revoke expires an issued token that turned out to be undeliverable.
func (m *Manager) Revoke(ctx context.Context, t *domain.AuthToken) error {
	if err := m.repo.Revoke(ctx, t.ID, m.now()); err != nil {
		return err
	}
	m.logger.Info("token revoked",
		zap.String("token_id", t.ID),
		zap.String("subject_id", t.SubjectID),
		zap.String("purpose", string(t.Purpose)),
	)
	return nil
}

// Status describes the latest token for a subject, for admin display.
func (m *Manager) Status(ctx context.Context, subjectID string, purpose domain.Purpose) (domain.TokenStatus, error) {
	if !purpose.IsValid() {
		return domain.TokenStatus{}, domain.ErrInvalidPurpose
	}
	status := domain.TokenStatus{State: domain.TokenStateNone, Purpose: purpose}

	t, err := m.repo.Latest(ctx, subjectID, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return domain.TokenStatus{}, err
	}

	expires := t.ExpiresAt
	status.ExpiresAt = &expires
	switch {
	case t.ConsumedAt != nil:
		status.State = domain.TokenStateConsumed
		at := *t.ConsumedAt
		status.LastEvent = &at
	case !t.ExpiresAt.After(m.now()):
		status.State = domain.TokenStateExpired
		status.LastEvent = &expires
	default:
		status.State = domain.TokenStatePending
		at := t.CreatedAt
		status.LastEvent = &at
	}
	return status, nil
}

func (m *Manager) lookup(ctx context.Context, plaintext string) (*domain.AuthToken, error) {
	if plaintext == "" {
		return nil, domain.ErrTokenInvalid
	}
	t, err := m.repo.GetByHash(ctx, m.hasher.Hash(plaintext))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	return t, err
}

// classify applies the validation rules to a stored token. Wrong purpose and
// already-consumed tokens are indistinguishable from unknown ones.
func (m *Manager) classify(t *domain.AuthToken, purpose domain.Purpose) error {
	switch {
	case t.Purpose != purpose, t.ConsumedAt != nil:
		return domain.ErrTokenInvalid
	case !t.ExpiresAt.After(m.now()):
		return domain.ErrTokenExpired
	}
	return nil
}

func (m *Manager) reject(purpose domain.Purpose, err error) error {
	if m.hooks.OnRejected != nil {
		reason := "invalid"
		if errors.Is(err, domain.ErrTokenExpired) {
			reason = "expired"
		}
		if errors.Is(err, domain.ErrTokenExpired) || errors.Is(err, domain.ErrTokenInvalid) {
			m.hooks.OnRejected(purpose, reason)
		}
	}
	return err
}
