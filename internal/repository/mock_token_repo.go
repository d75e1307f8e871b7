package repository

import (
	"context"
	"sync"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

// MockTokenRepository keeps tokens in memory. A single mutex makes Issue and
// Consume atomic, matching the Postgres lock and conditional update.
type MockTokenRepository struct {
	mu     sync.Mutex
	tokens []*domain.AuthToken

	// CollideNext makes the next N Issue calls fail with ErrHashCollision.
	CollideNext int
	IssueErr    error
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{}
}

func (m *MockTokenRepository) Issue(_ context.Context, t *domain.AuthToken, force bool, now time.Time) error {
	if m.IssueErr != nil {
		return m.IssueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CollideNext > 0 {
		m.CollideNext--
		return ErrHashCollision
	}
	for _, existing := range m.tokens {
		if existing.TokenHash == t.TokenHash {
			return ErrHashCollision
		}
	}

	for _, existing := range m.tokens {
		if existing.SubjectID != t.SubjectID || existing.Purpose != t.Purpose || !existing.ActiveAt(now) {
			continue
		}
		if !force {
			return &domain.DuplicateTokenError{SubjectID: t.SubjectID, Purpose: t.Purpose, ExpiresAt: existing.ExpiresAt}
		}
		existing.ExpiresAt = now
		existing.UpdatedAt = now
	}

	clone := *t
	m.tokens = append(m.tokens, &clone)
	return nil
}

func (m *MockTokenRepository) GetByHash(_ context.Context, hash string) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTokenRepository) Consume(_ context.Context, hash string, purpose domain.Purpose, now time.Time) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash && t.Purpose == purpose && t.ActiveAt(now) {
			consumed := now
			t.ConsumedAt = &consumed
			t.UpdatedAt = now
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTokenRepository) Revoke(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id && t.ActiveAt(now) {
			t.ExpiresAt = now
			t.UpdatedAt = now
		}
	}
	return nil
}

func (m *MockTokenRepository) Latest(_ context.Context, subjectID string, purpose domain.Purpose) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.AuthToken
	for _, t := range m.tokens {
		if t.SubjectID != subjectID || t.Purpose != purpose {
			continue
		}
		if latest == nil || !t.CreatedAt.Before(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

// Count returns how many token rows exist for subject and purpose. Test helper.
func (m *MockTokenRepository) Count(subjectID string, purpose domain.Purpose) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.SubjectID == subjectID && t.Purpose == purpose {
			n++
		}
	}
	return n
}
