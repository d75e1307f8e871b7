package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/proofhub/proof-notify/internal/domain"
)

// MockAuthEventRepository is an in-memory append-only log for tests.
type MockAuthEventRepository struct {
	mu     sync.RWMutex
	events []*domain.AuthEvent

	AppendErr error
}

func NewMockAuthEventRepository() *MockAuthEventRepository {
	return &MockAuthEventRepository{}
}

func (m *MockAuthEventRepository) Append(_ context.Context, e *domain.AuthEvent) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.events = append(m.events, &clone)
	return nil
}

func (m *MockAuthEventRepository) ListBySubject(_ context.Context, subjectID string, limit int) ([]*domain.AuthEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.AuthEvent
	for _, e := range m.events {
		if e.SubjectID == subjectID {
			clone := *e
			result = append(result, &clone)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].OccurredAt.After(result[j].OccurredAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Events returns every appended event in insertion order. Test helper.
func (m *MockAuthEventRepository) Events() []*domain.AuthEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AuthEvent, len(m.events))
	for i, e := range m.events {
		clone := *e
		out[i] = &clone
	}
	return out
}
