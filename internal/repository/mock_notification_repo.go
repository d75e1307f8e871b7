package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.NotificationRecord

	// Optional error overrides. Set in tests to simulate failure paths.
	CreateErr     error
	GetByIDErr    error
	MarkSentErr   error
	MarkFailedErr error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.NotificationRecord),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.NotificationRecord) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id string) (*domain.NotificationRecord, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.NotificationRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.NotificationRecord, 0, len(m.notifications))
	for _, n := range m.notifications {
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		if f.EntityType != "" && n.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && n.EntityID != f.EntityID {
			continue
		}
		if f.Recipient != "" && !strings.EqualFold(n.Recipient, f.Recipient) {
			continue
		}
		clone := *n
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].QueuedAt.After(result[j].QueuedAt) })

	total := len(result)
	if f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		result = result[start:end]
	}
	return result, total, nil
}

func (m *MockNotificationRepository) MarkSent(_ context.Context, id string, sentAt time.Time) (bool, error) {
	if m.MarkSentErr != nil {
		return false, m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.Status != domain.StatusQueued {
		return false, nil
	}
	n.Status = domain.StatusSent
	n.SentAt = &sentAt
	n.ErrorDetail = nil
	n.UpdatedAt = sentAt
	return true, nil
}

func (m *MockNotificationRepository) MarkFailed(_ context.Context, id, detail string) (bool, error) {
	if m.MarkFailedErr != nil {
		return false, m.MarkFailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.Status != domain.StatusQueued {
		return false, nil
	}
	d := domain.TruncateDetail(detail)
	n.Status = domain.StatusFailed
	n.ErrorDetail = &d
	n.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockNotificationRepository) FindStaleQueued(_ context.Context, olderThan time.Time, limit int) ([]*domain.NotificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.NotificationRecord
	for _, n := range m.notifications {
		if n.Status == domain.StatusQueued && n.QueuedAt.Before(olderThan) {
			clone := *n
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].QueuedAt.Before(result[j].QueuedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// All returns a snapshot of every stored record. Test helper.
func (m *MockNotificationRepository) All() []*domain.NotificationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.NotificationRecord, 0, len(m.notifications))
	for _, n := range m.notifications {
		clone := *n
		result = append(result, &clone)
	}
	return result
}
