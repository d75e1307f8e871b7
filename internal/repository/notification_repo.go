package repository

import (
	"context"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

// NotificationRepository is the delivery ledger.
// The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
//
// MarkSent and MarkFailed only touch rows that are still queued. They report
// applied=false without error when the row is already terminal.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.NotificationRecord) error
	GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.NotificationRecord, int, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) (applied bool, err error)
	MarkFailed(ctx context.Context, id string, detail string) (applied bool, err error)
	FindStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*domain.NotificationRecord, error)
}
