package repository

import (
	"context"

	"github.com/proofhub/proof-notify/internal/domain"
)

// AuthEventRepository is the append-only audit log. Rows are never updated.
type AuthEventRepository interface {
	Append(ctx context.Context, e *domain.AuthEvent) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*domain.AuthEvent, error)
}
