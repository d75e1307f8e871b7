package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proofhub/proof-notify/internal/domain"
)

type pgAuthEventRepository struct {
	pool *pgxpool.Pool
}

// NewPgAuthEventRepository returns an AuthEventRepository backed by PostgreSQL.
func NewPgAuthEventRepository(pool *pgxpool.Pool) AuthEventRepository {
	return &pgAuthEventRepository{pool: pool}
}

func (r *pgAuthEventRepository) Append(ctx context.Context, e *domain.AuthEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_events (id, subject_id, event_type, ip_address, user_agent, detail, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.SubjectID, e.Type, nullIfEmpty(e.IPAddress), nullIfEmpty(e.UserAgent),
		nullIfEmpty(e.Detail), e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

func (r *pgAuthEventRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*domain.AuthEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject_id, event_type, ip_address, user_agent, detail, occurred_at
		FROM auth_events
		WHERE subject_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuthEvent
	for rows.Next() {
		var (
			e                 domain.AuthEvent
			ip, agent, detail *string
		)
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Type, &ip, &agent, &detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.IPAddress, e.UserAgent, e.Detail = deref(ip), deref(agent), deref(detail)
		events = append(events, &e)
	}
	return events, rows.Err()
}
