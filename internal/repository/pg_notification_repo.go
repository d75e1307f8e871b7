package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proofhub/proof-notify/internal/domain"
)

const notificationColumns = `
	id, kind, entity_type, entity_id, sender_principal_id, recipient,
	subject, body, sender_address, reply_to_address, status, error_detail,
	queued_at, sent_at, created_at, updated_at`

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository returns a NotificationRepository backed by PostgreSQL.
func NewPgNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.NotificationRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, kind, entity_type, entity_id, sender_principal_id, recipient,
			 subject, body, sender_address, reply_to_address, status,
			 queued_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		n.ID, n.Kind, nullIfEmpty(n.EntityType), nullIfEmpty(n.EntityID), n.SenderPrincipalID,
		n.Recipient, n.Subject, n.Body, n.SenderAddress, nullIfEmpty(n.ReplyToAddress),
		n.Status, n.QueuedAt, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *pgNotificationRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.NotificationRecord, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notifications"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM notifications%s
		ORDER BY queued_at DESC, id
		LIMIT $%d OFFSET $%d`, notificationColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	records, err := scanNotifications(rows)
	return records, total, err
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', sent_at = $1, error_detail = NULL, updated_at = $1
		WHERE id = $2 AND status = 'queued'`, sentAt, id)
	if err != nil {
		return false, fmt.Errorf("mark notification sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgNotificationRepository) MarkFailed(ctx context.Context, id, detail string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', error_detail = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'queued'`, domain.TruncateDetail(detail), id)
	if err != nil {
		return false, fmt.Errorf("mark notification failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgNotificationRepository) FindStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*domain.NotificationRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'queued' AND queued_at < $1
		ORDER BY queued_at ASC
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("find stale queued: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ---- helpers ----

// scanNotification reads a single ledger row from any pgx row type.
func scanNotification(row pgx.Row) (*domain.NotificationRecord, error) {
	var (
		n                    domain.NotificationRecord
		entityType, entityID *string
		replyTo              *string
	)
	err := row.Scan(
		&n.ID, &n.Kind, &entityType, &entityID, &n.SenderPrincipalID, &n.Recipient,
		&n.Subject, &n.Body, &n.SenderAddress, &replyTo, &n.Status, &n.ErrorDetail,
		&n.QueuedAt, &n.SentAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.EntityType = deref(entityType)
	n.EntityID = deref(entityID)
	n.ReplyToAddress = deref(replyTo)
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.NotificationRecord, error) {
	var result []*domain.NotificationRecord
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Recipient != "" {
		add("lower(recipient) = lower($%d)", f.Recipient)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
