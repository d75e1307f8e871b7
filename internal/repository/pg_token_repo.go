package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proofhub/proof-notify/internal/domain"
)

const tokenColumns = `id, subject_id, purpose, token_hash, expires_at, consumed_at, issued_by, created_at, updated_at`

type pgTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPgTokenRepository returns a TokenRepository backed by PostgreSQL.
func NewPgTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &pgTokenRepository{pool: pool}
}

// Issue holds a transaction-scoped advisory lock on (subject, purpose) so two
// concurrent issuers cannot both observe "no active token".
func (r *pgTokenRepository) Issue(ctx context.Context, t *domain.AuthToken, force bool, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lockKey := t.SubjectID + ":" + string(t.Purpose)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return fmt.Errorf("lock token subject: %w", err)
	}

	var activeExpiry time.Time
	err = tx.QueryRow(ctx, `
		SELECT expires_at FROM auth_tokens
		WHERE subject_id = $1 AND purpose = $2
		  AND consumed_at IS NULL AND expires_at > $3
		ORDER BY expires_at DESC
		LIMIT 1`, t.SubjectID, t.Purpose, now).Scan(&activeExpiry)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("find active token: %w", err)
	case !force:
		return &domain.DuplicateTokenError{SubjectID: t.SubjectID, Purpose: t.Purpose, ExpiresAt: activeExpiry}
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE auth_tokens SET expires_at = $3, updated_at = $3
			WHERE subject_id = $1 AND purpose = $2
			  AND consumed_at IS NULL AND expires_at > $3`, t.SubjectID, t.Purpose, now); err != nil {
			return fmt.Errorf("supersede active token: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO auth_tokens (`+tokenColumns+`)
		VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,$8)`,
		t.ID, t.SubjectID, t.Purpose, t.TokenHash, t.ExpiresAt, t.IssuedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrHashCollision
		}
		return fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit token: %w", err)
	}
	return nil
}

func (r *pgTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.AuthToken, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE token_hash = $1`, hash)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func (r *pgTokenRepository) Consume(ctx context.Context, hash string, purpose domain.Purpose, now time.Time) (*domain.AuthToken, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE auth_tokens
		SET consumed_at = $3, updated_at = $3
		WHERE token_hash = $1 AND purpose = $2
		  AND consumed_at IS NULL AND expires_at > $3
		RETURNING `+tokenColumns, hash, purpose, now)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	return t, nil
}

func (r *pgTokenRepository) Latest(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.AuthToken, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tokenColumns+`
		FROM auth_tokens
		WHERE subject_id = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1`, subjectID, purpose)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func (r *pgTokenRepository) Revoke(ctx context.Context, id string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE auth_tokens SET expires_at = $2, updated_at = $2
		WHERE id = $1 AND consumed_at IS NULL AND expires_at > $2`, id, now)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row) (*domain.AuthToken, error) {
	var t domain.AuthToken
	err := row.Scan(&t.ID, &t.SubjectID, &t.Purpose, &t.TokenHash, &t.ExpiresAt,
		&t.ConsumedAt, &t.IssuedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
