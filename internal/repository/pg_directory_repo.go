package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proofhub/proof-notify/internal/domain"
)

type pgDirectoryRepository struct {
	pool *pgxpool.Pool
}

// NewPgDirectoryRepository returns a DirectoryRepository over the users and
// customers tables.
func NewPgDirectoryRepository(pool *pgxpool.Pool) DirectoryRepository {
	return &pgDirectoryRepository{pool: pool}
}

func (r *pgDirectoryRepository) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	var (
		p                                   domain.Principal
		name, host, user, pass, enc, sender *string
		replyTo, testStatus, testErr        *string
		port                                *int
		testedAt                            *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, smtp_host, smtp_port, smtp_username, smtp_password,
		       smtp_encryption, smtp_sender, smtp_reply_to,
		       smtp_last_test_status, smtp_last_test_at, smtp_last_error
		FROM users WHERE id = $1`, id).
		Scan(&p.ID, &p.Email, &name, &host, &port, &user, &pass, &enc, &sender, &replyTo,
			&testStatus, &testedAt, &testErr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	p.Name = deref(name)

	if host != nil || port != nil || sender != nil || replyTo != nil {
		p.Profile = &domain.MailProfile{
			Host:       deref(host),
			Username:   deref(user),
			Password:   deref(pass),
			Encryption: domain.Encryption(deref(enc)),
			From:       deref(sender),
			ReplyTo:    deref(replyTo),
		}
		if port != nil {
			p.Profile.Port = *port
		}
	}
	if testStatus != nil && testedAt != nil {
		p.LastSMTPTest = &domain.SMTPTestResult{
			PrincipalID: p.ID,
			Status:      domain.SMTPTestStatus(*testStatus),
			TestedAt:    *testedAt,
			Error:       testErr,
		}
	}
	return &p, nil
}

func (r *pgDirectoryRepository) RecordSMTPTest(ctx context.Context, res *domain.SMTPTestResult) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET smtp_last_test_status = $2, smtp_last_test_at = $3, smtp_last_error = $4
		WHERE id = $1`, res.PrincipalID, string(res.Status), res.TestedAt, res.Error)
	if err != nil {
		return fmt.Errorf("record smtp test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgDirectoryRepository) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return r.getCustomer(ctx, `SELECT id, name, email FROM customers WHERE id = $1`, id)
}

func (r *pgDirectoryRepository) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.getCustomer(ctx, `SELECT id, name, email FROM customers WHERE lower(email) = lower($1)`, email)
}

func (r *pgDirectoryRepository) getCustomer(ctx context.Context, query, arg string) (*domain.Customer, error) {
	var (
		c    domain.Customer
		name *string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &name, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.Name = deref(name)
	return &c, nil
}

type pgTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewPgTemplateRepository returns a TemplateRepository over notification_templates.
func NewPgTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &pgTemplateRepository{pool: pool}
}

func (r *pgTemplateRepository) GetTemplate(ctx context.Context, key string) (*domain.Template, error) {
	var t domain.Template
	err := r.pool.QueryRow(ctx, `
		SELECT key, subject_template, body_template
		FROM notification_templates WHERE key = $1`, key).
		Scan(&t.Key, &t.Subject, &t.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}
