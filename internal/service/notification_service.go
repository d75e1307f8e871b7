package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/provider"
	"github.com/proofhub/proof-notify/internal/queue"
	"github.com/proofhub/proof-notify/internal/render"
	"github.com/proofhub/proof-notify/internal/repository"
)

// CredentialResolver yields the effective mail settings for a sender.
type CredentialResolver interface {
	Resolve(ctx context.Context, principalID *string) (domain.EffectiveMailConfig, error)
}

// NotificationHooks are optional metric callbacks.
type NotificationHooks struct {
	OnQueued   func(kind string)
	OnRejected func(reason string)
}

// NotificationService turns notification requests into ledger rows and
// queued delivery jobs. It never talks to the mail transport; callers get
// control back as soon as the job is on the queue.
type NotificationService struct {
	resolver  CredentialResolver
	templates repository.TemplateRepository
	catalog   *render.Catalog
	repo      repository.NotificationRepository
	q         *queue.Queue
	hooks     NotificationHooks
	logger    *zap.Logger
}

func NewNotificationService(
	resolver CredentialResolver,
	templates repository.TemplateRepository,
	catalog *render.Catalog,
	repo repository.NotificationRepository,
	q *queue.Queue,
	hooks NotificationHooks,
	logger *zap.Logger,
) *NotificationService {
	if hooks.OnQueued == nil {
		hooks.OnQueued = func(string) {}
	}
	if hooks.OnRejected == nil {
		hooks.OnRejected = func(string) {}
	}
	return &NotificationService{
		resolver: resolver, templates: templates, catalog: catalog,
		repo: repo, q: q, hooks: hooks, logger: logger,
	}
}

// RequestNotification resolves credentials, renders the message, records it
// as queued and enqueues it.
//
// Errors before the ledger write (validation, configuration, unknown template)
// leave no trace. If the queue refuses the job the new row is marked failed
// and ErrQueueFull or ErrQueueClosed is returned.
func (s *NotificationService) RequestNotification(ctx context.Context, req domain.NotificationRequest) (*domain.NotificationRecord, error) {
	if err := req.Validate(); err != nil {
		s.hooks.OnRejected("invalid")
		return nil, err
	}

	cfg, err := s.resolver.Resolve(ctx, req.PrincipalID)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			s.hooks.OnRejected("configuration")
			s.logger.Warn("notification refused: no usable mail settings",
				zap.Stringp("principal_id", req.PrincipalID), zap.Error(err))
		}
		return nil, err
	}

	kind, tpl, err := s.template(ctx, req)
	if err != nil {
		s.hooks.OnRejected("template")
		return nil, err
	}

	subject, body := render.Content(tpl, s.catalog.Fallback(), req.Vars)
	if link := req.Vars["invite_link"]; link != "" && !strings.Contains(body, link) {
		body += "\n\nSet up your customer portal account here: " + link
	}

	return s.submit(ctx, draft{
		kind:        kind,
		principalID: req.PrincipalID,
		recipient:   req.Recipient,
		replyTo:     req.ReplyTo,
		subject:     subject,
		body:        body,
		entityType:  req.EntityType,
		entityID:    req.EntityID,
	}, cfg)
}

// Resend queues a fresh copy of an existing record's rendered content to the
// same recipient. Credentials are resolved again. The original row is untouched.
func (s *NotificationService) Resend(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	orig, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg, err := s.resolver.Resolve(ctx, orig.SenderPrincipalID)
	if err != nil {
		return nil, err
	}

	rec, err := s.submit(ctx, draft{
		kind:        orig.Kind,
		principalID: orig.SenderPrincipalID,
		recipient:   orig.Recipient,
		subject:     orig.Subject,
		body:        orig.Body,
		entityType:  orig.EntityType,
		entityID:    orig.EntityID,
	}, cfg)
	if err != nil {
		return nil, err
	}
	s.logger.Info("notification resent", zap.String("original_id", id), zap.String("notification_id", rec.ID))
	return rec, nil
}

func (s *NotificationService) GetStatus(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *NotificationService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.NotificationRecord, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, *filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// ---- private helpers ----

type draft struct {
	kind        string
	principalID *string
	recipient   string
	replyTo     string
	subject     string
	body        string
	entityType  string
	entityID    string
}

// template picks the stored template, then the built-in, for req.Template.
// Explicit subject or body text on the request replaces that part.
func (s *NotificationService) template(ctx context.Context, req domain.NotificationRequest) (string, domain.Template, error) {
	if req.Template == "" {
		return domain.KindCustom, domain.Template{Key: domain.KindCustom, Subject: req.Subject, Body: req.Body}, nil
	}

	var tpl domain.Template
	stored, err := s.templates.GetTemplate(ctx, req.Template)
	switch {
	case err == nil:
		tpl = *stored
	case errors.Is(err, domain.ErrNotFound):
		builtin, ok := s.catalog.Lookup(req.Template)
		if !ok {
			return "", domain.Template{}, fmt.Errorf("%w: %q", domain.ErrUnknownTemplate, req.Template)
		}
		tpl = builtin
	default:
		return "", domain.Template{}, fmt.Errorf("load template: %w", err)
	}

	if strings.TrimSpace(req.Subject) != "" {
		tpl.Subject = req.Subject
	}
	if strings.TrimSpace(req.Body) != "" {
		tpl.Body = req.Body
	}
	return req.Template, tpl, nil
}

func (s *NotificationService) submit(ctx context.Context, d draft, cfg domain.EffectiveMailConfig) (*domain.NotificationRecord, error) {
	replyTo := d.replyTo
	if replyTo == "" {
		replyTo = cfg.ReplyTo
	}

	now := time.Now().UTC()
	rec := &domain.NotificationRecord{
		ID:                uuid.New().String(),
		Kind:              d.kind,
		EntityType:        d.entityType,
		EntityID:          d.entityID,
		SenderPrincipalID: d.principalID,
		Recipient:         d.recipient,
		Subject:           d.subject,
		Body:              d.body,
		SenderAddress:     cfg.From,
		ReplyToAddress:    replyTo,
		Status:            domain.StatusQueued,
		QueuedAt:          now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	err := s.q.Enqueue(queue.Job{
		RecordID: rec.ID,
		Config:   cfg,
		Message: provider.Message{
			To:      rec.Recipient,
			From:    rec.SenderAddress,
			ReplyTo: rec.ReplyToAddress,
			Subject: rec.Subject,
			Body:    rec.Body,
		},
		EnqueuedAt: now,
	})
	if err != nil {
		s.reject(ctx, rec, err)
		return nil, err
	}

	s.hooks.OnQueued(rec.Kind)
	s.logger.Info("notification queued",
		zap.String("notification_id", rec.ID),
		zap.String("kind", rec.Kind),
		zap.String("recipient", rec.Recipient),
		zap.String("host", cfg.Host),
	)
	return rec, nil
}

// reject closes out a row whose job never reached the queue.
func (s *NotificationService) reject(ctx context.Context, rec *domain.NotificationRecord, cause error) {
	detail := "delivery queue full"
	reason := "queue_full"
	if errors.Is(cause, domain.ErrQueueClosed) {
		detail = "delivery queue closed"
		reason = "queue_closed"
	}
	s.hooks.OnRejected(reason)

	if _, err := s.repo.MarkFailed(context.WithoutCancel(ctx), rec.ID, detail); err != nil {
		s.logger.Error("failed to mark rejected notification",
			zap.String("notification_id", rec.ID), zap.Error(err))
	}
	s.logger.Warn("notification not queued",
		zap.String("notification_id", rec.ID),
		zap.String("reason", detail),
	)
}
