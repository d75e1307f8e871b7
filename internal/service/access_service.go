package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/render"
	"github.com/proofhub/proof-notify/internal/repository"
	"github.com/proofhub/proof-notify/internal/token"
)

// AccessOptions carries the values used to build customer-facing links and copy.
type AccessOptions struct {
	PublicBaseURL string
	CompanyName   string
}

// InviteRequest asks for a customer portal invite.
type InviteRequest struct {
	CustomerID  string
	PrincipalID *string
	TTL         *time.Duration
	// Force replaces a pending invite instead of failing with ErrDuplicateToken.
	Force bool
	// SuppressEmail issues the token and returns the link without queueing mail.
	SuppressEmail bool
	Meta          domain.ClientMeta
}

// InviteResult is returned once; Link embeds the only copy of the plaintext token.
type InviteResult struct {
	Link         string                     `json:"link"`
	ExpiresAt    time.Time                  `json:"expires_at"`
	Notification *domain.NotificationRecord `json:"notification,omitempty"`
}

// AccessService drives the invite and password-reset flows on top of the
// token manager, the notification service and the audit log.
type AccessService struct {
	tokens        *token.Manager
	notifications *NotificationService
	directory     repository.DirectoryRepository
	recorder      *audit.Recorder
	opts          AccessOptions
	logger        *zap.Logger
}

func NewAccessService(
	tokens *token.Manager,
	notifications *NotificationService,
	directory repository.DirectoryRepository,
	recorder *audit.Recorder,
	opts AccessOptions,
	logger *zap.Logger,
) *AccessService {
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &AccessService{
		tokens: tokens, notifications: notifications, directory: directory,
		recorder: recorder, opts: opts, logger: logger,
	}
}

// SendInvite issues an invite token for the customer and queues the invite
// email. A pending invite yields *domain.DuplicateTokenError unless Force is set.
func (s *AccessService) SendInvite(ctx context.Context, req InviteRequest) (*InviteResult, error) {
	customer, err := s.directory.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !domain.IsEmailAddress(customer.Email) {
		return nil, domain.ErrInvalidRecipient
	}

	issued, err := s.tokens.Issue(ctx, token.IssueRequest{
		SubjectID: customer.ID,
		Purpose:   domain.PurposeInvite,
		TTL:       req.TTL,
		IssuedBy:  req.PrincipalID,
		Force:     req.Force,
	})
	if err != nil {
		return nil, err
	}

	result := &InviteResult{
		Link:      s.opts.PublicBaseURL + "/customer/invite/" + issued.Plaintext,
		ExpiresAt: issued.Token.ExpiresAt,
	}

	detail := "link only"
	if !req.SuppressEmail {
		rec, err := s.notifications.RequestNotification(ctx, domain.NotificationRequest{
			PrincipalID: req.PrincipalID,
			Recipient:   customer.Email,
			Template:    render.TemplateInvite,
			Vars: map[string]string{
				"customer_name": customer.DisplayName(),
				"company_name":  s.opts.CompanyName,
				"invite_link":   result.Link,
				"expires_in":    humanDuration(issued.Token.ExpiresAt.Sub(issued.Token.CreatedAt)),
			},
			EntityType: "customer",
			EntityID:   customer.ID,
		})
		if err != nil {
			s.revoke(ctx, issued.Token)
			return nil, fmt.Errorf("queue invite email: %w", err)
		}
		result.Notification = rec
		detail = "notification " + rec.ID
	}

	if _, err := s.recorder.Record(ctx, customer.ID, domain.EventInviteSent, req.Meta, detail); err != nil {
		s.logger.Error("failed to record invite event", zap.String("customer_id", customer.ID), zap.Error(err))
	}
	return result, nil
}

// RequestPasswordReset issues a reset token and queues the reset email.
// The outcome is never revealed to the caller: unknown addresses and
// downstream failures both return nil. Only a malformed address is an error.
// Any earlier pending reset token is superseded.
func (s *AccessService) RequestPasswordReset(ctx context.Context, email string, meta domain.ClientMeta) error {
	email = strings.TrimSpace(email)
	if !domain.IsEmailAddress(email) {
		return domain.ErrInvalidRecipient
	}

	customer, err := s.directory.GetCustomerByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("password reset requested for unknown address")
		return nil
	}
	if err != nil {
		s.logger.Error("password reset lookup failed", zap.Error(err))
		return nil
	}

	issued, err := s.tokens.Issue(ctx, token.IssueRequest{
		SubjectID: customer.ID,
		Purpose:   domain.PurposeReset,
		Force:     true,
	})
	if err != nil {
		s.logger.Error("password reset token issue failed", zap.String("customer_id", customer.ID), zap.Error(err))
		return nil
	}

	link := s.opts.PublicBaseURL + "/customer/reset/" + issued.Plaintext
	rec, err := s.notifications.RequestNotification(ctx, domain.NotificationRequest{
		Recipient: customer.Email,
		Template:  render.TemplateReset,
		Vars: map[string]string{
			"customer_name": customer.DisplayName(),
			"company_name":  s.opts.CompanyName,
			"reset_link":    link,
			"expires_in":    humanDuration(issued.Token.ExpiresAt.Sub(issued.Token.CreatedAt)),
		},
		EntityType: "customer",
		EntityID:   customer.ID,
	})
	if err != nil {
		s.revoke(ctx, issued.Token)
		s.logger.Error("password reset email not queued", zap.String("customer_id", customer.ID), zap.Error(err))
		return nil
	}

	if _, err := s.recorder.Record(ctx, customer.ID, domain.EventResetRequested, meta, "notification "+rec.ID); err != nil {
		s.logger.Error("failed to record reset event", zap.String("customer_id", customer.ID), zap.Error(err))
	}
	return nil
}

// Redeem consumes a token and audits the redemption. The caller performs the
// follow-up action (account activation, password change) for the returned subject.
func (s *AccessService) Redeem(ctx context.Context, plaintext string, purpose domain.Purpose, meta domain.ClientMeta) (string, error) {
	subjectID, err := s.tokens.Consume(ctx, plaintext, purpose)
	if err != nil {
		return "", err
	}
	if _, err := s.recorder.Record(ctx, subjectID, domain.EventTokenConsumed, meta, string(purpose)); err != nil {
		s.logger.Error("failed to record token redemption", zap.String("subject_id", subjectID), zap.Error(err))
	}
	return subjectID, nil
}

// revoke expires a token whose email never made it onto the queue, so the
// customer is not left with a pending token for a link nobody received.
func (s *AccessService) revoke(ctx context.Context, t *domain.AuthToken) {
	if err := s.tokens.Revoke(context.WithoutCancel(ctx), t); err != nil {
		s.logger.Error("failed to revoke undelivered token",
			zap.String("token_id", t.ID), zap.String("subject_id", t.SubjectID), zap.Error(err))
	}
}

// humanDuration renders a TTL for email copy.
func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0 minutes"
	case d >= 48*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	case d >= 2*time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d == time.Hour:
		return "1 hour"
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
