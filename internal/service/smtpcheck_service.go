package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/provider"
	"github.com/proofhub/proof-notify/internal/repository"
)

const smtpTestSubject = "SMTP Test"

// StrictResolver resolves a principal's own SMTP server with no default fallback.
type StrictResolver interface {
	ResolveStrict(ctx context.Context, principalID string) (*domain.Principal, domain.EffectiveMailConfig, error)
}

// SMTPCheckService sends a test message through a principal's own SMTP
// profile and records the outcome on the principal. Unlike notifications the
// send is synchronous and bypasses the queue.
type SMTPCheckService struct {
	resolver  StrictResolver
	directory repository.DirectoryRepository
	provider  provider.Provider
	timeout   time.Duration
	logger    *zap.Logger
}

func NewSMTPCheckService(
	resolver StrictResolver,
	directory repository.DirectoryRepository,
	prov provider.Provider,
	timeout time.Duration,
	logger *zap.Logger,
) *SMTPCheckService {
	return &SMTPCheckService{resolver: resolver, directory: directory, provider: prov, timeout: timeout, logger: logger}
}

// Check sends the test message to recipient. A failed send is not an error:
// it is recorded and returned as a result with status failed. Errors are
// returned only for an invalid recipient, an unknown principal, or a failure
// to read or record.
func (s *SMTPCheckService) Check(ctx context.Context, principalID, recipient string) (*domain.SMTPTestResult, error) {
	recipient = strings.TrimSpace(recipient)
	if !domain.IsEmailAddress(recipient) {
		return nil, domain.ErrInvalidRecipient
	}

	p, cfg, err := s.resolver.ResolveStrict(ctx, principalID)
	if err != nil && (p == nil || !errors.Is(err, domain.ErrConfiguration)) {
		return nil, err
	}

	now := time.Now().UTC()
	if err == nil {
		err = s.send(ctx, p, cfg, recipient, now)
	}

	res := &domain.SMTPTestResult{
		PrincipalID: p.ID,
		Recipient:   recipient,
		Status:      domain.SMTPTestSuccess,
		TestedAt:    now,
	}
	log := s.logger.With(zap.String("principal_id", p.ID), zap.String("recipient", recipient))
	if err != nil {
		detail := domain.TruncateDetail(err.Error())
		res.Status = domain.SMTPTestFailed
		res.Error = &detail
		log.Warn("smtp test failed", zap.Error(err))
	} else {
		log.Info("smtp test sent", zap.String("host", cfg.Host))
	}

	if err := s.directory.RecordSMTPTest(context.WithoutCancel(ctx), res); err != nil {
		return nil, fmt.Errorf("record smtp test: %w", err)
	}
	return res, nil
}

func (s *SMTPCheckService) send(ctx context.Context, p *domain.Principal, cfg domain.EffectiveMailConfig, recipient string, now time.Time) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	who := p.Email
	if who == "" {
		who = p.ID
	}
	return s.provider.Send(ctx, cfg, provider.Message{
		To:      recipient,
		From:    cfg.From,
		ReplyTo: cfg.ReplyTo,
		Subject: smtpTestSubject,
		Body: fmt.Sprintf("This is a test email to verify the SMTP settings for %s.\n\n"+
			"If you received this message, the settings are working.\n\nTimestamp: %s\n",
			who, now.Format(time.RFC3339)),
	})
}
