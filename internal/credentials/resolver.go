package credentials

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/repository"
)

// Resolver derives the effective outbound mail settings for a send.
// The directory is read on every call; results are never cached.
type Resolver struct {
	directory repository.DirectoryRepository
	defaults  domain.MailProfile
	logger    *zap.Logger
}

func NewResolver(directory repository.DirectoryRepository, defaults domain.MailProfile, logger *zap.Logger) *Resolver {
	return &Resolver{directory: directory, defaults: defaults, logger: logger}
}

// Resolve merges the principal's profile over the process defaults.
// A nil principalID means a system-originated send.
func (r *Resolver) Resolve(ctx context.Context, principalID *string) (domain.EffectiveMailConfig, error) {
	var profile *domain.MailProfile
	id := ""
	if principalID != nil && *principalID != "" {
		id = *principalID
		p, err := r.directory.GetPrincipal(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			r.logger.Debug("principal not found, using default mail settings", zap.String("principal_id", id))
		case err != nil:
			return domain.EffectiveMailConfig{}, fmt.Errorf("lookup principal: %w", err)
		default:
			profile = p.Profile
		}
	}

	cfg := Merge(profile, r.defaults)
	if cfg.Host == "" {
		return domain.EffectiveMailConfig{}, &domain.ConfigurationError{PrincipalID: id, Reason: "no SMTP host configured"}
	}
	if cfg.From == "" {
		return domain.EffectiveMailConfig{}, &domain.ConfigurationError{PrincipalID: id, Reason: "no sender address configured"}
	}
	return cfg, nil
}

// ResolveStrict returns the principal's own SMTP settings with no fallback
// to the default server. Only the sender and reply-to addresses may come
// from the defaults. The principal is returned alongside a
// ConfigurationError so callers can still record the outcome.
func (r *Resolver) ResolveStrict(ctx context.Context, principalID string) (*domain.Principal, domain.EffectiveMailConfig, error) {
	p, err := r.directory.GetPrincipal(ctx, principalID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.EffectiveMailConfig{}, err
	}
	if err != nil {
		return nil, domain.EffectiveMailConfig{}, fmt.Errorf("lookup principal: %w", err)
	}

	prof := p.Profile
	if !prof.Complete() {
		return p, domain.EffectiveMailConfig{}, &domain.ConfigurationError{PrincipalID: p.ID, Reason: "no SMTP host and port on profile"}
	}
	cfg := domain.EffectiveMailConfig{
		Host:       prof.Host,
		Port:       prof.Port,
		Username:   prof.Username,
		Password:   prof.Password,
		Encryption: prof.Encryption,
		From:       pick(prof.From, r.defaults.From),
		ReplyTo:    pick(prof.ReplyTo, r.defaults.ReplyTo),
	}
	if !cfg.Encryption.IsValid() {
		cfg.Encryption = domain.EncryptionSTARTTLS
	}
	if cfg.From == "" {
		return p, domain.EffectiveMailConfig{}, &domain.ConfigurationError{PrincipalID: p.ID, Reason: "no sender address configured"}
	}
	if cfg.ReplyTo == "" {
		cfg.ReplyTo = cfg.From
	}
	return p, cfg, nil
}

// Merge applies the field-level fallback chain. An incomplete profile
// (no host or port) is ignored entirely. Reply-to falls back to the
// resolved from-address last.
func Merge(profile *domain.MailProfile, defaults domain.MailProfile) domain.EffectiveMailConfig {
	cfg := domain.EffectiveMailConfig{
		Host:       defaults.Host,
		Port:       defaults.Port,
		Username:   defaults.Username,
		Password:   defaults.Password,
		Encryption: defaults.Encryption,
		From:       defaults.From,
		ReplyTo:    defaults.ReplyTo,
	}
	if profile.Complete() {
		cfg.Host = profile.Host
		cfg.Port = profile.Port
		cfg.Username = pick(profile.Username, defaults.Username)
		cfg.Password = pick(profile.Password, defaults.Password)
		cfg.Encryption = domain.Encryption(pick(string(profile.Encryption), string(defaults.Encryption)))
		cfg.From = pick(profile.From, defaults.From)
		cfg.ReplyTo = pick(profile.ReplyTo, defaults.ReplyTo)
	}
	if !cfg.Encryption.IsValid() {
		cfg.Encryption = domain.EncryptionSTARTTLS
	}
	if cfg.ReplyTo == "" {
		cfg.ReplyTo = cfg.From
	}
	return cfg
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
