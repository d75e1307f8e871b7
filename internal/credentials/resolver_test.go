package credentials_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/credentials"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/repository"
)

var defaults = domain.MailProfile{
	Host:       "smtp.default.example",
	Port:       587,
	Username:   "default-user",
	Password:   "default-pass",
	Encryption: domain.EncryptionSTARTTLS,
	From:       "noreply@default.example",
}

func strPtr(s string) *string { return &s }

func newResolver(t *testing.T, d domain.MailProfile) (*credentials.Resolver, *repository.MockDirectoryRepository) {
	t.Helper()
	dir := repository.NewMockDirectoryRepository()
	return credentials.NewResolver(dir, d, zap.NewNop()), dir
}

func TestResolve_SystemSendUsesDefaults(t *testing.T) {
	r, _ := newResolver(t, defaults)

	cfg, err := r.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "smtp.default.example", cfg.Host)
	assert.Equal(t, "noreply@default.example", cfg.From)
	assert.Equal(t, "noreply@default.example", cfg.ReplyTo, "reply-to falls back to from")
}

func TestResolve_PartialProfileFillsFieldsIndividually(t *testing.T) {
	r, dir := newResolver(t, defaults)
	dir.PutPrincipal(&domain.Principal{
		ID:    "p1",
		Email: "designer@studio.example",
		Profile: &domain.MailProfile{
			Host:     "smtp.studio.example",
			Port:     2525,
			Username: "designer",
		},
	})

	cfg, err := r.Resolve(context.Background(), strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, "smtp.studio.example", cfg.Host)
	assert.Equal(t, 2525, cfg.Port)
	assert.Equal(t, "designer", cfg.Username)
	assert.Equal(t, "default-pass", cfg.Password)
	assert.Equal(t, domain.EncryptionSTARTTLS, cfg.Encryption)
	assert.Equal(t, "noreply@default.example", cfg.From, "principal email is not used as from")
}

func TestResolve_ProfileWithoutPortIgnored(t *testing.T) {
	r, dir := newResolver(t, defaults)
	dir.PutPrincipal(&domain.Principal{
		ID:      "p1",
		Profile: &domain.MailProfile{Host: "smtp.studio.example", From: "me@studio.example"},
	})

	cfg, err := r.Resolve(context.Background(), strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, "smtp.default.example", cfg.Host)
	assert.Equal(t, "noreply@default.example", cfg.From)
}

func TestResolve_UnknownPrincipalUsesDefaults(t *testing.T) {
	r, _ := newResolver(t, defaults)
	cfg, err := r.Resolve(context.Background(), strPtr("ghost"))
	require.NoError(t, err)
	assert.Equal(t, "smtp.default.example", cfg.Host)
}

func TestResolve_ReplyToPrecedence(t *testing.T) {
	d := defaults
	d.ReplyTo = "support@default.example"
	r, dir := newResolver(t, d)
	dir.PutPrincipal(&domain.Principal{
		ID:      "p1",
		Profile: &domain.MailProfile{Host: "h", Port: 25, ReplyTo: "designer@studio.example"},
	})
	dir.PutPrincipal(&domain.Principal{
		ID:      "p2",
		Profile: &domain.MailProfile{Host: "h", Port: 25},
	})

	cfg, err := r.Resolve(context.Background(), strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, "designer@studio.example", cfg.ReplyTo)

	cfg, err = r.Resolve(context.Background(), strPtr("p2"))
	require.NoError(t, err)
	assert.Equal(t, "support@default.example", cfg.ReplyTo)
}

func TestResolve_NoSenderIsConfigurationError(t *testing.T) {
	d := defaults
	d.From = ""
	r, _ := newResolver(t, d)

	_, err := r.Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "sender")
}

func TestResolve_NoHostIsConfigurationError(t *testing.T) {
	d := defaults
	d.Host = ""
	r, _ := newResolver(t, d)

	_, err := r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestResolve_ReadsDirectoryEveryCall(t *testing.T) {
	r, dir := newResolver(t, defaults)
	dir.PutPrincipal(&domain.Principal{ID: "p1", Profile: &domain.MailProfile{Host: "old", Port: 25}})

	cfg, err := r.Resolve(context.Background(), strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, "old", cfg.Host)

	dir.PutPrincipal(&domain.Principal{ID: "p1", Profile: &domain.MailProfile{Host: "new", Port: 25}})
	cfg, err = r.Resolve(context.Background(), strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Host)
	assert.Equal(t, 2, dir.Lookups)
}

func TestResolve_DirectoryFailurePropagates(t *testing.T) {
	r, dir := newResolver(t, defaults)
	dir.GetPrincipalErr = errors.New("connection reset")

	_, err := r.Resolve(context.Background(), strPtr("p1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestResolveStrict_UsesOnlyProfileServer(t *testing.T) {
	d := defaults
	d.ReplyTo = "support@default.example"
	r, dir := newResolver(t, d)
	dir.PutPrincipal(&domain.Principal{
		ID:      "p1",
		Email:   "designer@studio.example",
		Profile: &domain.MailProfile{Host: "smtp.studio.example", Port: 465, Encryption: domain.EncryptionSSL},
	})

	p, cfg, err := r.ResolveStrict(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "designer@studio.example", p.Email)
	assert.Equal(t, "smtp.studio.example", cfg.Host)
	assert.Equal(t, 465, cfg.Port)
	assert.Empty(t, cfg.Username, "credentials never fall back to the default server's")
	assert.Empty(t, cfg.Password)
	assert.Equal(t, domain.EncryptionSSL, cfg.Encryption)
	assert.Equal(t, "noreply@default.example", cfg.From)
	assert.Equal(t, "support@default.example", cfg.ReplyTo)
}

func TestResolveStrict_IncompleteProfileIsConfigurationError(t *testing.T) {
	r, dir := newResolver(t, defaults)
	dir.PutPrincipal(&domain.Principal{ID: "p1", Profile: &domain.MailProfile{Host: "smtp.studio.example"}})
	dir.PutPrincipal(&domain.Principal{ID: "p2"})

	for _, id := range []string{"p1", "p2"} {
		p, _, err := r.ResolveStrict(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrConfiguration, id)
		require.NotNil(t, p, "principal is returned so the outcome can be recorded")
		assert.Equal(t, id, p.ID)
	}
}

func TestResolveStrict_UnknownPrincipal(t *testing.T) {
	r, _ := newResolver(t, defaults)
	_, _, err := r.ResolveStrict(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
