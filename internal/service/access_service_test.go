package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/ratelimiter"
	"github.com/proofhub/proof-notify/internal/render"
	"github.com/proofhub/proof-notify/internal/repository"
	"github.com/proofhub/proof-notify/internal/service"
	"github.com/proofhub/proof-notify/internal/token"
)

type accessEnv struct {
	*env
	access *service.AccessService
	tokens *token.Manager
	events *repository.MockAuthEventRepository
}

func newAccessEnv(t *testing.T) *accessEnv {
	t.Helper()
	e := newEnv(t, 10)
	hasher, err := token.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tokens := token.NewManager(repository.NewMockTokenRepository(), hasher, token.Options{}, token.MetricHooks{}, zap.NewNop())
	events := repository.NewMockAuthEventRepository()
	recorder := audit.NewRecorder(events, nil, ratelimiter.NewLoginThrottle(5, 5*time.Minute), audit.MetricHooks{}, zap.NewNop())

	e.dir.PutCustomer(&domain.Customer{ID: "c1", Name: "Ada Lovelace", Email: "ada@example.com"})

	access := service.NewAccessService(tokens, e.svc, e.dir, recorder, service.AccessOptions{
		PublicBaseURL: "https://proofs.example/",
		CompanyName:   "Acme Print",
	}, zap.NewNop())
	return &accessEnv{env: e, access: access, tokens: tokens, events: events}
}

func plaintextFrom(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

func TestSendInvite_QueuesEmailAndRecordsEvent(t *testing.T) {
	a := newAccessEnv(t)
	ctx := context.Background()

	res, err := a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1", Meta: domain.ClientMeta{IP: "203.0.113.7"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Link, "https://proofs.example/customer/invite/"))
	require.NotNil(t, res.Notification)

	rec := res.Notification
	assert.Equal(t, render.TemplateInvite, rec.Kind)
	assert.Equal(t, "ada@example.com", rec.Recipient)
	assert.Equal(t, "Acme Print: Finish setting up your account", rec.Subject)
	assert.Contains(t, rec.Body, res.Link)
	assert.Contains(t, rec.Body, "3 days")
	assert.Equal(t, "customer", rec.EntityType)

	events := a.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventInviteSent, events[0].Type)
	assert.Equal(t, "203.0.113.7", events[0].IPAddress)

	st, err := a.tokens.Status(ctx, "c1", domain.PurposeInvite)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStatePending, st.State)
}

func TestSendInvite_DuplicateUnlessForced(t *testing.T) {
	a := newAccessEnv(t)
	ctx := context.Background()

	first, err := a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1"})
	require.NoError(t, err)

	_, err = a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1"})
	require.ErrorIs(t, err, domain.ErrDuplicateToken)

	second, err := a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1", Force: true})
	require.NoError(t, err)

	_, err = a.access.Redeem(ctx, plaintextFrom(first.Link), domain.PurposeInvite, domain.ClientMeta{})
	assert.Error(t, err, "superseded invite cannot be redeemed")

	sub, err := a.access.Redeem(ctx, plaintextFrom(second.Link), domain.PurposeInvite, domain.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, "c1", sub)
}

func TestSendInvite_QueueFailureLeavesNoPendingToken(t *testing.T) {
	a := newAccessEnv(t)
	ctx := context.Background()
	a.q.Close()

	_, err := a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1"})
	require.ErrorIs(t, err, domain.ErrQueueClosed)

	st, err := a.tokens.Status(ctx, "c1", domain.PurposeInvite)
	require.NoError(t, err)
	assert.NotEqual(t, domain.TokenStatePending, st.State)
	assert.Empty(t, a.events.Events(), "no invite.sent for an undelivered invite")
}

func TestSendInvite_RetryAfterResolverFailure(t *testing.T) {
	a := newAccessEnv(t)
	ctx := context.Background()
	pid := "p1"
	a.dir.PutPrincipal(&domain.Principal{
		ID: pid, Email: "staff@example.com",
		Profile: &domain.MailProfile{Host: "smtp.staff.example", Port: 587},
	})
	a.dir.GetPrincipalErr = errors.New("directory unavailable")

	_, err := a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1", PrincipalID: &pid})
	require.Error(t, err)

	a.dir.GetPrincipalErr = nil
	res, err := a.access.SendInvite(ctx, service.InviteRequest{CustomerID: "c1", PrincipalID: &pid})
	require.NoError(t, err, "failed attempt must not block a new invite")
	require.NotNil(t, res.Notification)

	sub, err := a.access.Redeem(ctx, plaintextFrom(res.Link), domain.PurposeInvite, domain.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, "c1", sub)
}

func TestSendInvite_SuppressEmail(t *testing.T) {
	a := newAccessEnv(t)
	res, err := a.access.SendInvite(context.Background(), service.InviteRequest{CustomerID: "c1", SuppressEmail: true})
	require.NoError(t, err)
	assert.Nil(t, res.Notification)
	assert.NotEmpty(t, res.Link)
	assert.Empty(t, a.repo.All())
}

func TestSendInvite_UnknownCustomer(t *testing.T) {
	a := newAccessEnv(t)
	_, err := a.access.SendInvite(context.Background(), service.InviteRequest{CustomerID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestPasswordReset(t *testing.T) {
	a := newAccessEnv(t)
	ctx := context.Background()

	require.NoError(t, a.access.RequestPasswordReset(ctx, "ADA@example.com", domain.ClientMeta{}))
	require.NoError(t, a.access.RequestPasswordReset(ctx, "ada@example.com", domain.ClientMeta{}), "repeat request supersedes")

	records := a.repo.All()
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, render.TemplateReset, r.Kind)
		assert.Equal(t, "Acme Print: Reset your customer portal password", r.Subject)
		assert.Contains(t, r.Body, "https://proofs.example/customer/reset/")
		assert.Contains(t, r.Body, "24 hours")
		assert.Nil(t, r.SenderPrincipalID)
	}

	var resets int
	for _, e := range a.events.Events() {
		if e.Type == domain.EventResetRequested {
			resets++
		}
	}
	assert.Equal(t, 2, resets)
}

func TestRequestPasswordReset_UnknownAddressIsSilent(t *testing.T) {
	a := newAccessEnv(t)
	require.NoError(t, a.access.RequestPasswordReset(context.Background(), "nobody@example.com", domain.ClientMeta{}))
	assert.Empty(t, a.repo.All())
	assert.Empty(t, a.events.Events())

	assert.ErrorIs(t, a.access.RequestPasswordReset(context.Background(), "garbage", domain.ClientMeta{}), domain.ErrInvalidRecipient)
}

func TestRequestPasswordReset_DeliveryFailureIsSilent(t *testing.T) {
	a := newAccessEnv(t)
	a.q.Close()
	require.NoError(t, a.access.RequestPasswordReset(context.Background(), "ada@example.com", domain.ClientMeta{}))
}

func TestRedeem_SingleUseAndAudited(t *testing.T) {
	a := newAccessEnv(t)
	ctx := context.Background()
	issued, err := a.tokens.Issue(ctx, token.IssueRequest{SubjectID: "c1", Purpose: domain.PurposeReset})
	require.NoError(t, err)

	sub, err := a.access.Redeem(ctx, issued.Plaintext, domain.PurposeReset, domain.ClientMeta{IP: "198.51.100.2"})
	require.NoError(t, err)
	assert.Equal(t, "c1", sub)

	_, err = a.access.Redeem(ctx, issued.Plaintext, domain.PurposeReset, domain.ClientMeta{})
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid) || errors.Is(err, domain.ErrTokenExpired))

	events := a.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTokenConsumed, events[0].Type)
	assert.Equal(t, "reset", events[0].Detail)
}
