package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/api"
	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/credentials"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/metrics"
	"github.com/proofhub/proof-notify/internal/provider"
	"github.com/proofhub/proof-notify/internal/queue"
	"github.com/proofhub/proof-notify/internal/ratelimiter"
	"github.com/proofhub/proof-notify/internal/render"
	"github.com/proofhub/proof-notify/internal/repository"
	"github.com/proofhub/proof-notify/internal/service"
	"github.com/proofhub/proof-notify/internal/token"
)

type testAPI struct {
	handler http.Handler
	repo    *repository.MockNotificationRepository
	dir     *repository.MockDirectoryRepository
	events  *repository.MockAuthEventRepository
	q       *queue.Queue
	mail    *provider.MockProvider
}

func newTestAPI(t *testing.T, queueSize int) *testAPI {
	t.Helper()
	a := &testAPI{
		repo:   repository.NewMockNotificationRepository(),
		dir:    repository.NewMockDirectoryRepository(),
		events: repository.NewMockAuthEventRepository(),
		q:      queue.New(queueSize),
		mail:   provider.NewMockProvider(),
	}
	a.dir.PutCustomer(&domain.Customer{ID: "c1", Name: "Ada", Email: "ada@example.com"})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	resolver := credentials.NewResolver(a.dir, domain.MailProfile{
		Host: "smtp.default.example", Port: 587, From: "noreply@proofs.example",
	}, zap.NewNop())
	notifications := service.NewNotificationService(resolver, a.dir, render.NewCatalog("", ""),
		a.repo, a.q, service.NotificationHooks{}, zap.NewNop())

	hasher, err := token.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	tokens := token.NewManager(repository.NewMockTokenRepository(), hasher, token.Options{}, m.TokenHooks(), zap.NewNop())
	recorder := audit.NewRecorder(a.events, nil, ratelimiter.NewLoginThrottle(2, time.Minute), audit.MetricHooks{}, zap.NewNop())
	access := service.NewAccessService(tokens, notifications, a.dir, recorder,
		service.AccessOptions{PublicBaseURL: "https://proofs.example", CompanyName: "Acme"}, zap.NewNop())

	smtpCheck := service.NewSMTPCheckService(resolver, a.dir, a.mail, time.Second, zap.NewNop())

	a.handler = api.NewRouter(api.Deps{
		Notifications: notifications,
		Access:        access,
		SMTPCheck:     smtpCheck,
		Tokens:        tokens,
		Recorder:      recorder,
		Queue:         a.q,
		Workers:       3,
		QueueDepth:    m.QueueDepth,
		Gatherer:      reg,
	}, zap.NewNop())
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, 10)
	rec := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestNotifications_CreateGetListResend(t *testing.T) {
	a := newTestAPI(t, 10)

	rec := a.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{
		"recipient":   "customer@example.com",
		"template":    render.TemplateProofReady,
		"vars":        map[string]string{"job_name": "Spring Flyer"},
		"entity_type": "job",
		"entity_id":   "j-42",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "queued", created["status"])
	assert.Equal(t, "New proof ready: Spring Flyer", created["subject"])
	id := created["id"].(string)

	rec = a.do(t, http.MethodGet, "/api/v1/notifications/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = a.do(t, http.MethodPost, "/api/v1/notifications/"+id+"/resend", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEqual(t, id, decode(t, rec)["id"])

	rec = a.do(t, http.MethodGet, "/api/v1/notifications?entity_type=job&entity_id=j-42&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 2, list["total"])
	assert.Len(t, list["data"], 1)
	assert.EqualValues(t, 1, list["limit"])
}

func TestNotifications_Errors(t *testing.T) {
	a := newTestAPI(t, 1)

	rec := a.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{"recipient": "nope", "subject": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{"recipient": "a@example.com", "template": "no_such"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/notifications/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/notifications?status=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	a.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	ok := map[string]any{"recipient": "a@example.com", "subject": "hi", "body": "there"}
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/notifications", ok).Code)
	rec = a.do(t, http.MethodPost, "/api/v1/notifications", ok)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "queue_full", decode(t, rec)["code"])
}

func TestTokens_Lifecycle(t *testing.T) {
	a := newTestAPI(t, 10)

	rec := a.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{"subject_id": "c9", "purpose": "reset"})
	require.Equal(t, http.StatusCreated, rec.Code)
	plaintext := decode(t, rec)["token"].(string)
	assert.Len(t, plaintext, 43)

	rec = a.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{"subject_id": "c9", "purpose": "reset"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	dup := decode(t, rec)
	assert.Equal(t, "duplicate_token", dup["code"])
	assert.NotEmpty(t, dup["expires_at"])

	rec = a.do(t, http.MethodGet, "/api/v1/tokens/status?subject_id=c9&purpose=reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode(t, rec)["state"])

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/validate", map[string]any{"token": plaintext, "purpose": "invite"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "wrong purpose")

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/validate", map[string]any{"token": plaintext, "purpose": "reset"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c9", decode(t, rec)["subject_id"])

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/consume", map[string]any{"token": plaintext, "purpose": "reset"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/consume", map[string]any{"token": plaintext, "purpose": "reset"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "token_invalid", body["code"])
	assert.Equal(t, domain.ErrTokenInvalid.Error(), body["error"])

	rec = a.do(t, http.MethodGet, "/api/v1/tokens/status?subject_id=c9&purpose=reset", nil)
	assert.Equal(t, "consumed", decode(t, rec)["state"])
}

func TestTokens_ExpiredIsDistinct(t *testing.T) {
	a := newTestAPI(t, 10)
	rec := a.do(t, http.MethodPost, "/api/v1/tokens", map[string]any{"subject_id": "c9", "purpose": "invite", "ttl_seconds": 0})
	require.Equal(t, http.StatusCreated, rec.Code)
	plaintext := decode(t, rec)["token"].(string)

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/consume", map[string]any{"token": plaintext, "purpose": "invite"})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "token_expired", decode(t, rec)["code"])
}

func TestInvites_SendAndAccept(t *testing.T) {
	a := newTestAPI(t, 10)

	rec := a.do(t, http.MethodPost, "/api/v1/invites", map[string]any{"customer_id": "c1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	link := decode(t, rec)["link"].(string)
	require.True(t, strings.HasPrefix(link, "https://proofs.example/customer/invite/"))

	rec = a.do(t, http.MethodPost, "/api/v1/invites", map[string]any{"customer_id": "c1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	plaintext := link[strings.LastIndex(link, "/")+1:]
	rec = a.do(t, http.MethodPost, "/api/v1/invites/accept", map[string]any{
		"token":  plaintext,
		"client": map[string]string{"ip": "203.0.113.5", "user_agent": "portal"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", decode(t, rec)["subject_id"])

	var consumed *domain.AuthEvent
	for _, e := range a.events.Events() {
		if e.Type == domain.EventTokenConsumed {
			consumed = e
		}
	}
	require.NotNil(t, consumed)
	assert.Equal(t, "203.0.113.5", consumed.IPAddress)
	assert.Equal(t, "portal", consumed.UserAgent)

	rec = a.do(t, http.MethodGet, "/api/v1/auth-events?subject_id=c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 2)
}

func TestPasswordResets_AlwaysAccepted(t *testing.T) {
	a := newTestAPI(t, 10)

	for _, email := range []string{"ada@example.com", "stranger@example.com"} {
		rec := a.do(t, http.MethodPost, "/api/v1/password-resets", map[string]string{"email": email})
		assert.Equal(t, http.StatusAccepted, rec.Code, email)
	}
	assert.Len(t, a.repo.All(), 1)

	rec := a.do(t, http.MethodPost, "/api/v1/password-resets", map[string]string{"email": "not-an-address"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/password-resets/complete", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEvents_Throttle(t *testing.T) {
	a := newTestAPI(t, 10)
	fail := map[string]any{"subject_id": "c1", "success": false, "client": map[string]string{"ip": "198.51.100.9"}}

	rec := a.do(t, http.MethodPost, "/api/v1/login-events", fail)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["locked"])

	rec = a.do(t, http.MethodPost, "/api/v1/login-events", fail)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["locked"])

	rec = a.do(t, http.MethodGet, "/api/v1/login-throttle?ip=198.51.100.9", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = a.do(t, http.MethodGet, "/api/v1/login-throttle?ip=198.51.100.10", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, a.events.Events(), 2)
}

func TestMetricsEndpoints(t *testing.T) {
	a := newTestAPI(t, 5)
	a.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{"recipient": "a@example.com", "subject": "s", "body": "b"})

	rec := a.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode(t, rec)
	assert.EqualValues(t, 3, snap["workers"])
	qs := snap["queue"].(map[string]any)
	assert.EqualValues(t, 1, qs["depth"])
	assert.EqualValues(t, 5, qs["capacity"])

	rec = a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "delivery_queue_depth 1")
}

func TestPrincipals_SMTPTest(t *testing.T) {
	a := newTestAPI(t, 10)
	a.dir.PutPrincipal(&domain.Principal{
		ID:      "p1",
		Email:   "designer@studio.example",
		Profile: &domain.MailProfile{Host: "smtp.studio.example", Port: 2525},
	})

	rec := a.do(t, http.MethodPost, "/api/v1/principals/p1/smtp-test", map[string]string{"recipient": "qa@studio.example"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.NotContains(t, body, "error")
	require.Len(t, a.mail.Sent(), 1)
	assert.Equal(t, "smtp.studio.example", a.mail.Sent()[0].Config.Host)

	a.mail.Err = errors.New("smtp: 535 authentication failed")
	rec = a.do(t, http.MethodPost, "/api/v1/principals/p1/smtp-test", map[string]string{"recipient": "qa@studio.example"})
	require.Equal(t, http.StatusOK, rec.Code, "a failed test send is a result, not an error")
	body = decode(t, rec)
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["error"], "535")

	last := a.dir.SMTPTests()
	require.Len(t, last, 2)
	assert.Equal(t, domain.SMTPTestFailed, last[1].Status)
}

func TestPrincipals_SMTPTestRejections(t *testing.T) {
	a := newTestAPI(t, 10)
	a.dir.PutPrincipal(&domain.Principal{
		ID:      "p1",
		Profile: &domain.MailProfile{Host: "smtp.studio.example", Port: 2525},
	})

	rec := a.do(t, http.MethodPost, "/api/v1/principals/p1/smtp-test", map[string]string{"recipient": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/principals/ghost/smtp-test", map[string]string{"recipient": "qa@studio.example"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Empty(t, a.mail.Sent())
	assert.Empty(t, a.dir.SMTPTests())
}
