package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/proofhub/proof-notify/internal/domain"
)

func TestNotificationRequest_Validate(t *testing.T) {
	valid := domain.NotificationRequest{
		Recipient: "customer@example.com",
		Template:  "proof_ready",
	}

	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("empty recipient", func(t *testing.T) {
		r := valid
		r.Recipient = ""
		assert.ErrorIs(t, r.Validate(), domain.ErrInvalidRecipient)
	})

	t.Run("display-name recipient rejected", func(t *testing.T) {
		r := valid
		r.Recipient = "Customer <customer@example.com>"
		assert.ErrorIs(t, r.Validate(), domain.ErrInvalidRecipient)
	})

	t.Run("bad reply-to", func(t *testing.T) {
		r := valid
		r.ReplyTo = "not-an-address"
		assert.ErrorIs(t, r.Validate(), domain.ErrInvalidRecipient)
	})

	t.Run("no template and no content", func(t *testing.T) {
		r := valid
		r.Template = ""
		assert.ErrorIs(t, r.Validate(), domain.ErrUnknownTemplate)
	})

	t.Run("explicit subject without template passes", func(t *testing.T) {
		r := valid
		r.Template = ""
		r.Subject = "Hello"
		assert.NoError(t, r.Validate())
	})
}

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to domain.Status
		allowed  bool
	}{
		{domain.StatusQueued, domain.StatusSent, true},
		{domain.StatusQueued, domain.StatusFailed, true},
		{domain.StatusQueued, domain.StatusQueued, false},
		{domain.StatusSent, domain.StatusFailed, false},
		{domain.StatusFailed, domain.StatusSent, false},
		{domain.StatusSent, domain.StatusQueued, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestTruncateDetail(t *testing.T) {
	assert.Equal(t, "short", domain.TruncateDetail("short"))

	long := strings.Repeat("é", domain.MaxErrorDetail+20)
	got := domain.TruncateDetail(long)
	assert.Equal(t, domain.MaxErrorDetail, len([]rune(got)))
}

func TestTypedErrors(t *testing.T) {
	cfgErr := &domain.ConfigurationError{Reason: "no sender address"}
	assert.True(t, errors.Is(cfgErr, domain.ErrConfiguration))
	assert.Contains(t, cfgErr.Error(), "no sender address")

	dup := &domain.DuplicateTokenError{SubjectID: "c1", Purpose: domain.PurposeInvite, ExpiresAt: time.Now()}
	wrapped := errors.Join(errors.New("issue"), dup)
	assert.True(t, errors.Is(wrapped, domain.ErrDuplicateToken))

	var target *domain.DuplicateTokenError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "c1", target.SubjectID)
}

func TestAuthToken_ActiveAt(t *testing.T) {
	now := time.Now()
	tok := domain.AuthToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, tok.ActiveAt(now))
	assert.False(t, tok.ActiveAt(now.Add(2*time.Hour)))

	consumed := now
	tok.ConsumedAt = &consumed
	assert.False(t, tok.ActiveAt(now))
}
