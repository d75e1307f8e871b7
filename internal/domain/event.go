package domain

import "time"

// EventType identifies an authentication-relevant audit event.
type EventType string

const (
	EventLoginSuccess   EventType = "login.success"
	EventLoginFailure   EventType = "login.failure"
	EventInviteSent     EventType = "invite.sent"
	EventResetRequested EventType = "reset.requested"
	EventTokenConsumed  EventType = "token.consumed"
)

// MaxUserAgent bounds the stored user agent string.
const MaxUserAgent = 512

// AuthEvent is an append-only audit row. Login events are the
// login.success / login.failure subset.
type AuthEvent struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subject_id"`
	Type       EventType `json:"event_type"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ClientMeta carries request metadata attached to audit events.
type ClientMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}
