package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Status tracks the lifecycle of a notification record.
// Transitions are one-way: queued -> sent or queued -> failed.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// CanTransition reports whether the ledger may move from s to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusQueued && next.IsTerminal()
}

// KindCustom marks a notification whose subject and body were supplied
// directly instead of through a named template.
const KindCustom = "custom"

// MaxErrorDetail bounds the error text stored on a failed record.
const MaxErrorDetail = 500

// NotificationRecord is one outbound email attempt in the ledger.
type NotificationRecord struct {
	ID                string     `json:"id"`
	Kind              string     `json:"kind"`
	EntityType        string     `json:"entity_type,omitempty"`
	EntityID          string     `json:"entity_id,omitempty"`
	SenderPrincipalID *string    `json:"sender_principal_id,omitempty"`
	Recipient         string     `json:"recipient"`
	Subject           string     `json:"subject"`
	Body              string     `json:"body"`
	SenderAddress     string     `json:"sender_address"`
	ReplyToAddress    string     `json:"reply_to_address,omitempty"`
	Status            Status     `json:"status"`
	ErrorDetail       *string    `json:"error_detail,omitempty"`
	QueuedAt          time.Time  `json:"queued_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NotificationRequest is what a caller (upload, decision, invite or reset
// handler) hands to the notification service.
//
// Either Template names a stored or built-in template, or Subject/Body carry
// explicit template text. Both go through the placeholder renderer.
type NotificationRequest struct {
	PrincipalID *string           `json:"principal_id,omitempty"`
	Recipient   string            `json:"recipient"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Template    string            `json:"template,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
	EntityType  string            `json:"entity_type,omitempty"`
	EntityID    string            `json:"entity_id,omitempty"`
}

func (r *NotificationRequest) Validate() error {
	if !IsEmailAddress(r.Recipient) {
		return ErrInvalidRecipient
	}
	if r.ReplyTo != "" && !IsEmailAddress(r.ReplyTo) {
		return ErrInvalidRecipient
	}
	if r.Template == "" && strings.TrimSpace(r.Subject) == "" && strings.TrimSpace(r.Body) == "" {
		return ErrUnknownTemplate
	}
	return nil
}

// ListFilter holds query parameters for paginated ledger listing.
type ListFilter struct {
	EntityType string
	EntityID   string
	Recipient  string
	Status     *Status
	Page       int
	Limit      int
}

// IsEmailAddress reports whether s is a single bare address.
func IsEmailAddress(s string) bool {
	if s == "" {
		return false
	}
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// TruncateDetail shortens error text to MaxErrorDetail runes.
func TruncateDetail(s string) string {
	r := []rune(s)
	if len(r) <= MaxErrorDetail {
		return s
	}
	return string(r[:MaxErrorDetail])
}
