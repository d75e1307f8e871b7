package domain

import "time"

// Purpose is the functional category of a token. Tokens of different
// purposes are never interchangeable.
type Purpose string

const (
	PurposeInvite Purpose = "invite"
	PurposeReset  Purpose = "reset"
)

func (p Purpose) IsValid() bool {
	switch p {
	case PurposeInvite, PurposeReset:
		return true
	}
	return false
}

// AuthToken is the persisted half of a single-use security token.
// The plaintext is never stored; only TokenHash.
type AuthToken struct {
	ID         string     `json:"id"`
	SubjectID  string     `json:"subject_id"`
	Purpose    Purpose    `json:"purpose"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	IssuedBy   *string    `json:"issued_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the token is neither consumed nor expired at now.
func (t *AuthToken) ActiveAt(now time.Time) bool {
	return t.ConsumedAt == nil && t.ExpiresAt.After(now)
}

// TokenState summarises the latest token for a subject and purpose.
type TokenState string

const (
	TokenStateNone     TokenState = "none"
	TokenStatePending  TokenState = "pending"
	TokenStateConsumed TokenState = "consumed"
	TokenStateExpired  TokenState = "expired"
)

// TokenStatus is shown next to a customer in the admin UI
// ("invite pending", "invite accepted", ...).
type TokenStatus struct {
	State     TokenState `json:"state"`
	Purpose   Purpose    `json:"purpose"`
	LastEvent *time.Time `json:"last_event,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
