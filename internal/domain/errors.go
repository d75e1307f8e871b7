package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRecipient = errors.New("recipient must be a valid email address")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidPurpose   = errors.New("invalid token purpose: must be invite or reset")
	ErrUnknownTemplate  = errors.New("unknown notification template")
	ErrQueueFull        = errors.New("delivery queue is at capacity, try again later")
	ErrQueueClosed      = errors.New("delivery queue is shutting down")
	ErrThrottled        = errors.New("too many attempts, try again later")

	ErrConfiguration  = errors.New("mail configuration error")
	ErrTransport      = errors.New("mail transport failure")
	ErrDuplicateToken = errors.New("an active token already exists for this subject")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token is invalid")
)

// ConfigurationError reports that no usable sender credentials could be
// resolved. It matches ErrConfiguration with errors.Is.
type ConfigurationError struct {
	PrincipalID string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	if e.PrincipalID == "" {
		return fmt.Sprintf("mail configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("mail configuration error for principal %s: %s", e.PrincipalID, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DuplicateTokenError is returned when an unexpired, unconsumed token already
// exists for the same subject and purpose.
type DuplicateTokenError struct {
	SubjectID string
	Purpose   Purpose
	ExpiresAt time.Time
}

func (e *DuplicateTokenError) Error() string {
	return fmt.Sprintf("an active %s token is already pending for %s (expires %s)",
		e.Purpose, e.SubjectID, e.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *DuplicateTokenError) Is(target error) bool { return target == ErrDuplicateToken }
