package provider

import (
	"context"

	"github.com/proofhub/proof-notify/internal/domain"
)

// Message is one fully rendered plain-text email.
type Message struct {
	To      string
	From    string
	ReplyTo string
	Subject string
	Body    string
}

// Provider abstracts the mail transport. Only the delivery worker calls Send.
// Implementations wrap delivery failures with domain.ErrTransport.
type Provider interface {
	Send(ctx context.Context, cfg domain.EffectiveMailConfig, msg Message) error
}
