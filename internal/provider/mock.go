package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

// Sent is one message captured by MockProvider.
type Sent struct {
	Config  domain.EffectiveMailConfig
	Message Message
}

// MockProvider records messages instead of delivering them.
type MockProvider struct {
	mu   sync.Mutex
	sent []Sent

	// Delay makes each Send sleep before returning. Used to prove callers
	// never wait on the transport.
	Delay time.Duration
	// Err, when set, fails every Send.
	Err error
	// FailFor fails sends addressed to the given recipients.
	FailFor map[string]error
	// PanicOn panics when sending to this recipient.
	PanicOn string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Send(ctx context.Context, cfg domain.EffectiveMailConfig, msg Message) error {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err())
		}
	}
	if p.PanicOn != "" && msg.To == p.PanicOn {
		panic("mock transport exploded")
	}
	if p.Err != nil {
		return p.Err
	}
	if err, ok := p.FailFor[msg.To]; ok {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, Sent{Config: cfg, Message: msg})
	return nil
}

// Sent returns a copy of every recorded message in delivery order.
func (p *MockProvider) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sent, len(p.sent))
	copy(out, p.sent)
	return out
}

var _ Provider = (*MockProvider)(nil)
