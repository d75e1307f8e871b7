package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

// RelayRequest is the JSON body posted to the mail relay.
// Credentials stay on this side; the relay sees only the SMTP host.
type RelayRequest struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	From    string `json:"from"`
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WebhookProvider hands messages to an HTTP mail relay instead of speaking
// SMTP. The relay URL is injected from config so tests can point to httptest.
type WebhookProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookProvider(baseURL string, timeout time.Duration) *WebhookProvider {
	return &WebhookProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message and expects any 2xx response.
func (p *WebhookProvider) Send(ctx context.Context, cfg domain.EffectiveMailConfig, msg Message) error {
	body, err := json.Marshal(RelayRequest{
		Host:    cfg.Host,
		Port:    cfg.Port,
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: relay request: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: relay responded %d", domain.ErrTransport, resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookProvider implements Provider
var _ Provider = (*WebhookProvider)(nil)
