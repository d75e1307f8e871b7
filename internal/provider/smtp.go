package provider

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/proofhub/proof-notify/internal/domain"
)

// SMTPProvider dials the server named in the resolved config for every
// message. A new dialer per send keeps per-principal overrides independent.
type SMTPProvider struct {
	insecureSkipVerify bool
	logger             *zap.Logger
}

func NewSMTPProvider(insecureSkipVerify bool, logger *zap.Logger) *SMTPProvider {
	if insecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for outbound mail")
	}
	return &SMTPProvider{insecureSkipVerify: insecureSkipVerify, logger: logger}
}

func (p *SMTPProvider) Send(ctx context.Context, cfg domain.EffectiveMailConfig, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	d := dialer(cfg, p.insecureSkipVerify)

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %s:%d: %v", domain.ErrTransport, cfg.Host, cfg.Port, err)
	}
	p.logger.Debug("smtp message accepted",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)
	return nil
}

// dialer maps the resolved config onto a gomail dialer. Authentication is
// only attempted when a username is set.
func dialer(cfg domain.EffectiveMailConfig, insecureSkipVerify bool) *gomail.Dialer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Encryption == domain.EncryptionSSL
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec
	}
	return d
}

// compile-time check that SMTPProvider implements Provider
var _ Provider = (*SMTPProvider)(nil)
