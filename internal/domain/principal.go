package domain

import "time"

// Encryption selects how the transport secures the SMTP session.
type Encryption string

const (
	EncryptionNone     Encryption = "none"
	EncryptionSTARTTLS Encryption = "starttls"
	EncryptionSSL      Encryption = "ssl"
)

func (e Encryption) IsValid() bool {
	switch e {
	case EncryptionNone, EncryptionSTARTTLS, EncryptionSSL:
		return true
	}
	return false
}

// MailProfile is a principal's optional SMTP override. Only Host and Port
// are required for the profile to be used at all; every other empty field
// falls back to the process-wide default individually.
type MailProfile struct {
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	Username   string     `json:"username,omitempty"`
	Password   string     `json:"-"`
	Encryption Encryption `json:"encryption,omitempty"`
	From       string     `json:"from,omitempty"`
	ReplyTo    string     `json:"reply_to,omitempty"`
}

// Complete reports whether the profile carries enough to reach a server.
func (p *MailProfile) Complete() bool {
	return p != nil && p.Host != "" && p.Port > 0
}

// Principal is a staff account on whose behalf mail is sent.
type Principal struct {
	ID      string       `json:"id"`
	Email   string       `json:"email"`
	Name    string       `json:"name"`
	Profile *MailProfile `json:"profile,omitempty"`
	// LastSMTPTest is the outcome of the most recent test send against
	// Profile, nil when none was ever attempted.
	LastSMTPTest *SMTPTestResult `json:"last_smtp_test,omitempty"`
}

type SMTPTestStatus string

const (
	SMTPTestSuccess SMTPTestStatus = "success"
	SMTPTestFailed  SMTPTestStatus = "failed"
)

// SMTPTestResult records one synchronous test send through a principal's
// own SMTP profile.
type SMTPTestResult struct {
	PrincipalID string         `json:"principal_id"`
	Recipient   string         `json:"recipient,omitempty"`
	Status      SMTPTestStatus `json:"status"`
	TestedAt    time.Time      `json:"tested_at"`
	Error       *string        `json:"error,omitempty"`
}

// Customer is the entity invite and reset tokens grant access to.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName falls back to the email when no name is on file.
func (c *Customer) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Email
}

// EffectiveMailConfig is the per-send merge of a principal profile and the
// process-wide defaults. It is derived on every request and never cached.
type EffectiveMailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption Encryption
	From       string
	ReplyTo    string
}
