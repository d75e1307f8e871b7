package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/proofhub/proof-notify/internal/domain"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and TOKEN_HASH_KEY are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL      string
	DBMaxConns       int32
	DBMinConns       int32
	MigrationsSource string

	// Delivery
	DeliveryWorkers int
	QueueSize       int
	SendRateLimit   int

	// Transport: "smtp" talks to the resolved server directly,
	// "webhook" posts every message to an HTTP relay.
	MailTransport    string
	MailRelayURL     string
	MailRelayTimeout time.Duration

	// Process-wide mail defaults used by the credential resolver
	MailDefaults           domain.MailProfile
	MailInsecureSkipVerify bool

	// Bounds the synchronous per-principal SMTP test send
	SMTPTestTimeout time.Duration

	// Tokens
	TokenHashKey []byte
	InviteTTL    time.Duration
	ResetTTL     time.Duration

	// Links and content
	PublicBaseURL          string
	CompanyName            string
	DefaultSubjectTemplate string
	DefaultBodyTemplate    string

	// Login throttling
	LoginMaxAttempts   int
	LoginAttemptWindow time.Duration

	// Ledger follow-up
	StaleQueuedAfter   time.Duration
	StaleCheckInterval time.Duration

	// Optional audit mirror
	AuditKafkaBrokers []string
	AuditKafkaTopic   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	hashKey := os.Getenv("TOKEN_HASH_KEY")
	if len(hashKey) < 16 || len(hashKey) > 64 {
		return nil, fmt.Errorf("TOKEN_HASH_KEY is required and must be 16-64 bytes")
	}

	encryption := domain.Encryption(strings.ToLower(getEnv("MAIL_DEFAULT_ENCRYPTION", string(domain.EncryptionSTARTTLS))))
	if !encryption.IsValid() {
		return nil, fmt.Errorf("MAIL_DEFAULT_ENCRYPTION must be none, starttls or ssl")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL:      dbURL,
		DBMaxConns:       int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:       int32(getInt("DB_MIN_CONNS", 5)),
		MigrationsSource: getEnv("MIGRATIONS_SOURCE", "file://migrations"),

		DeliveryWorkers: getInt("DELIVERY_WORKERS", 2),
		QueueSize:       getInt("QUEUE_SIZE", 1000),
		SendRateLimit:   getInt("SEND_RATE_LIMIT", 10),

		MailTransport:    strings.ToLower(getEnv("MAIL_TRANSPORT", "smtp")),
		MailRelayURL:     getEnv("MAIL_RELAY_URL", ""),
		MailRelayTimeout: getDuration("MAIL_RELAY_TIMEOUT", 10*time.Second),
		SMTPTestTimeout:  getDuration("SMTP_TEST_TIMEOUT", 30*time.Second),

		MailDefaults: domain.MailProfile{
			Host:       getEnv("MAIL_DEFAULT_HOST", ""),
			Port:       getInt("MAIL_DEFAULT_PORT", 587),
			Username:   getEnv("MAIL_DEFAULT_USERNAME", ""),
			Password:   getEnv("MAIL_DEFAULT_PASSWORD", ""),
			Encryption: encryption,
			From:       getEnv("MAIL_DEFAULT_SENDER", ""),
			ReplyTo:    getEnv("MAIL_DEFAULT_REPLY_TO", ""),
		},
		MailInsecureSkipVerify: getBool("MAIL_INSECURE_SKIP_VERIFY", false),

		TokenHashKey: []byte(hashKey),
		InviteTTL:    getDuration("INVITE_TTL", 72*time.Hour),
		ResetTTL:     getDuration("RESET_TTL", 24*time.Hour),

		PublicBaseURL:          strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CompanyName:            getEnv("COMPANY_NAME", "Proof Approval System"),
		DefaultSubjectTemplate: getEnv("CUSTOMER_NOTIFY_DEFAULT_SUBJECT", ""),
		DefaultBodyTemplate:    getEnv("CUSTOMER_NOTIFY_DEFAULT_BODY", ""),

		LoginMaxAttempts:   getInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginAttemptWindow: getDuration("LOGIN_ATTEMPT_WINDOW", 5*time.Minute),

		StaleQueuedAfter:   getDuration("STALE_QUEUED_AFTER", 15*time.Minute),
		StaleCheckInterval: getDuration("STALE_CHECK_INTERVAL", time.Minute),

		AuditKafkaBrokers: getList("AUDIT_KAFKA_BROKERS"),
		AuditKafkaTopic:   getEnv("AUDIT_KAFKA_TOPIC", "auth-events"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DeliveryWorkers < 1 {
		errs = append(errs, errors.New("DELIVERY_WORKERS must be at least 1"))
	}
	if c.QueueSize < 1 {
		errs = append(errs, errors.New("QUEUE_SIZE must be at least 1"))
	}
	switch c.MailTransport {
	case "smtp":
	case "webhook":
		if c.MailRelayURL == "" {
			errs = append(errs, errors.New("MAIL_RELAY_URL is required when MAIL_TRANSPORT=webhook"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_TRANSPORT %q: must be smtp or webhook", c.MailTransport))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
