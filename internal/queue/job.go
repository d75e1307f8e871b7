package queue

import (
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/provider"
)

// Job is a fully rendered message waiting for a worker. It carries everything
// needed to send, so workers never go back to the ledger before delivery.
type Job struct {
	RecordID   string
	Config     domain.EffectiveMailConfig
	Message    provider.Message
	EnqueuedAt time.Time
}
