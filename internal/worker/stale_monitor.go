package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/repository"
)

const staleBatch = 100

// StaleMonitor polls the ledger for rows that have stayed queued longer than
// the threshold, typically jobs lost in a restart. It only reports them;
// nothing is re-enqueued.
type StaleMonitor struct {
	repo     repository.NotificationRepository
	after    time.Duration
	interval time.Duration
	onStale  func(count int)
	logger   *zap.Logger
	now      func() time.Time
}

func NewStaleMonitor(
	repo repository.NotificationRepository,
	after, interval time.Duration,
	onStale func(int),
	logger *zap.Logger,
) *StaleMonitor {
	if onStale == nil {
		onStale = func(int) {}
	}
	return &StaleMonitor{
		repo: repo, after: after, interval: interval,
		onStale: onStale, logger: logger,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks every interval until ctx is cancelled.
func (m *StaleMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("stale monitor started",
		zap.Duration("interval", m.interval),
		zap.Duration("threshold", m.after),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stale monitor stopping")
			return
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("stale poll error", zap.Error(err))
			}
		}
	}
}

// Check runs one poll and returns the number of stale rows found
// (capped at one batch).
func (m *StaleMonitor) Check(ctx context.Context) (int, error) {
	records, err := m.repo.FindStaleQueued(ctx, m.now().Add(-m.after), staleBatch)
	if err != nil {
		return 0, err
	}
	m.onStale(len(records))

	if len(records) > 0 {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		m.logger.Warn("notifications stuck in queued state",
			zap.Int("count", len(records)),
			zap.Time("oldest_queued_at", records[0].QueuedAt),
			zap.Strings("notification_ids", ids),
		)
	}
	return len(records), nil
}
