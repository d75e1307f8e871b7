package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/provider"
	"github.com/proofhub/proof-notify/internal/queue"
	"github.com/proofhub/proof-notify/internal/repository"
)

// Limiter paces sends. *ratelimiter.SendLimiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Worker is a single goroutine that pulls jobs from the delivery queue,
// applies the send rate limit, hands the message to the transport and
// records the outcome in the ledger. Each job gets exactly one attempt.
type Worker struct {
	id      int
	q       *queue.Queue
	repo    repository.NotificationRepository
	prov    provider.Provider
	limiter Limiter
	logger  *zap.Logger

	// Hooks for metrics, injected by the pool so the worker stays metrics-agnostic.
	onSent   func(host string, latency time.Duration)
	onFailed func(host string)
}

// NewWorker constructs a worker. onSent and onFailed are optional (nil = no-op).
func NewWorker(
	id int,
	q *queue.Queue,
	repo repository.NotificationRepository,
	prov provider.Provider,
	limiter Limiter,
	logger *zap.Logger,
	onSent func(string, time.Duration),
	onFailed func(string),
) *Worker {
	if onSent == nil {
		onSent = func(string, time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(string) {}
	}
	return &Worker{
		id: id, q: q, repo: repo, prov: prov,
		limiter: limiter, logger: logger,
		onSent: onSent, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
// A job already picked up when ctx is cancelled still runs to completion.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping")
			return
		}
		w.process(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	log := w.logger.With(
		zap.String("notification_id", job.RecordID),
		zap.String("host", job.Config.Host),
	)

	if err := w.limiter.Wait(ctx); err != nil {
		log.Error("rate limiter wait failed", zap.Error(err))
		w.fail(ctx, log, job, fmt.Errorf("rate limiter: %w", err))
		return
	}

	if err := w.send(ctx, job); err != nil {
		log.Warn("delivery failed", zap.Error(err))
		w.fail(ctx, log, job, err)
		return
	}

	now := time.Now().UTC()
	latency := now.Sub(job.EnqueuedAt)
	w.onSent(job.Config.Host, latency)

	applied, err := w.repo.MarkSent(ctx, job.RecordID, now)
	switch {
	case err != nil:
		log.Error("failed to mark notification sent", zap.Error(err))
	case !applied:
		log.Warn("notification already terminal, sent not recorded")
	default:
		log.Info("notification sent", zap.Duration("latency", latency))
	}
}

// fail records the job's single attempt as failed.
func (w *Worker) fail(ctx context.Context, log *zap.Logger, job queue.Job, cause error) {
	w.onFailed(job.Config.Host)
	applied, err := w.repo.MarkFailed(ctx, job.RecordID, domain.TruncateDetail(cause.Error()))
	switch {
	case err != nil:
		log.Error("failed to mark notification failed", zap.Error(err))
	case !applied:
		log.Warn("notification already terminal, failure not recorded")
	}
}

// send calls the transport, converting a panic into a transport error.
func (w *Worker) send(ctx context.Context, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic during send: %v", domain.ErrTransport, r)
		}
	}()
	return w.prov.Send(ctx, job.Config, job.Message)
}
