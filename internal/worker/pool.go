package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/proofhub/proof-notify/internal/config"
	"github.com/proofhub/proof-notify/internal/provider"
	"github.com/proofhub/proof-notify/internal/queue"
	"github.com/proofhub/proof-notify/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnSent   func(host string, latency time.Duration)
	OnFailed func(host string)
}

// Pool manages the lifecycle of all delivery workers.
// All workers share one FIFO queue; there is no ordering across workers.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.DeliveryWorkers identical workers (at least one).
func NewPool(
	cfg *config.Config,
	q *queue.Queue,
	repo repository.NotificationRepository,
	prov provider.Provider,
	limiter Limiter,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	total := cfg.DeliveryWorkers
	if total < 1 {
		total = 1
	}
	workers := make([]*Worker, total)

	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, prov, limiter,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnSent,
			hooks.OnFailed,
		)
	}

	return &Pool{workers: workers}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight messages finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
