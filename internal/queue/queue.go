package queue

import (
	"context"
	"sync"

	"github.com/proofhub/proof-notify/internal/domain"
)

// Queue is a bounded in-process FIFO shared by request handlers (producers)
// and delivery workers (consumers).
//
// Enqueue never blocks: a full queue rejects the job with ErrQueueFull and a
// closed queue rejects with ErrQueueClosed. Jobs are lost on process exit;
// their ledger rows stay queued.
type Queue struct {
	mu     sync.RWMutex
	jobs   chan Job
	closed bool
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{jobs: make(chan Job, capacity)}
}

// Enqueue places a job at the tail of the queue.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
// A cancelled ctx wins over waiting jobs, so shutdown stops pickup promptly.
// Returns (Job{}, false) on cancellation.
func (q *Queue) Dequeue(ctx context.Context) (Job, bool) {
	if ctx.Err() != nil {
		return Job{}, false
	}
	select {
	case job := <-q.jobs:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	}
}

// Close rejects all further enqueues. Jobs already queued remain available.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Drain removes and returns every waiting job without blocking. Called after
// the workers stop to account for abandoned jobs.
func (q *Queue) Drain() []Job {
	var out []Job
	for {
		select {
		case job := <-q.jobs:
			out = append(out, job)
		default:
			return out
		}
	}
}

// Depth returns the number of jobs waiting.
func (q *Queue) Depth() int { return len(q.jobs) }

// Capacity returns the maximum number of waiting jobs.
func (q *Queue) Capacity() int { return cap(q.jobs) }
