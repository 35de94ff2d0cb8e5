package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BlackLotus/nomad/internal/logger"
)

// Handler processes one leased job. A returned error is logged but never
// re-queues the job automatically — upload/entry ops each leave the state
// machine in a terminal-enough state (FAILURE, or untouched) that a stuck
// job is a supervisor concern, not a silent retry loop.
type Handler func(ctx context.Context, job Job) error

// Pool is the parallel worker pool of §4.5 ("parallel worker threads ...
// consume from a durable job queue"), grounded on dittofs's use of
// golang.org/x/sync/errgroup for bounded worker fan-out.
type Pool struct {
	queue        *Queue
	handler      Handler
	workerCount  int
	pollInterval time.Duration
	staleAfter   time.Duration
}

func NewPool(queue *Queue, workerCount int, pollInterval, staleAfter time.Duration, handler Handler) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		queue:        queue,
		handler:      handler,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
	}
}

// Run blocks, fanning work out across workerCount goroutines, until ctx is
// canceled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workerCount; i++ {
		workerID := workerName(i)
		g.Go(func() error {
			return p.workerLoop(ctx, workerID)
		})
	}
	return g.Wait()
}

func workerName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "worker-" + string(letters[i%len(letters)]) + "-" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			job, err := p.queue.Lease(workerID, p.staleAfter)
			if err != nil {
				if !errors.Is(err, ErrNoJob) {
					logger.Error("job lease failed", logger.Err(err))
				}
				continue
			}
			p.run(ctx, workerID, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID string, job *Job) {
	if err := p.handler(ctx, *job); err != nil {
		logger.Error("job handler failed",
			"worker", workerID, "job_id", job.ID, "op", job.Op,
			"upload_id", job.UploadID, logger.Err(err))
	}
	if err := p.queue.Complete(job.ID); err != nil {
		logger.Error("job completion failed", "job_id", job.ID, logger.Err(err))
	}
}
