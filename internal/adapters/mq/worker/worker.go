// Package worker runs cache warm-up jobs: a pool of workers drains the job
// queue and assembles packages ahead of requests.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/schoolboard/internal/adapters/mq/queue"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	defaultJobTimeout   = 2 * time.Minute
	poolShutdownTimeout = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Warmer assembles the package a job names.
type Warmer interface {
	Warm(ctx context.Context, j Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	warmer  Warmer
	name    string
	timeout time.Duration

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, w Warmer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:    q,
		warmer:   w,
		name:     "worker",
		timeout:  defaultJobTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.name != "worker" {
		wk.logger = wk.logger.Named(wk.name)
	}
	return wk
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "warm-up job failed", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed is the number of jobs that completed.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed is the number of jobs that returned an error.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, j Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	jctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.warmer.Warm(jctx, j); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "warm_error")
		return fmt.Errorf("warm %s/%s: %w", j.Dashboard, j.Period, err)
	}
	w.processed.Add(1)
	w.logger.Debug(ctx, "package warmed",
		logger.String("dashboard", string(j.Dashboard)),
		logger.String("period", j.Period),
		logger.String("reason", j.Reason),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, w Warmer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, w, wopts...)
	}
	metrics.UpdateWorkerActiveCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed sums completed jobs across workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed sums failed jobs across workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue and waits for every worker to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
