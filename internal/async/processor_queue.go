package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

// ProcessorQueue is a bounded worker pool feeding jobs to a Processor.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  func(pipeline.Outcome, error)

	ch   chan pipeline.Job
	wg   sync.WaitGroup
	once sync.Once

	// base is canceled when Shutdown gives up waiting, aborting in-flight jobs
	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan pipeline.Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOnDone registers a callback invoked after every job, from the worker
// goroutine.
func WithOnDone(fn func(pipeline.Outcome, error)) Option {
	return func(q *ProcessorQueue) { q.onDone = fn }
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: constants.WorkerCount,
		timeout: constants.WorkerJobTimeout,
		ch:      make(chan pipeline.Job, constants.WorkerQueueSize),
	}
	for _, o := range opts {
		o(q)
	}
	q.base, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

// NewFromConfig applies the worker section of cfg.
func NewFromConfig(proc Processor, cfg *common.Config, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	base := []Option{
		WithWorkers(cfg.Worker.Workers),
		WithQueueSize(cfg.Worker.QueueSize),
		WithProcessTimeout(cfg.Worker.JobTimeout),
	}
	return NewProcessorQueue(proc, logger, append(base, opts...)...)
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job pipeline.Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	waited := time.Since(job.SubmittedAt)

	out, err := q.proc.Process(ctx, job)
	if err != nil {
		q.logger.Error("processing failed",
			"worker_id", workerID,
			"job_id", out.JobID,
			"filename", job.Filename,
			"kind", common.KindOf(err),
			"retryable", common.IsRetryable(err),
			"error", err,
		)
	} else {
		q.logger.Info("processed job successfully",
			"worker_id", workerID,
			"job_id", out.JobID,
			"filename", job.Filename,
			"strategy", out.Strategy,
			"queued_ms", waited.Milliseconds(),
			"duration_ms", out.Elapsed.Milliseconds(),
		)
	}
	if q.onDone != nil {
		q.onDone(out, err)
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job pipeline.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "filename", job.Filename)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued job for processing", "filename", job.Filename, "depth", len(q.ch))
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "filename", job.Filename)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth is the number of jobs waiting for a worker.
func (q *ProcessorQueue) Depth() int { return len(q.ch) }

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx
// ends first, in-flight jobs are canceled.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context; canceling in-flight jobs")
		q.cancel()
		<-done
	case <-done:
		q.cancel()
		q.logger.Info("queue drained, shutdown complete")
	}
}
