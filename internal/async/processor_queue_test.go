package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

type procFunc func(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)

func (f procFunc) Process(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error) {
	return f(ctx, job)
}

func TestQueueProcessesAllJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	proc := procFunc(func(_ context.Context, job pipeline.Job) (pipeline.Outcome, error) {
		mu.Lock()
		seen = append(seen, job.Filename)
		mu.Unlock()
		return pipeline.Outcome{JobID: job.Filename}, nil
	})
	var done atomic.Int64
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(4), WithOnDone(func(pipeline.Outcome, error) {
		done.Add(1)
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{Filename: fmt.Sprintf("f%02d", i)}))
	}
	q.Shutdown(context.Background())

	assert.Len(t, seen, 20)
	assert.Equal(t, int64(20), done.Load())
}

func TestWorkerConcurrencyIsBounded(t *testing.T) {
	var inFlight, peak atomic.Int64
	proc := procFunc(func(context.Context, pipeline.Job) (pipeline.Outcome, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return pipeline.Outcome{}, nil
	})
	q := NewProcessorQueue(proc, nil, WithWorkers(2))
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{}))
	}
	q.Shutdown(context.Background())
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(procFunc(func(context.Context, pipeline.Job) (pipeline.Outcome, error) {
		return pipeline.Outcome{}, nil
	}), nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), pipeline.Job{}), ErrQueueClosed)
}

func TestJobTimeoutPropagates(t *testing.T) {
	errs := make(chan error, 1)
	proc := procFunc(func(ctx context.Context, _ pipeline.Job) (pipeline.Outcome, error) {
		<-ctx.Done()
		return pipeline.Outcome{}, ctx.Err()
	})
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(10*time.Millisecond), WithOnDone(func(_ pipeline.Outcome, err error) {
		errs <- err
	}))
	require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{}))
	q.Shutdown(context.Background())
	assert.ErrorIs(t, <-errs, context.DeadlineExceeded)
}

func TestShutdownDeadlineCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	proc := procFunc(func(ctx context.Context, _ pipeline.Job) (pipeline.Outcome, error) {
		close(started)
		<-ctx.Done()
		return pipeline.Outcome{}, ctx.Err()
	})
	var got error
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithOnDone(func(_ pipeline.Outcome, err error) { got = err }))
	require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Shutdown(ctx)
	assert.ErrorIs(t, got, context.Canceled)
}

func TestEnqueueBackpressureHonorsContext(t *testing.T) {
	release := make(chan struct{})
	proc := procFunc(func(context.Context, pipeline.Job) (pipeline.Outcome, error) {
		<-release
		return pipeline.Outcome{}, nil
	})
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{Filename: "running"}))
	require.Eventually(t, func() bool { return q.Depth() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), pipeline.Job{Filename: "queued"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, pipeline.Job{Filename: "blocked"}), context.DeadlineExceeded)
}
