package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptfusion/internal/domain"
	"promptfusion/internal/queue"
)

type processorFunc func(ctx context.Context, jobID string) (domain.JobStatus, error)

func (f processorFunc) Process(ctx context.Context, jobID string) (domain.JobStatus, error) {
	return f(ctx, jobID)
}

func (f processorFunc) Resume(ctx context.Context, jobID string) (domain.JobStatus, error) {
	return f(ctx, jobID)
}

func runPool(t *testing.T, q queue.Queue, proc Processor, cfg Config) (stop func()) {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	pool := NewPool(q, proc, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, pool.Run(ctx))
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestPoolProcessesEveryJobWithinConcurrency(t *testing.T) {
	q := queue.NewMemory(time.Minute, 10*time.Millisecond)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, q.Enqueue(context.Background(), id))
	}
	var (
		mu      sync.Mutex
		seen    = map[string]bool{}
		running int32
		peak    int32
	)
	proc := processorFunc(func(ctx context.Context, jobID string) (domain.JobStatus, error) {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		seen[jobID] = true
		mu.Unlock()
		return domain.JobStatusSucceeded, nil
	})
	stop := runPool(t, q, proc, Config{Concurrency: 2, RateLimit: 100, RateWindow: time.Second})

	require.Eventually(t, func() bool { return q.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	stop()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolDropsJobsThatAreNotRunnable(t *testing.T) {
	q := queue.NewMemory(time.Minute, 10*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), "canceled-job"))
	var calls int32
	proc := processorFunc(func(ctx context.Context, jobID string) (domain.JobStatus, error) {
		atomic.AddInt32(&calls, 1)
		return "", domain.ErrInvalidState
	})
	stop := runPool(t, q, proc, Config{Concurrency: 1})

	require.Eventually(t, func() bool { return q.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, q.Dead())
}

func TestPoolRetriesThenDeadLetters(t *testing.T) {
	q := queue.NewMemory(time.Minute, 10*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), "job-1"))
	var calls int32
	proc := processorFunc(func(ctx context.Context, jobID string) (domain.JobStatus, error) {
		atomic.AddInt32(&calls, 1)
		return domain.JobStatusRunning, &domain.PersistenceError{Op: "jobs.finish", Err: errors.New("connection refused")}
	})
	stop := runPool(t, q, proc, Config{Concurrency: 1, MaxDeliveries: 3})

	require.Eventually(t, func() bool { return len(q.Dead()) == 1 }, 5*time.Second, 10*time.Millisecond)
	stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, q.Dead()[0].Reason, "connection refused")
	assert.Zero(t, q.Len())
}

func TestPoolLetsInFlightJobsFinish(t *testing.T) {
	q := queue.NewMemory(time.Minute, 10*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), "job-1"))
	started := make(chan struct{})
	var finished atomic.Bool
	proc := processorFunc(func(ctx context.Context, jobID string) (domain.JobStatus, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		if ctx.Err() == nil {
			finished.Store(true)
		}
		return domain.JobStatusSucceeded, nil
	})
	stop := runPool(t, q, proc, Config{Concurrency: 1})
	<-started
	stop()
	assert.True(t, finished.Load())
	assert.Zero(t, q.Len())
}
