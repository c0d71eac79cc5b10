package scheduler

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/sync"
)

// countingExecutor records requests and can fail a number of times
type countingExecutor struct {
	mu        gosync.Mutex
	requests  []SyncRequest
	failFirst int
	done      chan struct{}
}

func (e *countingExecutor) Execute(_ context.Context, req SyncRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.done != nil {
		select {
		case e.done <- struct{}{}:
		default:
		}
	}
	if len(e.requests) <= e.failFirst {
		return errors.New("connector unavailable")
	}
	return nil
}

func (e *countingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func testRequest() SyncRequest {
	return SyncRequest{
		TenantID:  uuid.New(),
		Kind:      sync.EntityKindProduct,
		Direction: sync.DirectionPull,
		Source:    sync.SystemCodeShopify,
		Target:    sync.SystemCodeInternal,
	}
}

func testConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        time.Second,
		RetryAttempts:     0,
		RetryDelay:        time.Millisecond,
		Interval:          0,
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MaxConcurrentJobs = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.JobTimeout = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.RetryAttempts = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestSyncScheduler_Submit(t *testing.T) {
	t.Run("executes submitted requests", func(t *testing.T) {
		executor := &countingExecutor{done: make(chan struct{}, 1)}
		sched, err := NewSyncScheduler(testConfig(), executor, zap.NewNop())
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, sched.Start(ctx))
		defer sched.Stop(ctx)

		request := testRequest()
		require.NoError(t, sched.Submit(request))

		select {
		case <-executor.done:
		case <-time.After(2 * time.Second):
			t.Fatal("request was not executed")
		}

		executor.mu.Lock()
		assert.Equal(t, request.TenantID, executor.requests[0].TenantID)
		executor.mu.Unlock()
	})

	t.Run("rejects submit on stopped scheduler", func(t *testing.T) {
		sched, err := NewSyncScheduler(testConfig(), &countingExecutor{}, zap.NewNop())
		require.NoError(t, err)
		assert.ErrorIs(t, sched.Submit(testRequest()), ErrSchedulerNotRunning)
	})

	t.Run("retries failed requests", func(t *testing.T) {
		executor := &countingExecutor{failFirst: 1}
		cfg := testConfig()
		cfg.RetryAttempts = 2
		sched, err := NewSyncScheduler(cfg, executor, zap.NewNop())
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, sched.Start(ctx))
		defer sched.Stop(ctx)

		require.NoError(t, sched.Submit(testRequest()))

		require.Eventually(t, func() bool {
			return executor.count() >= 2
		}, 3*time.Second, 10*time.Millisecond, "failed request should be retried")
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		_, err := NewSyncScheduler(Config{}, &countingExecutor{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSyncScheduler_Schedules(t *testing.T) {
	executor := &countingExecutor{}
	cfg := testConfig()
	cfg.Interval = 20 * time.Millisecond
	sched, err := NewSyncScheduler(cfg, executor, zap.NewNop())
	require.NoError(t, err)

	sched.AddSchedule(testRequest(), 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	defer sched.Stop(ctx)

	require.Eventually(t, func() bool {
		return executor.count() >= 2
	}, 3*time.Second, 10*time.Millisecond, "schedule should fire repeatedly")
}

func TestSyncScheduler_Stop(t *testing.T) {
	sched, err := NewSyncScheduler(testConfig(), &countingExecutor{}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sched.Start(ctx))
	require.NoError(t, sched.Stop(ctx))

	// Stopping again is a no-op
	require.NoError(t, sched.Stop(ctx))
	assert.ErrorIs(t, sched.Submit(testRequest()), ErrSchedulerNotRunning)
}

func TestExecutorFunc(t *testing.T) {
	called := false
	fn := ExecutorFunc(func(_ context.Context, _ SyncRequest) error {
		called = true
		return nil
	})
	require.NoError(t, fn.Execute(context.Background(), testRequest()))
	assert.True(t, called)
}
