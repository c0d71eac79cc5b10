// Package scheduler runs periodic and submitted sync work on a bounded
// worker pool.
package scheduler

import (
	"context"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/sync"
)

// SyncRequest describes one sync run to execute. The executor creates a
// fresh SyncJob per attempt, so a retried request never reuses a job that
// already reached a terminal status.
type SyncRequest struct {
	TenantID  uuid.UUID
	Kind      sync.EntityKind
	Direction sync.SyncDirection
	Source    sync.SystemCode
	Target    sync.SystemCode
	Warehouse string
}

// Executor runs one sync request to completion
type Executor interface {
	Execute(ctx context.Context, req SyncRequest) error
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, req SyncRequest) error

// Execute implements Executor
func (f ExecutorFunc) Execute(ctx context.Context, req SyncRequest) error {
	return f(ctx, req)
}

// Config holds scheduler settings
type Config struct {
	// MaxConcurrentJobs bounds the worker pool
	MaxConcurrentJobs int
	// JobTimeout caps how long one request may run
	JobTimeout time.Duration
	// RetryAttempts is how often a failed request is retried
	RetryAttempts int
	// RetryDelay is the base delay between retries, doubled per attempt
	RetryDelay time.Duration
	// Interval is how often registered schedules are checked; zero disables
	// the periodic trigger
	Interval time.Duration
}

// DefaultConfig returns sensible scheduler defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 3,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
		Interval:          15 * time.Minute,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 || c.Interval < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Schedule is a recurring sync registration
type Schedule struct {
	Request  SyncRequest
	Interval time.Duration

	lastRun time.Time
}

// queued wraps a request with its retry state
type queued struct {
	request     SyncRequest
	retryCount  int
	nextRetryAt time.Time
}

// SyncScheduler dispatches sync requests to a worker pool and fires
// registered schedules when they come due
type SyncScheduler struct {
	config   Config
	executor Executor
	logger   *zap.Logger

	jobs   chan *queued
	cancel context.CancelFunc
	wg     gosync.WaitGroup

	mu        gosync.Mutex
	running   bool
	schedules []*Schedule
}

// NewSyncScheduler creates a scheduler with a validated configuration
func NewSyncScheduler(config Config, executor Executor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *queued, 100),
	}, nil
}

// AddSchedule registers a recurring sync. The first run happens on the next
// tick after its interval elapses.
func (s *SyncScheduler) AddSchedule(request SyncRequest, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, &Schedule{
		Request:  request,
		Interval: interval,
		lastRun:  time.Now(),
	})
}

// Start launches the worker pool and the periodic trigger
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.tickLoop(ctx)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop drains the pool, waiting up to the context deadline
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	// Workers exit on context cancellation. The channel stays open so a
	// late retry re-queue cannot panic on send.
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues one sync request for execution
func (s *SyncScheduler) Submit(request SyncRequest) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	select {
	case s.jobs <- &queued{request: request}:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// tickLoop fires due schedules
func (s *SyncScheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(now)
		}
	}
}

func (s *SyncScheduler) fireDue(now time.Time) {
	s.mu.Lock()
	var due []SyncRequest
	for _, sched := range s.schedules {
		if now.Sub(sched.lastRun) >= sched.Interval {
			sched.lastRun = now
			due = append(due, sched.Request)
		}
	}
	s.mu.Unlock()

	for _, request := range due {
		if err := s.Submit(request); err != nil {
			s.logger.Warn("scheduled sync not submitted",
				zap.String("tenant_id", request.TenantID.String()),
				zap.String("kind", string(request.Kind)),
				zap.Error(err),
			)
		}
	}
}

// worker processes queued requests
func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.process(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) process(ctx context.Context, job *queued, workerID int) {
	if !job.nextRetryAt.IsZero() && time.Now().Before(job.nextRetryAt) {
		// Not due yet, push it back
		select {
		case s.jobs <- job:
		default:
			s.logger.Warn("dropped retry, queue full",
				zap.String("tenant_id", job.request.TenantID.String()))
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err := s.executor.Execute(jobCtx, job.request)
	if err == nil {
		s.logger.Info("sync request completed",
			zap.Int("worker_id", workerID),
			zap.String("tenant_id", job.request.TenantID.String()),
			zap.String("kind", string(job.request.Kind)),
			zap.String("direction", string(job.request.Direction)),
		)
		return
	}

	s.logger.Error("sync request failed",
		zap.Int("worker_id", workerID),
		zap.String("tenant_id", job.request.TenantID.String()),
		zap.String("kind", string(job.request.Kind)),
		zap.Int("retry_count", job.retryCount),
		zap.Error(err),
	)

	if job.retryCount >= s.config.RetryAttempts {
		return
	}
	job.retryCount++
	job.nextRetryAt = time.Now().Add(backoff(s.config.RetryDelay, job.retryCount))

	select {
	case s.jobs <- job:
	default:
		s.logger.Warn("dropped retry, queue full",
			zap.String("tenant_id", job.request.TenantID.String()))
	}
}

// backoff doubles the base delay per attempt, capped at 30 minutes
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(1<<(attempt-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	return delay
}
