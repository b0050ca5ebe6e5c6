package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var ErrSchedulerClosed = errors.New("core: retry scheduler is closed")

// TimerRetryScheduler is an in-process RetryScheduler. Immediate runs and
// timer-fired retries share one bounded worker pool. Pending delayed retries
// are lost on restart; use a durable queue adapter when that matters.
type TimerRetryScheduler struct {
	mu       sync.Mutex
	executor JobExecutor
	logger   Logger
	slots    chan struct{}
	timers   map[string]*time.Timer
	closed   bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewTimerRetryScheduler(executor JobExecutor, workers int, logger Logger) *TimerRetryScheduler {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerRetryScheduler{
		executor: executor,
		logger:   glog.Ensure(logger),
		slots:    make(chan struct{}, workers),
		timers:   map[string]*time.Timer{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Bind sets the executor after construction. The delivery worker needs the
// scheduler and the scheduler needs the worker.
func (s *TimerRetryScheduler) Bind(executor JobExecutor) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.executor = executor
	s.mu.Unlock()
}

func (s *TimerRetryScheduler) ScheduleNow(_ context.Context, jobID string) error {
	if s == nil {
		return fmt.Errorf("core: retry scheduler is not configured")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("core: job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if timer, ok := s.timers[jobID]; ok {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, jobID)
	}
	s.wg.Add(1)
	go s.run(jobID)
	return nil
}

func (s *TimerRetryScheduler) ScheduleAfter(_ context.Context, jobID string, backoff time.Duration) error {
	if s == nil {
		return fmt.Errorf("core: retry scheduler is not configured")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("core: job id is required")
	}
	if backoff < 0 {
		backoff = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if timer, ok := s.timers[jobID]; ok && timer.Stop() {
		s.wg.Done()
	}
	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(backoff, func() {
		s.mu.Lock()
		if current, ok := s.timers[jobID]; ok && current == timer {
			delete(s.timers, jobID)
		}
		s.mu.Unlock()
		s.run(jobID)
	})
	s.timers[jobID] = timer
	return nil
}

// Cancel drops a delayed retry that has not fired yet. It reports whether a
// timer was stopped. Runs already in flight are guarded by the job status.
func (s *TimerRetryScheduler) Cancel(jobID string) bool {
	if s == nil {
		return false
	}
	jobID = strings.TrimSpace(jobID)
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[jobID]
	if !ok {
		return false
	}
	delete(s.timers, jobID)
	if timer.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending returns the number of delayed retries waiting on a timer.
func (s *TimerRetryScheduler) Pending() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops pending timers and waits for in-flight executions or ctx.
func (s *TimerRetryScheduler) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *TimerRetryScheduler) run(jobID string) {
	defer s.wg.Done()

	select {
	case s.slots <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	defer func() { <-s.slots }()

	s.mu.Lock()
	executor := s.executor
	s.mu.Unlock()
	if executor == nil {
		s.logger.Error("retry scheduler has no executor", "job_id", jobID)
		return
	}

	outcome, err := executor.Execute(s.ctx, jobID)
	if err != nil {
		s.logger.Warn("job execution returned error", "job_id", jobID, "result", string(outcome.Result), "error", err.Error())
		return
	}
	s.logger.Debug("job execution finished", "job_id", jobID, "result", string(outcome.Result), "status", string(outcome.Status))
}

var _ RetryScheduler = (*TimerRetryScheduler)(nil)
