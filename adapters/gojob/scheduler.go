package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

// QueueScheduler is a core.RetryScheduler backed by a go-job queue. Delayed
// retries are stored with a future availability time, so they survive a
// restart of the process.
type QueueScheduler struct {
	enqueuer queue.Enqueuer
}

func NewQueueScheduler(enqueuer queue.Enqueuer) *QueueScheduler {
	return &QueueScheduler{enqueuer: enqueuer}
}

func (s *QueueScheduler) ScheduleNow(ctx context.Context, jobID string) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: queue scheduler is not configured")
	}
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("gojob: job id is required")
	}
	_, err := s.enqueuer.Enqueue(ctx, NewDeliveryMessage(jobID))
	return err
}

func (s *QueueScheduler) ScheduleAfter(ctx context.Context, jobID string, backoff time.Duration) error {
	if backoff <= 0 {
		return s.ScheduleNow(ctx, jobID)
	}
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: queue scheduler is not configured")
	}
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("gojob: job id is required")
	}
	scheduled, ok := s.enqueuer.(queue.ScheduledEnqueuer)
	if !ok {
		return fmt.Errorf("gojob: delayed retry for job %q: %w", jobID, queue.ErrScheduledEnqueueUnsupported)
	}
	_, err := scheduled.EnqueueAfter(ctx, NewDeliveryMessage(jobID), backoff)
	return err
}

// DeliveryTask is the go-job task that runs one delivery attempt through the
// job executor. Executor errors are returned so the worker retry policy can
// redeliver; malformed messages are terminal.
type DeliveryTask struct {
	executor core.JobExecutor
	logger   glog.Logger
}

func NewDeliveryTask(executor core.JobExecutor, logger glog.Logger) *DeliveryTask {
	if logger == nil {
		logger = glog.Nop()
	}
	return &DeliveryTask{executor: executor, logger: logger}
}

func (t *DeliveryTask) GetID() string                        { return JobIDDeliver }
func (t *DeliveryTask) GetHandler() func() error             { return func() error { return nil } }
func (t *DeliveryTask) GetHandlerConfig() job.HandlerOptions { return job.HandlerOptions{} }
func (t *DeliveryTask) GetConfig() job.Config                { return job.Config{} }
func (t *DeliveryTask) GetPath() string                      { return JobIDDeliver }
func (t *DeliveryTask) GetEngine() job.Engine                { return nil }

func (t *DeliveryTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil || t.executor == nil {
		return fmt.Errorf("gojob: delivery task is not configured")
	}
	jobID, err := DeliveryTarget(msg)
	if err != nil {
		return job.NewTerminalError("malformed_delivery", err.Error(), err)
	}
	outcome, err := t.executor.Execute(ctx, jobID)
	if err != nil {
		return err
	}
	t.logger.Debug("delivery executed", "job_id", jobID, "result", string(outcome.Result))
	return nil
}

type WorkerOption func(*workerSettings)

type workerSettings struct {
	retry     core.RetryConfig
	hook      core.JobWorkerHook
	logger    glog.Logger
	idleDelay time.Duration
}

// WithRetryConfig sizes the worker pool and its redelivery policy.
func WithRetryConfig(cfg core.RetryConfig) WorkerOption {
	return func(s *workerSettings) {
		s.retry = cfg
	}
}

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(s *workerSettings) {
		s.hook = hook
	}
}

func WithWorkerLogger(logger glog.Logger) WorkerOption {
	return func(s *workerSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithIdleDelay(delay time.Duration) WorkerOption {
	return func(s *workerSettings) {
		if delay >= 0 {
			s.idleDelay = delay
		}
	}
}

// NewDeliveryWorker builds a go-job worker that consumes delivery messages
// from dequeuer and runs them through executor. Callers own Start and Stop.
func NewDeliveryWorker(dequeuer queue.Dequeuer, executor core.JobExecutor, opts ...WorkerOption) (*worker.Worker, error) {
	if dequeuer == nil || executor == nil {
		return nil, fmt.Errorf("gojob: delivery worker requires a dequeuer and an executor")
	}
	settings := workerSettings{
		retry:     core.DefaultConfig().Retry,
		logger:    glog.Nop(),
		idleDelay: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	workerOpts := []worker.Option{
		worker.WithConcurrency(settings.retry.Workers),
		worker.WithIdleDelay(settings.idleDelay),
		worker.WithRetryPolicy(NewRetryPolicy(settings.retry)),
		worker.WithLogger(job.GoLogger(settings.logger)),
	}
	if settings.hook != nil {
		workerOpts = append(workerOpts, worker.WithHooks(NewWorkerHookAdapter(settings.hook)))
	}

	w := worker.NewWorker(dequeuer, workerOpts...)
	if err := w.Register(NewDeliveryTask(executor, settings.logger)); err != nil {
		return nil, fmt.Errorf("gojob: register delivery task: %w", err)
	}
	return w, nil
}

var (
	_ core.RetryScheduler = (*QueueScheduler)(nil)
	_ job.Task            = (*DeliveryTask)(nil)
)
