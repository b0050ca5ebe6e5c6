package gologger

import (
	"context"

	"github.com/goliatone/go-forwarder/core"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// JobLoggerName is the logger name used for queue-side delivery logs.
const JobLoggerName = "forwarder.jobs"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair and returns the go-job bridges.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// ForDependencies bridges the service's logger wiring into go-job.
func ForDependencies(deps core.ServiceDependencies) (job.LoggerProvider, job.Logger) {
	_, _, provider, logger := ResolveForJob(JobLoggerName, deps.LoggerProvider, deps.Logger)
	return provider, logger
}

// JobLogHook logs delivery worker events.
type JobLogHook struct {
	logger glog.Logger
}

func NewJobLogHook(provider glog.LoggerProvider, logger glog.Logger) *JobLogHook {
	_, resolved := Resolve(JobLoggerName, provider, logger)
	return &JobLogHook{logger: resolved}
}

func (h *JobLogHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Debug("delivery started", eventArgs(event)...)
}

func (h *JobLogHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Info("delivery finished", eventArgs(event)...)
}

func (h *JobLogHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Warn("delivery failed", eventArgs(event)...)
}

func (h *JobLogHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx).Warn("delivery requeued", eventArgs(event)...)
}

func (h *JobLogHook) log(ctx context.Context) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	return h.logger.WithContext(ctx)
}

func eventArgs(event core.JobWorkerEvent) []any {
	args := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		if jobID, ok := event.Message.Parameters["forwarder_job_id"].(string); ok {
			args = append(args, "job_id", jobID)
		}
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

var _ core.JobWorkerHook = (*JobLogHook)(nil)
