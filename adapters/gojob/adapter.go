package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	// JobIDDeliver names the queue task that runs one delivery attempt.
	JobIDDeliver = "forwarder.deliver"

	ParamJobID = "forwarder_job_id"
)

// NewRetryPolicy bounds queue-level redelivery of a message whose handler
// failed before the job row could be updated. Delivery retries proper are
// scheduled by the executor as fresh messages.
func NewRetryPolicy(cfg core.RetryConfig) worker.DefaultRetryPolicy {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return worker.DefaultRetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff: worker.BackoffConfig{
			Strategy:    worker.BackoffExponential,
			Interval:    time.Duration(cfg.InitialBackoffMS) * time.Millisecond,
			MaxInterval: time.Duration(cfg.MaxBackoffMS) * time.Millisecond,
			Jitter:      true,
		},
	}
}

// NewDeliveryMessage builds the queue message for one delivery attempt of
// jobID.
func NewDeliveryMessage(jobID string) *job.ExecutionMessage {
	jobID = strings.TrimSpace(jobID)
	return &job.ExecutionMessage{
		JobID:          JobIDDeliver,
		ScriptPath:     JobIDDeliver,
		Parameters:     map[string]any{ParamJobID: jobID},
		IdempotencyKey: jobID,
	}
}

// DeliveryTarget extracts the forwarder job id from msg.
func DeliveryTarget(msg *job.ExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDDeliver {
		return "", fmt.Errorf("gojob: unexpected job %q", msg.JobID)
	}
	jobID, _ := msg.Parameters[ParamJobID].(string)
	if strings.TrimSpace(jobID) == "" {
		return "", fmt.Errorf("gojob: %s parameter is required", ParamJobID)
	}
	return strings.TrimSpace(jobID), nil
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// WorkerHookAdapter forwards go-job worker events to a forwarder hook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var _ worker.Hook = (*WorkerHookAdapter)(nil)
