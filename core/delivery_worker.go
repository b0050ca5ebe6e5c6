package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type DeliveryWorkerConfig struct {
	BaseURL           string
	Group             string
	TitlePrefix       string
	MaxErrorBodyBytes int
	Backoff           ExponentialBackoff
	DefaultSettings   Settings
}

// DeliveryWorker executes one job: resolve, build, encrypt, POST, record.
// Every delivery failure is recorded on the job; Execute only returns an
// error when the job store itself could not be read or written.
type DeliveryWorker struct {
	cfg       DeliveryWorkerConfig
	jobs      JobStore
	rules     RuleStore
	messages  MessageStore
	settings  SettingsStore
	transport WebhookTransport
	encrypter PayloadEncrypter
	scheduler RetryScheduler
	activity  *ActivityLog
	logger    Logger
	now       func() time.Time
}

type DeliveryWorkerDeps struct {
	Jobs      JobStore
	Rules     RuleStore
	Messages  MessageStore
	Settings  SettingsStore
	Transport WebhookTransport
	Encrypter PayloadEncrypter
	Scheduler RetryScheduler
	Activity  *ActivityLog
	Logger    Logger
	Now       func() time.Time
}

func NewDeliveryWorker(cfg DeliveryWorkerConfig, deps DeliveryWorkerDeps) *DeliveryWorker {
	if cfg.Group == "" {
		cfg.Group = DefaultDeliveryGroup
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeliveryBaseURL
	}
	if cfg.MaxErrorBodyBytes <= 0 {
		cfg.MaxErrorBodyBytes = 512
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DeliveryWorker{
		cfg:       cfg,
		jobs:      deps.Jobs,
		rules:     deps.Rules,
		messages:  deps.Messages,
		settings:  deps.Settings,
		transport: deps.Transport,
		encrypter: deps.Encrypter,
		scheduler: deps.Scheduler,
		activity:  deps.Activity,
		logger:    glog.Ensure(deps.Logger),
		now:       now,
	}
}

func (w *DeliveryWorker) Execute(ctx context.Context, jobID string) (DeliveryOutcome, error) {
	jobID = strings.TrimSpace(jobID)
	outcome := DeliveryOutcome{JobID: jobID}
	if w == nil || w.jobs == nil || w.rules == nil || w.messages == nil {
		return outcome, fmt.Errorf("core: delivery worker is not configured")
	}

	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			outcome.Result = DeliveryResultSkipped
			outcome.Detail = "job not found"
			return outcome, nil
		}
		return outcome, err
	}
	outcome.Status = job.Status
	outcome.Attempts = job.Attempts
	if !job.Status.Executable() {
		outcome.Result = DeliveryResultSkipped
		outcome.Detail = "job is " + string(job.Status)
		return outcome, nil
	}

	rule, err := w.rules.Get(ctx, job.RuleID)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return w.failDataIntegrity(ctx, job, NewDataIntegrityError(err, "referenced rule is missing", map[string]any{"rule_id": job.RuleID}))
		}
		return outcome, err
	}
	message, err := w.messages.Get(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return w.failDataIntegrity(ctx, job, NewDataIntegrityError(err, "referenced message is missing", map[string]any{"message_id": job.MessageID}))
		}
		return outcome, err
	}

	// A user cancel may have landed while rule and message were resolved.
	current, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			outcome.Result = DeliveryResultSkipped
			return outcome, nil
		}
		return outcome, err
	}
	if !current.Status.Executable() {
		outcome.Status = current.Status
		outcome.Result = DeliveryResultSkipped
		outcome.Detail = "job is " + string(current.Status)
		return outcome, nil
	}
	job = current

	w.activity.Record(ctx, "[Worker] Delivering message %s via rule %q (attempt %d)", message.ID, rule.Name, job.Attempts+1)
	deliveryErr := w.deliver(ctx, rule, message)
	if deliveryErr == nil {
		return w.succeed(ctx, job, rule)
	}
	return w.fail(ctx, job, rule, deliveryErr)
}

// Deliver sends one payload for a channel without touching job state.
func (w *DeliveryWorker) Deliver(ctx context.Context, channel ChannelConfig, payload WebhookPayload) error {
	if w == nil || w.transport == nil {
		return fmt.Errorf("core: webhook transport is not configured")
	}
	req, err := BuildWebhookRequest(channel, payload, w.encrypter, w.cfg.BaseURL)
	if err != nil {
		return err
	}
	resp, err := w.transport.Post(ctx, req)
	if err != nil {
		if ClassifyDeliveryError(err) != DeliveryErrorUnknown {
			return err
		}
		return NewTransientDeliveryError(err, "webhook request failed: "+err.Error(), map[string]any{"url": req.URL})
	}
	if !isSuccessStatus(resp.StatusCode) {
		detail := deliveryFailureDetail(resp, w.cfg.MaxErrorBodyBytes)
		return NewTransientDeliveryError(nil, detail, map[string]any{"status_code": resp.StatusCode})
	}
	return nil
}

func (w *DeliveryWorker) deliver(ctx context.Context, rule Rule, message Message) error {
	payload := BuildWebhookPayload(message, w.cfg.TitlePrefix, w.cfg.Group)
	return w.Deliver(ctx, rule.Channel, payload)
}

func (w *DeliveryWorker) succeed(ctx context.Context, job Job, rule Rule) (DeliveryOutcome, error) {
	now := w.now()
	next := job
	if err := next.TransitionTo(JobStatusSuccess, now); err != nil {
		return DeliveryOutcome{JobID: job.ID, Result: DeliveryResultSkipped, Status: job.Status, Attempts: job.Attempts}, nil
	}
	updated, err := w.jobs.Transition(ctx, JobTransition{
		JobID:       job.ID,
		From:        []JobStatus{JobStatusPending, JobStatusFailedRetry},
		To:             JobStatusSuccess,
		ClearError:     true,
		AttemptedAt:    &now,
		ExpectAttempts: &job.Attempts,
	})
	if err != nil {
		return w.transitionFailed(ctx, job, err)
	}
	w.activity.Record(ctx, "[Worker] Job %s for rule %q succeeded", job.ID, rule.Name)
	return DeliveryOutcome{
		JobID:    job.ID,
		Result:   DeliveryResultSucceeded,
		Status:   updated.Status,
		Attempts: updated.Attempts,
	}, nil
}

func (w *DeliveryWorker) fail(ctx context.Context, job Job, rule Rule, deliveryErr error) (DeliveryOutcome, error) {
	now := w.now()
	detail := truncateText(deliveryErrorDetail(deliveryErr), maxStoredErrorLength)
	settings := w.loadSettings(ctx)
	attempts := job.Attempts + 1

	target := JobStatusFailedPermanently
	if settings.RetryOnFailure {
		if w.cfg.Backoff.Exhausted(attempts) {
			detail = truncateText(detail, maxStoredErrorLength-len(retryLimitSuffix)) + retryLimitSuffix
		} else {
			target = JobStatusFailedRetry
		}
	}

	next := job
	if err := next.TransitionTo(target, now); err != nil {
		return DeliveryOutcome{JobID: job.ID, Result: DeliveryResultSkipped, Status: job.Status, Attempts: job.Attempts}, nil
	}
	updated, err := w.jobs.Transition(ctx, JobTransition{
		JobID:             job.ID,
		From:              []JobStatus{JobStatusPending, JobStatusFailedRetry},
		To:                target,
		IncrementAttempts: true,
		LastError:         &detail,
		AttemptedAt:       &now,
		ExpectAttempts:    &job.Attempts,
	})
	if err != nil {
		return w.transitionFailed(ctx, job, err)
	}

	outcome := DeliveryOutcome{
		JobID:    job.ID,
		Status:   updated.Status,
		Attempts: updated.Attempts,
		Detail:   detail,
	}
	if target != JobStatusFailedRetry {
		outcome.Result = DeliveryResultFailed
		w.activity.Record(ctx, "[Worker] Job %s for rule %q failed permanently: %s", job.ID, rule.Name, detail)
		return outcome, nil
	}

	delay := w.cfg.Backoff.NextDelay(updated.Attempts)
	outcome.Result = DeliveryResultRetrying
	outcome.RetryAfter = delay
	w.activity.Record(ctx, "[Worker] Job %s for rule %q failed, retrying in %s: %s", job.ID, rule.Name, delay, detail)
	if w.scheduler == nil {
		w.logger.Error("retry scheduler is not configured", "job_id", job.ID)
		return outcome, nil
	}
	if err := w.scheduler.ScheduleAfter(ctx, job.ID, delay); err != nil {
		w.logger.Error("schedule retry failed", "job_id", job.ID, "error", err.Error())
	}
	return outcome, nil
}

const retryLimitSuffix = " (retry limit reached)"

func (w *DeliveryWorker) failDataIntegrity(ctx context.Context, job Job, cause error) (DeliveryOutcome, error) {
	now := w.now()
	detail := truncateText(deliveryErrorDetail(cause), maxStoredErrorLength)
	updated, err := w.jobs.Transition(ctx, JobTransition{
		JobID:       job.ID,
		From:        []JobStatus{JobStatusPending, JobStatusFailedRetry},
		To:             JobStatusFailedPermanently,
		LastError:      &detail,
		AttemptedAt:    &now,
		ExpectAttempts: &job.Attempts,
	})
	if err != nil {
		return w.transitionFailed(ctx, job, err)
	}
	w.activity.Record(ctx, "[Worker] Job %s failed permanently: %s", job.ID, detail)
	return DeliveryOutcome{
		JobID:    job.ID,
		Result:   DeliveryResultDataMissing,
		Status:   updated.Status,
		Attempts: updated.Attempts,
		Detail:   detail,
	}, nil
}

// transitionFailed treats a lost status or attempts precondition as a
// concurrent user action or a parallel attempt that already recorded its
// result. Either way this attempt's result is discarded.
func (w *DeliveryWorker) transitionFailed(ctx context.Context, job Job, err error) (DeliveryOutcome, error) {
	outcome := DeliveryOutcome{JobID: job.ID, Status: job.Status, Attempts: job.Attempts}
	switch {
	case errors.Is(err, ErrJobStateConflict):
		outcome.Result = DeliveryResultConflicted
		if current, getErr := w.jobs.Get(ctx, job.ID); getErr == nil {
			outcome.Status = current.Status
			outcome.Attempts = current.Attempts
		}
		w.logger.Warn("job state changed during delivery, discarding result", "job_id", job.ID, "status", string(outcome.Status))
		return outcome, nil
	case errors.Is(err, ErrJobNotFound):
		outcome.Result = DeliveryResultSkipped
		return outcome, nil
	default:
		return outcome, err
	}
}

func (w *DeliveryWorker) loadSettings(ctx context.Context) Settings {
	if w.settings == nil {
		return w.cfg.DefaultSettings
	}
	settings, err := w.settings.Load(ctx, w.cfg.DefaultSettings)
	if err != nil {
		w.logger.Warn("load settings failed, using defaults", "error", err.Error())
		return w.cfg.DefaultSettings
	}
	return settings
}

func deliveryErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

var _ JobExecutor = (*DeliveryWorker)(nil)
