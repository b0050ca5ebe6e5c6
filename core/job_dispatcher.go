package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// JobDispatcher fans a committed message out to one job per enabled rule.
type JobDispatcher struct {
	rules     RuleStore
	jobs      JobStore
	scheduler RetryScheduler
	activity  *ActivityLog
	logger    Logger
	now       func() time.Time
}

func NewJobDispatcher(rules RuleStore, jobs JobStore, scheduler RetryScheduler, activity *ActivityLog, logger Logger) *JobDispatcher {
	return &JobDispatcher{
		rules:     rules,
		jobs:      jobs,
		scheduler: scheduler,
		activity:  activity,
		logger:    glog.Ensure(logger),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch creates and schedules jobs for the enabled-rule snapshot. A failure
// for one rule does not stop the others; errors are joined.
func (d *JobDispatcher) Dispatch(ctx context.Context, message Message) ([]Job, error) {
	if d == nil || d.rules == nil || d.jobs == nil {
		return nil, fmt.Errorf("core: job dispatcher is not configured")
	}
	rules, err := d.rules.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: load enabled rules: %w", err)
	}
	d.activity.Record(ctx, "[Dispatcher] Found %d enabled rule(s) for message %s", len(rules), message.ID)

	created := make([]Job, 0, len(rules))
	var errs []error
	for _, rule := range rules {
		if !rule.Channel.Enabled {
			continue
		}
		now := d.now()
		job, createErr := d.jobs.Create(ctx, Job{
			MessageID: message.ID,
			RuleID:    rule.ID,
			Status:    JobStatusPending,
			Attempts:  0,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if createErr != nil {
			if errors.Is(createErr, ErrDuplicateJob) {
				d.logger.Debug("job already dispatched", "message_id", message.ID, "rule_id", rule.ID)
				continue
			}
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, createErr))
			continue
		}
		created = append(created, job)
		if d.scheduler == nil {
			errs = append(errs, fmt.Errorf("rule %s: retry scheduler is not configured", rule.ID))
			continue
		}
		if scheduleErr := d.scheduler.ScheduleNow(ctx, job.ID); scheduleErr != nil {
			errs = append(errs, fmt.Errorf("job %s: schedule: %w", job.ID, scheduleErr))
		}
	}
	return created, errors.Join(errs...)
}
