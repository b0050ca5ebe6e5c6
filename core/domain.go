package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrJobNotFound                = errors.New("core: job not found")
	ErrRuleNotFound               = errors.New("core: rule not found")
	ErrMessageNotFound            = errors.New("core: message not found")
	ErrInvalidJobStatusTransition = errors.New("core: invalid job status transition")
	ErrUnknownJobStatus           = errors.New("core: unknown job status")
	ErrJobStateConflict           = errors.New("core: job state changed concurrently")
	ErrDuplicateJob               = errors.New("core: job already exists for message and rule")
)

type Message struct {
	ID         string
	Sender     string
	Content    string
	ReceivedAt time.Time
}

type EncryptionConfig struct {
	Mode string
	Key  string
	IV   string
}

// Active reports whether payloads should be encrypted. A block missing either
// key or mode is treated as plaintext delivery.
func (e *EncryptionConfig) Active() bool {
	if e == nil {
		return false
	}
	return strings.TrimSpace(e.Key) != "" && strings.TrimSpace(e.Mode) != ""
}

type ChannelConfig struct {
	Key        string
	BaseURL    string
	Enabled    bool
	Encryption *EncryptionConfig
}

type Rule struct {
	ID        string
	Name      string
	Channel   ChannelConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

type JobStatus string

const (
	JobStatusPending           JobStatus = "PENDING"
	JobStatusSuccess           JobStatus = "SUCCESS"
	JobStatusFailedRetry       JobStatus = "FAILED_RETRY"
	JobStatusFailedPermanently JobStatus = "FAILED_PERMANENTLY"
	JobStatusCancelled         JobStatus = "CANCELLED"
)

// JobStatuses lists every status in state-machine order.
func JobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending,
		JobStatusSuccess,
		JobStatusFailedRetry,
		JobStatusFailedPermanently,
		JobStatusCancelled,
	}
}

func ParseJobStatus(raw string) (JobStatus, error) {
	status := JobStatus(strings.TrimSpace(strings.ToUpper(raw)))
	switch status {
	case JobStatusPending,
		JobStatusSuccess,
		JobStatusFailedRetry,
		JobStatusFailedPermanently,
		JobStatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJobStatus, raw)
	}
}

// Executable reports whether the delivery worker may act on a job in this status.
func (s JobStatus) Executable() bool {
	switch s {
	case JobStatusPending, JobStatusFailedRetry:
		return true
	case JobStatusSuccess, JobStatusFailedPermanently, JobStatusCancelled:
		return false
	default:
		return false
	}
}

func (s JobStatus) Cancellable() bool {
	return s.Executable()
}

type Job struct {
	ID            string
	MessageID     string
	RuleID        string
	Status        JobStatus
	Attempts      int
	LastAttemptAt *time.Time
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (j *Job) TransitionTo(status JobStatus, now time.Time) error {
	if j == nil {
		return nil
	}
	if j.Status == status {
		j.UpdatedAt = now
		return nil
	}
	if !jobTransitionAllowed(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobStatusTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = now
	return nil
}

func jobTransitionAllowed(current, next JobStatus) bool {
	allowed := map[JobStatus]map[JobStatus]struct{}{
		JobStatusPending: {
			JobStatusSuccess:           {},
			JobStatusFailedRetry:       {},
			JobStatusFailedPermanently: {},
			JobStatusCancelled:         {},
		},
		JobStatusFailedRetry: {
			JobStatusSuccess:           {},
			JobStatusFailedRetry:       {},
			JobStatusFailedPermanently: {},
			JobStatusCancelled:         {},
		},
		JobStatusCancelled: {
			JobStatusPending: {},
		},
		JobStatusSuccess:           {},
		JobStatusFailedPermanently: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// JobView pairs a job with the display name of its rule. RuleName is empty
// when the rule has since been deleted.
type JobView struct {
	Job      Job
	RuleName string
}

type LogEntry struct {
	ID        string
	Message   string
	CreatedAt time.Time
}

// Settings are user-mutable runtime toggles, re-read on every commit and
// delivery attempt.
type Settings struct {
	RetryOnFailure bool
	MessageLimit   int
}

type DeliveryResult string

const (
	DeliveryResultSucceeded   DeliveryResult = "succeeded"
	DeliveryResultRetrying    DeliveryResult = "retrying"
	DeliveryResultFailed      DeliveryResult = "failed"
	DeliveryResultSkipped     DeliveryResult = "skipped"
	DeliveryResultConflicted  DeliveryResult = "conflicted"
	DeliveryResultDataMissing DeliveryResult = "data_missing"
)

// DeliveryOutcome reports what a single worker execution did. RetryAfter is set
// only for DeliveryResultRetrying.
type DeliveryOutcome struct {
	JobID      string
	Result     DeliveryResult
	Status     JobStatus
	Attempts   int
	RetryAfter time.Duration
	Detail     string
}

type CreateRuleInput struct {
	Name    string
	Channel ChannelConfig
}

type UpdateRuleInput struct {
	ID      string
	Name    string
	Channel ChannelConfig
}

type ImportStrategy string

const (
	ImportStrategyReplace ImportStrategy = "REPLACE"
	ImportStrategyMerge   ImportStrategy = "MERGE"
)

func ParseImportStrategy(raw string) (ImportStrategy, error) {
	strategy := ImportStrategy(strings.TrimSpace(strings.ToUpper(raw)))
	switch strategy {
	case ImportStrategyReplace, ImportStrategyMerge:
		return strategy, nil
	case "":
		return ImportStrategyMerge, nil
	default:
		return "", fmt.Errorf("core: invalid import strategy %q", raw)
	}
}
