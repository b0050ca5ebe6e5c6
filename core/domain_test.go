package core

import (
	"errors"
	"testing"
	"time"
)

func TestJobTransitionTo_StateMachine(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusPending, JobStatusSuccess, true},
		{JobStatusPending, JobStatusFailedRetry, true},
		{JobStatusPending, JobStatusFailedPermanently, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusFailedRetry, JobStatusSuccess, true},
		{JobStatusFailedRetry, JobStatusFailedRetry, true},
		{JobStatusFailedRetry, JobStatusCancelled, true},
		{JobStatusFailedRetry, JobStatusPending, false},
		{JobStatusCancelled, JobStatusPending, true},
		{JobStatusCancelled, JobStatusSuccess, false},
		{JobStatusCancelled, JobStatusFailedRetry, false},
		{JobStatusSuccess, JobStatusPending, false},
		{JobStatusSuccess, JobStatusCancelled, false},
		{JobStatusFailedPermanently, JobStatusPending, false},
		{JobStatusFailedPermanently, JobStatusFailedRetry, false},
	}
	for _, tc := range cases {
		job := Job{Status: tc.from}
		err := job.TransitionTo(tc.to, now)
		if tc.allowed && err != nil {
			t.Fatalf("expected %s -> %s to be allowed, got %v", tc.from, tc.to, err)
		}
		if !tc.allowed {
			if !errors.Is(err, ErrInvalidJobStatusTransition) {
				t.Fatalf("expected %s -> %s to be rejected, got %v", tc.from, tc.to, err)
			}
			if job.Status != tc.from {
				t.Fatalf("expected rejected transition to keep %s, got %s", tc.from, job.Status)
			}
		}
	}
}

func TestJobStatus_Executable(t *testing.T) {
	executable := map[JobStatus]bool{
		JobStatusPending:           true,
		JobStatusFailedRetry:       true,
		JobStatusSuccess:           false,
		JobStatusFailedPermanently: false,
		JobStatusCancelled:         false,
	}
	for status, want := range executable {
		if got := status.Executable(); got != want {
			t.Fatalf("expected %s executable=%v, got %v", status, want, got)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	status, err := ParseJobStatus(" failed_retry ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != JobStatusFailedRetry {
		t.Fatalf("expected FAILED_RETRY, got %s", status)
	}
	if _, err := ParseJobStatus("running"); !errors.Is(err, ErrUnknownJobStatus) {
		t.Fatalf("expected unknown status error, got %v", err)
	}
	if len(JobStatuses()) != 5 {
		t.Fatalf("expected five statuses, got %d", len(JobStatuses()))
	}
}

func TestEncryptionConfig_Active(t *testing.T) {
	var missing *EncryptionConfig
	if missing.Active() {
		t.Fatalf("expected nil encryption to be inactive")
	}
	if (&EncryptionConfig{Mode: "CBC"}).Active() {
		t.Fatalf("expected encryption without key to be inactive")
	}
	if (&EncryptionConfig{Key: "0123456789abcdef"}).Active() {
		t.Fatalf("expected encryption without mode to be inactive")
	}
	if !(&EncryptionConfig{Mode: "ECB", Key: "0123456789abcdef"}).Active() {
		t.Fatalf("expected key and mode to activate encryption")
	}
}

func TestParseImportStrategy(t *testing.T) {
	if got, _ := ParseImportStrategy(""); got != ImportStrategyMerge {
		t.Fatalf("expected empty strategy to default to MERGE, got %q", got)
	}
	if got, _ := ParseImportStrategy("replace"); got != ImportStrategyReplace {
		t.Fatalf("expected REPLACE, got %q", got)
	}
	if _, err := ParseImportStrategy("append"); err == nil {
		t.Fatalf("expected invalid strategy error")
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := DefaultConfig().Retry.Backoff()
	expected := []time.Duration{
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
		16 * time.Minute,
		30 * time.Minute,
		30 * time.Minute,
	}
	for i, want := range expected {
		if got := backoff.NextDelay(i + 1); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, want, got)
		}
	}
	if backoff.Exhausted(7) {
		t.Fatalf("expected 7 attempts to allow another retry")
	}
	if !backoff.Exhausted(8) {
		t.Fatalf("expected 8 attempts to exhaust retries")
	}
	if got := (ExponentialBackoff{}).NextDelay(0); got != 30*time.Second {
		t.Fatalf("expected zero-value backoff to use defaults, got %s", got)
	}
}
