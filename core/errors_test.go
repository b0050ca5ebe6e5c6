package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := serviceErrorMapper(fmt.Errorf("%w: id %q", ErrJobNotFound, "job_1"))
	if mapped.TextCode != ServiceErrorNotFound {
		t.Fatalf("expected not found text code, got %q", mapped.TextCode)
	}
	if mapped.Code != 404 {
		t.Fatalf("expected 404 on mapped error, got %d", mapped.Code)
	}

	mapped = serviceErrorMapper(fmt.Errorf("%w: SUCCESS -> PENDING", ErrInvalidJobStatusTransition))
	if mapped.TextCode != ServiceErrorConflict {
		t.Fatalf("expected conflict code, got %q", mapped.TextCode)
	}
	if mapped.Category != goerrors.CategoryConflict {
		t.Fatalf("expected conflict category, got %q", mapped.Category)
	}

	mapped = serviceErrorMapper(stderrors.New("core: backup version is unsupported"))
	if mapped.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected bad input code, got %q", mapped.TextCode)
	}

	mapped = serviceErrorMapper(stderrors.New("disk on fire"))
	if mapped.TextCode != ServiceErrorInternal || mapped.Code != 500 {
		t.Fatalf("expected internal envelope, got %q/%d", mapped.TextCode, mapped.Code)
	}
	if serviceErrorMapper(nil) != nil {
		t.Fatalf("expected nil error to map to nil")
	}

	foreign := goerrors.New("task not configured", goerrors.CategoryInternal).WithTextCode("JOB_TASK_MISSING")
	mapped = serviceErrorMapper(foreign)
	if mapped.TextCode != ServiceErrorInternal || mapped.Code != 500 {
		t.Fatalf("expected foreign text code to be replaced, got %q/%d", mapped.TextCode, mapped.Code)
	}
	mapped = serviceErrorMapper(goerrors.New("missing", goerrors.CategoryNotFound).WithTextCode("ROW_MISSING"))
	if mapped.TextCode != ServiceErrorNotFound {
		t.Fatalf("expected category default for foreign code, got %q", mapped.TextCode)
	}
}

func TestClassifyDeliveryError(t *testing.T) {
	cases := []struct {
		err  error
		want DeliveryErrorKind
	}{
		{NewTransientDeliveryError(stderrors.New("dial tcp: refused"), "webhook unreachable", nil), DeliveryErrorTransient},
		{NewConfigurationError(nil, "invalid key length", map[string]any{"mode": "CBC"}), DeliveryErrorConfiguration},
		{NewDataIntegrityError(nil, "message missing", nil), DeliveryErrorDataIntegrity},
		{fmt.Errorf("lookup: %w", ErrRuleNotFound), DeliveryErrorDataIntegrity},
		{stderrors.New("boom"), DeliveryErrorUnknown},
		{nil, DeliveryErrorUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyDeliveryError(tc.err); got != tc.want {
			t.Fatalf("classify %v: expected %q, got %q", tc.err, tc.want, got)
		}
	}
}

func TestDeliveryErrors_KeepSourceAndMetadata(t *testing.T) {
	source := stderrors.New("connection reset")
	err := NewTransientDeliveryError(source, "webhook request failed", map[string]any{"job_id": "job_9"})
	if !stderrors.Is(err, source) {
		t.Fatalf("expected wrapped source to be reachable")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if rich.Metadata["job_id"] != "job_9" {
		t.Fatalf("expected job_id metadata, got %#v", rich.Metadata)
	}
	if rich.Code != 502 {
		t.Fatalf("expected 502 code, got %d", rich.Code)
	}
}

func TestServiceMethods_MapErrorsToStableServiceCodes(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(Config{}, WithRetryScheduler(&manualScheduler{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.CreateRule(ctx, CreateRuleInput{Channel: ChannelConfig{Key: "k"}})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", richErr.TextCode)
	}

	_, err = svc.RetryJob(ctx, "job_missing")
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != ServiceErrorNotFound {
		t.Fatalf("expected not found text code, got %q", richErr.TextCode)
	}

	rule, err := svc.CreateRule(ctx, CreateRuleInput{Name: "r", Channel: ChannelConfig{Key: "k", Enabled: true}})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	job, err := svc.Dependencies().JobStore.Create(ctx, Job{MessageID: "m", RuleID: rule.ID, Status: JobStatusSuccess})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	_, err = svc.CancelJob(ctx, job.ID)
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != ServiceErrorConflict {
		t.Fatalf("expected conflict text code, got %q", richErr.TextCode)
	}
}

func TestHandlerErrorConstructors(t *testing.T) {
	var rich *goerrors.Error

	err := NewValidationError("command", "sender", "sender is required")
	if !goerrors.As(err, &rich) || rich.TextCode != ServiceErrorBadInput || rich.Code != 400 {
		t.Fatalf("expected 400 bad input envelope, got %v", err)
	}
	if rich.Message != "command: validation failed" {
		t.Fatalf("expected scoped message, got %q", rich.Message)
	}

	source := stderrors.New("unknown import strategy")
	err = NewBadInputError(source, "command: invalid import strategy")
	if !goerrors.As(err, &rich) || rich.TextCode != ServiceErrorBadInput || rich.Code != 400 {
		t.Fatalf("expected bad input text code, got %v", err)
	}
	if rich.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input category, got %q", rich.Category)
	}

	err = NewBadInputError(NewValidationError("core", "version", "unsupported backup version 9"), "command: invalid backup document")
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryBadInput || rich.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected rich source rewrapped as bad input, got %v", err)
	}

	err = NewDependencyError("query: rule reader is required")
	if !goerrors.As(err, &rich) || rich.TextCode != ServiceErrorInternal || rich.Code != 500 {
		t.Fatalf("expected internal dependency envelope, got %v", err)
	}
}
