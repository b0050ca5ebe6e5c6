package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-forwarder/core"
)

func TestIngestFragmentCommand_StoresIngestResult(t *testing.T) {
	captured := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := &stubMutatingService{
		ingestFn: func(sender string, content string, capturedAt time.Time) core.IngestResult {
			if sender != "10086" || content != "code 4821" || !capturedAt.Equal(captured) {
				t.Fatalf("unexpected fragment %q %q %s", sender, content, capturedAt)
			}
			return core.IngestResultStarted
		},
	}
	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewIngestFragmentCommand(svc).Execute(ctx, IngestFragmentMessage{Sender: "10086", Content: "code 4821", CapturedAt: captured})
	if err != nil {
		t.Fatalf("execute ingest: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result != core.IngestResultStarted {
		t.Fatalf("expected started result, got %q/%v", result, ok)
	}
}

func TestIngestFragmentCommand_RejectedFragmentIsBadInput(t *testing.T) {
	svc := &stubMutatingService{
		ingestFn: func(string, string, time.Time) core.IngestResult { return core.IngestResultRejected },
	}
	err := NewIngestFragmentCommand(svc).Execute(context.Background(), IngestFragmentMessage{Sender: "s", Content: "c"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected bad input envelope, got %v", err)
	}
}

func TestRetryJobCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := &stubMutatingService{
		retryFn: func(_ context.Context, jobID string) (core.Job, error) {
			if jobID != "job_1" {
				t.Fatalf("expected job_1, got %q", jobID)
			}
			return core.Job{ID: jobID, Status: core.JobStatusPending}, nil
		},
	}
	collector := gocmd.NewResult[core.Job]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewRetryJobCommand(svc).Execute(ctx, RetryJobMessage{JobID: "job_1"}); err != nil {
		t.Fatalf("execute retry: %v", err)
	}
	job, ok := collector.Load()
	if !ok || job.Status != core.JobStatusPending {
		t.Fatalf("expected pending job result, got %+v", job)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("cancel all retrying", func(t *testing.T) {
		svc := &stubMutatingService{
			cancelAllFn: func(context.Context) (int, error) { return 3, nil },
		}
		collector := gocmd.NewResult[int]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewCancelAllRetryingCommand(svc).Execute(ctx, CancelAllRetryingMessage{}); err != nil {
			t.Fatalf("execute cancel all: %v", err)
		}
		if count, _ := collector.Load(); count != 3 {
			t.Fatalf("expected count 3, got %d", count)
		}
	})

	t.Run("set rule enabled", func(t *testing.T) {
		called := false
		svc := &stubMutatingService{
			setEnabledFn: func(_ context.Context, ruleID string, enabled bool) (core.Rule, error) {
				called = true
				if ruleID != "rule_1" || enabled {
					t.Fatalf("unexpected toggle payload %q %v", ruleID, enabled)
				}
				return core.Rule{ID: ruleID}, nil
			},
		}
		if err := NewSetRuleEnabledCommand(svc).Execute(context.Background(), SetRuleEnabledMessage{RuleID: "rule_1"}); err != nil {
			t.Fatalf("execute toggle: %v", err)
		}
		if !called {
			t.Fatalf("expected toggle invocation")
		}
	})

	t.Run("import backup defaults to merge", func(t *testing.T) {
		var gotStrategy core.ImportStrategy
		svc := &stubMutatingService{
			importFn: func(_ context.Context, _ core.BackupDocument, strategy core.ImportStrategy) (core.ImportResult, error) {
				gotStrategy = strategy
				return core.ImportResult{}, nil
			},
		}
		if err := NewImportBackupCommand(svc).Execute(context.Background(), ImportBackupMessage{Document: core.BackupDocument{Version: 1}}); err != nil {
			t.Fatalf("execute import: %v", err)
		}
		if gotStrategy != core.ImportStrategyMerge {
			t.Fatalf("expected merge strategy, got %q", gotStrategy)
		}
	})

	t.Run("delete rule propagates service error", func(t *testing.T) {
		svc := &stubMutatingService{
			deleteFn: func(context.Context, string) error { return core.ErrRuleNotFound },
		}
		err := NewDeleteRuleCommand(svc).Execute(context.Background(), DeleteRuleMessage{RuleID: "rule_x"})
		if !errors.Is(err, core.ErrRuleNotFound) {
			t.Fatalf("expected ErrRuleNotFound, got %v", err)
		}
	})
}

func TestMessages_ValidateReturnRichErrors(t *testing.T) {
	cases := []interface{ Validate() error }{
		IngestFragmentMessage{Content: "c"},
		RetryJobMessage{},
		CancelJobMessage{JobID: " "},
		CreateRuleMessage{Input: core.CreateRuleInput{Name: "r"}},
		UpdateRuleMessage{Input: core.UpdateRuleInput{Name: "r", Channel: core.ChannelConfig{Key: "k"}}},
		DeleteRuleMessage{},
		TestDeliveryMessage{},
		UpdateSettingsMessage{Settings: core.Settings{MessageLimit: -2}},
		ImportBackupMessage{Document: core.BackupDocument{Version: 2}},
		ImportBackupMessage{Document: core.BackupDocument{Version: 1}, Strategy: "APPEND"},
	}
	for _, msg := range cases {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%T: expected go-errors envelope, got %v", msg, err)
		}
		if rich.TextCode != core.ServiceErrorBadInput {
			t.Fatalf("%T: expected %q text code, got %q", msg, core.ServiceErrorBadInput, rich.TextCode)
		}
	}

	valid := []interface{ Validate() error }{
		IngestFragmentMessage{Sender: "s", Content: "c"},
		CreateRuleMessage{Input: core.CreateRuleInput{Name: "r", Channel: core.ChannelConfig{Key: "k"}}},
		UpdateSettingsMessage{Settings: core.Settings{MessageLimit: -1}},
		ImportBackupMessage{Document: core.BackupDocument{Version: 1}, Strategy: core.ImportStrategyReplace},
	}
	for _, msg := range valid {
		if err := msg.Validate(); err != nil {
			t.Fatalf("%T: expected valid message, got %v", msg, err)
		}
	}
}

func TestCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *CancelJobCommand
	err := cmd.Execute(context.Background(), CancelJobMessage{JobID: "job_1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubMutatingService struct {
	ingestFn     func(sender string, content string, capturedAt time.Time) core.IngestResult
	retryFn      func(ctx context.Context, jobID string) (core.Job, error)
	cancelFn     func(ctx context.Context, jobID string) (core.Job, error)
	cancelAllFn  func(ctx context.Context) (int, error)
	setEnabledFn func(ctx context.Context, ruleID string, enabled bool) (core.Rule, error)
	deleteFn     func(ctx context.Context, ruleID string) error
	importFn     func(ctx context.Context, doc core.BackupDocument, strategy core.ImportStrategy) (core.ImportResult, error)
}

func (s *stubMutatingService) OnRawFragment(sender string, content string, capturedAt time.Time) core.IngestResult {
	if s.ingestFn == nil {
		return core.IngestResultStarted
	}
	return s.ingestFn(sender, content, capturedAt)
}

func (s *stubMutatingService) RetryJob(ctx context.Context, jobID string) (core.Job, error) {
	if s.retryFn == nil {
		return core.Job{}, nil
	}
	return s.retryFn(ctx, jobID)
}

func (s *stubMutatingService) CancelJob(ctx context.Context, jobID string) (core.Job, error) {
	if s.cancelFn == nil {
		return core.Job{}, nil
	}
	return s.cancelFn(ctx, jobID)
}

func (s *stubMutatingService) CancelAllRetryJobs(ctx context.Context) (int, error) {
	if s.cancelAllFn == nil {
		return 0, nil
	}
	return s.cancelAllFn(ctx)
}

func (s *stubMutatingService) CreateRule(context.Context, core.CreateRuleInput) (core.Rule, error) {
	return core.Rule{}, nil
}

func (s *stubMutatingService) UpdateRule(context.Context, core.UpdateRuleInput) (core.Rule, error) {
	return core.Rule{}, nil
}

func (s *stubMutatingService) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (core.Rule, error) {
	if s.setEnabledFn == nil {
		return core.Rule{}, nil
	}
	return s.setEnabledFn(ctx, ruleID, enabled)
}

func (s *stubMutatingService) DeleteRule(ctx context.Context, ruleID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, ruleID)
}

func (s *stubMutatingService) TestDelivery(context.Context, core.ChannelConfig, string, string) error {
	return nil
}

func (s *stubMutatingService) UpdateSettings(_ context.Context, settings core.Settings) (core.Settings, error) {
	return settings, nil
}

func (s *stubMutatingService) ImportBackup(ctx context.Context, doc core.BackupDocument, strategy core.ImportStrategy) (core.ImportResult, error) {
	if s.importFn == nil {
		return core.ImportResult{}, nil
	}
	return s.importFn(ctx, doc, strategy)
}

func (s *stubMutatingService) ClearMessages(context.Context) error { return nil }

func (s *stubMutatingService) ClearLogs(context.Context) error { return nil }
