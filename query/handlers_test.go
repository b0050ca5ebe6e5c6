package query

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-forwarder/core"
)

func TestJobQueries_DelegateToReader(t *testing.T) {
	reader := &stubReader{
		jobs: map[string]core.Job{"job_1": {ID: "job_1", Status: core.JobStatusFailedRetry}},
		views: []core.JobView{
			{Job: core.Job{ID: "job_1"}, RuleName: "phone"},
		},
	}

	job, err := NewGetJobQuery(reader).Query(context.Background(), GetJobMessage{JobID: "job_1"})
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != core.JobStatusFailedRetry {
		t.Fatalf("expected FAILED_RETRY, got %q", job.Status)
	}

	views, err := NewListJobsForMessageQuery(reader).Query(context.Background(), ListJobsForMessageMessage{MessageID: "msg_1"})
	if err != nil {
		t.Fatalf("list jobs for message: %v", err)
	}
	if len(views) != 1 || views[0].RuleName != "phone" {
		t.Fatalf("expected rule name on view, got %+v", views)
	}
	if reader.lastMessageID != "msg_1" {
		t.Fatalf("expected message id passthrough, got %q", reader.lastMessageID)
	}

	if _, err := NewListJobsByStatusQuery(reader).Query(context.Background(), ListJobsByStatusMessage{Status: core.JobStatusPending, Limit: 5}); err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if reader.lastStatus != core.JobStatusPending || reader.lastLimit != 5 {
		t.Fatalf("expected status and limit passthrough, got %q/%d", reader.lastStatus, reader.lastLimit)
	}

	_, err = NewGetJobQuery(reader).Query(context.Background(), GetJobMessage{JobID: "job_missing"})
	if !errors.Is(err, core.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestReadQueries_DelegateToReader(t *testing.T) {
	reader := &stubReader{}
	ctx := context.Background()

	rules, err := NewListRulesQuery(reader).Query(ctx, ListRulesMessage{})
	if err != nil || len(rules) != 1 {
		t.Fatalf("expected one rule, got %d/%v", len(rules), err)
	}
	messages, err := NewListMessagesQuery(reader).Query(ctx, ListMessagesMessage{Limit: 20})
	if err != nil || reader.lastLimit != 20 || len(messages) != 1 {
		t.Fatalf("expected limited message list, got %d/%d/%v", len(messages), reader.lastLimit, err)
	}
	settings, err := NewGetSettingsQuery(reader).Query(ctx, GetSettingsMessage{})
	if err != nil || settings.MessageLimit != 50 {
		t.Fatalf("expected settings passthrough, got %+v/%v", settings, err)
	}
	logs, err := NewListLogsQuery(reader).Query(ctx, ListLogsMessage{})
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one log entry, got %d/%v", len(logs), err)
	}
	doc, err := NewExportBackupQuery(reader).Query(ctx, ExportBackupMessage{})
	if err != nil || doc.Version != core.BackupVersion {
		t.Fatalf("expected backup document, got %+v/%v", doc, err)
	}
}

func TestMessages_ValidateReturnRichErrors(t *testing.T) {
	invalid := []interface{ Validate() error }{
		GetJobMessage{},
		ListJobsForMessageMessage{MessageID: " "},
		ListJobsByStatusMessage{Status: "DONE"},
		ListJobsByStatusMessage{Status: core.JobStatusPending, Limit: -1},
		GetRuleMessage{},
		GetMessageMessage{},
		ListMessagesMessage{Limit: -3},
		ListLogsMessage{Limit: -1},
	}
	for _, msg := range invalid {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%T: expected go-errors envelope, got %v", msg, err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("%T: expected validation category, got %q", msg, rich.Category)
		}
		if rich.TextCode != core.ServiceErrorBadInput {
			t.Fatalf("%T: expected %q text code, got %q", msg, core.ServiceErrorBadInput, rich.TextCode)
		}
	}
}

func TestQuery_NilReaderReturnsRichError(t *testing.T) {
	var qry *ListRulesQuery
	_, err := qry.Query(context.Background(), ListRulesMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubReader struct {
	jobs          map[string]core.Job
	views         []core.JobView
	lastMessageID string
	lastStatus    core.JobStatus
	lastLimit     int
}

func (s *stubReader) GetJob(_ context.Context, jobID string) (core.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return core.Job{}, core.ErrJobNotFound
	}
	return job, nil
}

func (s *stubReader) ListJobsForMessage(_ context.Context, messageID string) ([]core.JobView, error) {
	s.lastMessageID = messageID
	return s.views, nil
}

func (s *stubReader) ListJobsByStatus(_ context.Context, status core.JobStatus, limit int) ([]core.Job, error) {
	s.lastStatus = status
	s.lastLimit = limit
	return nil, nil
}

func (s *stubReader) GetRule(_ context.Context, ruleID string) (core.Rule, error) {
	return core.Rule{ID: ruleID}, nil
}

func (s *stubReader) ListRules(context.Context) ([]core.Rule, error) {
	return []core.Rule{{ID: "rule_1", Name: "phone"}}, nil
}

func (s *stubReader) GetMessage(_ context.Context, messageID string) (core.Message, error) {
	return core.Message{ID: messageID}, nil
}

func (s *stubReader) ListMessages(_ context.Context, limit int) ([]core.Message, error) {
	s.lastLimit = limit
	return []core.Message{{ID: "msg_1", Sender: "10086"}}, nil
}

func (s *stubReader) GetSettings(context.Context) (core.Settings, error) {
	return core.Settings{RetryOnFailure: true, MessageLimit: 50}, nil
}

func (s *stubReader) ListLogs(context.Context, int) ([]core.LogEntry, error) {
	return []core.LogEntry{{ID: "log_1", Message: "[Worker] Job job_1 succeeded"}}, nil
}

func (s *stubReader) ExportBackup(context.Context) (core.BackupDocument, error) {
	return core.BackupDocument{Version: core.BackupVersion}, nil
}
