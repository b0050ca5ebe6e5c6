package query

import (
	"strings"

	"github.com/goliatone/go-forwarder/core"
)

const (
	TypeGetJob             = "forwarder.query.job.get"
	TypeListJobsForMessage = "forwarder.query.job.list_for_message"
	TypeListJobsByStatus   = "forwarder.query.job.list_by_status"
	TypeGetRule            = "forwarder.query.rule.get"
	TypeListRules          = "forwarder.query.rule.list"
	TypeGetMessage         = "forwarder.query.message.get"
	TypeListMessages       = "forwarder.query.message.list"
	TypeGetSettings        = "forwarder.query.settings.get"
	TypeListLogs           = "forwarder.query.logs.list"
	TypeExportBackup       = "forwarder.query.backup.export"
)

type GetJobMessage struct {
	JobID string
}

func (GetJobMessage) Type() string { return TypeGetJob }

func (m GetJobMessage) Validate() error {
	return requireID("job_id", m.JobID)
}

type ListJobsForMessageMessage struct {
	MessageID string
}

func (ListJobsForMessageMessage) Type() string { return TypeListJobsForMessage }

func (m ListJobsForMessageMessage) Validate() error {
	return requireID("message_id", m.MessageID)
}

type ListJobsByStatusMessage struct {
	Status core.JobStatus
	Limit  int
}

func (ListJobsByStatusMessage) Type() string { return TypeListJobsByStatus }

func (m ListJobsByStatusMessage) Validate() error {
	switch m.Status {
	case core.JobStatusPending,
		core.JobStatusSuccess,
		core.JobStatusFailedRetry,
		core.JobStatusFailedPermanently,
		core.JobStatusCancelled:
	default:
		return core.NewValidationError("query", "status", "unknown job status "+string(m.Status))
	}
	if m.Limit < 0 {
		return core.NewValidationError("query", "limit", "limit must not be negative")
	}
	return nil
}

type GetRuleMessage struct {
	RuleID string
}

func (GetRuleMessage) Type() string { return TypeGetRule }

func (m GetRuleMessage) Validate() error {
	return requireID("rule_id", m.RuleID)
}

type ListRulesMessage struct{}

func (ListRulesMessage) Type() string { return TypeListRules }

type GetMessageMessage struct {
	MessageID string
}

func (GetMessageMessage) Type() string { return TypeGetMessage }

func (m GetMessageMessage) Validate() error {
	return requireID("message_id", m.MessageID)
}

type ListMessagesMessage struct {
	Limit int
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	if m.Limit < 0 {
		return core.NewValidationError("query", "limit", "limit must not be negative")
	}
	return nil
}

type GetSettingsMessage struct{}

func (GetSettingsMessage) Type() string { return TypeGetSettings }

type ListLogsMessage struct {
	Limit int
}

func (ListLogsMessage) Type() string { return TypeListLogs }

func (m ListLogsMessage) Validate() error {
	if m.Limit < 0 {
		return core.NewValidationError("query", "limit", "limit must not be negative")
	}
	return nil
}

type ExportBackupMessage struct{}

func (ExportBackupMessage) Type() string { return TypeExportBackup }

func requireID(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return core.NewValidationError("query", field, field+" is required")
	}
	return nil
}
