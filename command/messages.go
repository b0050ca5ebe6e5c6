package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"
)

const (
	TypeIngestFragment    = "forwarder.command.fragment.ingest"
	TypeRetryJob          = "forwarder.command.job.retry"
	TypeCancelJob         = "forwarder.command.job.cancel"
	TypeCancelAllRetrying = "forwarder.command.job.cancel_retrying"
	TypeCreateRule        = "forwarder.command.rule.create"
	TypeUpdateRule        = "forwarder.command.rule.update"
	TypeSetRuleEnabled    = "forwarder.command.rule.set_enabled"
	TypeDeleteRule        = "forwarder.command.rule.delete"
	TypeTestDelivery      = "forwarder.command.rule.test_delivery"
	TypeUpdateSettings    = "forwarder.command.settings.update"
	TypeImportBackup      = "forwarder.command.backup.import"
	TypeClearMessages     = "forwarder.command.messages.clear"
	TypeClearLogs         = "forwarder.command.logs.clear"
)

type IngestFragmentMessage struct {
	Sender     string
	Content    string
	CapturedAt time.Time
}

func (IngestFragmentMessage) Type() string { return TypeIngestFragment }

func (m IngestFragmentMessage) Validate() error {
	if strings.TrimSpace(m.Sender) == "" {
		return core.NewValidationError("command", "sender", "sender is required")
	}
	if m.Content == "" {
		return core.NewValidationError("command", "content", "content is required")
	}
	return nil
}

type RetryJobMessage struct {
	JobID string
}

func (RetryJobMessage) Type() string { return TypeRetryJob }

func (m RetryJobMessage) Validate() error {
	return requireID("job_id", m.JobID)
}

type CancelJobMessage struct {
	JobID string
}

func (CancelJobMessage) Type() string { return TypeCancelJob }

func (m CancelJobMessage) Validate() error {
	return requireID("job_id", m.JobID)
}

type CancelAllRetryingMessage struct{}

func (CancelAllRetryingMessage) Type() string { return TypeCancelAllRetrying }

type CreateRuleMessage struct {
	Input core.CreateRuleInput
}

func (CreateRuleMessage) Type() string { return TypeCreateRule }

func (m CreateRuleMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return core.NewValidationError("command", "name", "rule name is required")
	}
	if strings.TrimSpace(m.Input.Channel.Key) == "" {
		return core.NewValidationError("command", "channel.key", "channel key is required")
	}
	return nil
}

type UpdateRuleMessage struct {
	Input core.UpdateRuleInput
}

func (UpdateRuleMessage) Type() string { return TypeUpdateRule }

func (m UpdateRuleMessage) Validate() error {
	if err := requireID("id", m.Input.ID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.Name) == "" {
		return core.NewValidationError("command", "name", "rule name is required")
	}
	if strings.TrimSpace(m.Input.Channel.Key) == "" {
		return core.NewValidationError("command", "channel.key", "channel key is required")
	}
	return nil
}

type SetRuleEnabledMessage struct {
	RuleID  string
	Enabled bool
}

func (SetRuleEnabledMessage) Type() string { return TypeSetRuleEnabled }

func (m SetRuleEnabledMessage) Validate() error {
	return requireID("rule_id", m.RuleID)
}

type DeleteRuleMessage struct {
	RuleID string
}

func (DeleteRuleMessage) Type() string { return TypeDeleteRule }

func (m DeleteRuleMessage) Validate() error {
	return requireID("rule_id", m.RuleID)
}

type TestDeliveryMessage struct {
	Channel core.ChannelConfig
	Title   string
	Body    string
}

func (TestDeliveryMessage) Type() string { return TypeTestDelivery }

func (m TestDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.Channel.Key) == "" {
		return core.NewValidationError("command", "channel.key", "channel key is required")
	}
	return nil
}

type UpdateSettingsMessage struct {
	Settings core.Settings
}

func (UpdateSettingsMessage) Type() string { return TypeUpdateSettings }

func (m UpdateSettingsMessage) Validate() error {
	if m.Settings.MessageLimit < -1 {
		return core.NewValidationError("command", "message_limit", "message limit must be -1 or greater")
	}
	return nil
}

type ImportBackupMessage struct {
	Document core.BackupDocument
	Strategy core.ImportStrategy
}

func (ImportBackupMessage) Type() string { return TypeImportBackup }

func (m ImportBackupMessage) Validate() error {
	if _, err := core.ParseImportStrategy(string(m.Strategy)); err != nil {
		return core.NewBadInputError(err, "command: invalid import strategy")
	}
	if err := m.Document.Validate(); err != nil {
		return core.NewBadInputError(err, "command: invalid backup document")
	}
	return nil
}

type ClearMessagesMessage struct{}

func (ClearMessagesMessage) Type() string { return TypeClearMessages }

type ClearLogsMessage struct{}

func (ClearLogsMessage) Type() string { return TypeClearLogs }

func requireID(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return core.NewValidationError("command", field, field+" is required")
	}
	return nil
}
