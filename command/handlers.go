package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-forwarder/core"
)

// MutatingService is the write side of the forwarder service.
type MutatingService interface {
	OnRawFragment(sender string, content string, capturedAt time.Time) core.IngestResult
	RetryJob(ctx context.Context, jobID string) (core.Job, error)
	CancelJob(ctx context.Context, jobID string) (core.Job, error)
	CancelAllRetryJobs(ctx context.Context) (int, error)
	CreateRule(ctx context.Context, input core.CreateRuleInput) (core.Rule, error)
	UpdateRule(ctx context.Context, input core.UpdateRuleInput) (core.Rule, error)
	SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (core.Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error
	TestDelivery(ctx context.Context, channel core.ChannelConfig, title string, body string) error
	UpdateSettings(ctx context.Context, settings core.Settings) (core.Settings, error)
	ImportBackup(ctx context.Context, doc core.BackupDocument, strategy core.ImportStrategy) (core.ImportResult, error)
	ClearMessages(ctx context.Context) error
	ClearLogs(ctx context.Context) error
}

type IngestFragmentCommand struct {
	service MutatingService
}

func NewIngestFragmentCommand(service MutatingService) *IngestFragmentCommand {
	return &IngestFragmentCommand{service: service}
}

func (c *IngestFragmentCommand) Execute(ctx context.Context, msg IngestFragmentMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: ingest service is required")
	}
	result := c.service.OnRawFragment(msg.Sender, msg.Content, msg.CapturedAt)
	if result == core.IngestResultRejected {
		return core.NewBadInputError(nil, "command: fragment was rejected")
	}
	storeResult(ctx, result)
	return nil
}

type RetryJobCommand struct {
	service MutatingService
}

func NewRetryJobCommand(service MutatingService) *RetryJobCommand {
	return &RetryJobCommand{service: service}
}

func (c *RetryJobCommand) Execute(ctx context.Context, msg RetryJobMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: retry service is required")
	}
	out, err := c.service.RetryJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelJobCommand struct {
	service MutatingService
}

func NewCancelJobCommand(service MutatingService) *CancelJobCommand {
	return &CancelJobCommand{service: service}
}

func (c *CancelJobCommand) Execute(ctx context.Context, msg CancelJobMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: cancel service is required")
	}
	out, err := c.service.CancelJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelAllRetryingCommand struct {
	service MutatingService
}

func NewCancelAllRetryingCommand(service MutatingService) *CancelAllRetryingCommand {
	return &CancelAllRetryingCommand{service: service}
}

func (c *CancelAllRetryingCommand) Execute(ctx context.Context, _ CancelAllRetryingMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: cancel service is required")
	}
	count, err := c.service.CancelAllRetryJobs(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, count)
	return nil
}

type CreateRuleCommand struct {
	service MutatingService
}

func NewCreateRuleCommand(service MutatingService) *CreateRuleCommand {
	return &CreateRuleCommand{service: service}
}

func (c *CreateRuleCommand) Execute(ctx context.Context, msg CreateRuleMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: rule service is required")
	}
	out, err := c.service.CreateRule(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateRuleCommand struct {
	service MutatingService
}

func NewUpdateRuleCommand(service MutatingService) *UpdateRuleCommand {
	return &UpdateRuleCommand{service: service}
}

func (c *UpdateRuleCommand) Execute(ctx context.Context, msg UpdateRuleMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: rule service is required")
	}
	out, err := c.service.UpdateRule(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetRuleEnabledCommand struct {
	service MutatingService
}

func NewSetRuleEnabledCommand(service MutatingService) *SetRuleEnabledCommand {
	return &SetRuleEnabledCommand{service: service}
}

func (c *SetRuleEnabledCommand) Execute(ctx context.Context, msg SetRuleEnabledMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: rule service is required")
	}
	out, err := c.service.SetRuleEnabled(ctx, msg.RuleID, msg.Enabled)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteRuleCommand struct {
	service MutatingService
}

func NewDeleteRuleCommand(service MutatingService) *DeleteRuleCommand {
	return &DeleteRuleCommand{service: service}
}

func (c *DeleteRuleCommand) Execute(ctx context.Context, msg DeleteRuleMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: rule service is required")
	}
	return c.service.DeleteRule(ctx, msg.RuleID)
}

type TestDeliveryCommand struct {
	service MutatingService
}

func NewTestDeliveryCommand(service MutatingService) *TestDeliveryCommand {
	return &TestDeliveryCommand{service: service}
}

func (c *TestDeliveryCommand) Execute(ctx context.Context, msg TestDeliveryMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: delivery service is required")
	}
	return c.service.TestDelivery(ctx, msg.Channel, msg.Title, msg.Body)
}

type UpdateSettingsCommand struct {
	service MutatingService
}

func NewUpdateSettingsCommand(service MutatingService) *UpdateSettingsCommand {
	return &UpdateSettingsCommand{service: service}
}

func (c *UpdateSettingsCommand) Execute(ctx context.Context, msg UpdateSettingsMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: settings service is required")
	}
	out, err := c.service.UpdateSettings(ctx, msg.Settings)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ImportBackupCommand struct {
	service MutatingService
}

func NewImportBackupCommand(service MutatingService) *ImportBackupCommand {
	return &ImportBackupCommand{service: service}
}

func (c *ImportBackupCommand) Execute(ctx context.Context, msg ImportBackupMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: backup service is required")
	}
	strategy, err := core.ParseImportStrategy(string(msg.Strategy))
	if err != nil {
		return core.NewBadInputError(err, "command: invalid import strategy")
	}
	out, err := c.service.ImportBackup(ctx, msg.Document, strategy)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ClearMessagesCommand struct {
	service MutatingService
}

func NewClearMessagesCommand(service MutatingService) *ClearMessagesCommand {
	return &ClearMessagesCommand{service: service}
}

func (c *ClearMessagesCommand) Execute(ctx context.Context, _ ClearMessagesMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: message service is required")
	}
	return c.service.ClearMessages(ctx)
}

type ClearLogsCommand struct {
	service MutatingService
}

func NewClearLogsCommand(service MutatingService) *ClearLogsCommand {
	return &ClearLogsCommand{service: service}
}

func (c *ClearLogsCommand) Execute(ctx context.Context, _ ClearLogsMessage) error {
	if c == nil || c.service == nil {
		return core.NewDependencyError("command: log service is required")
	}
	return c.service.ClearLogs(ctx)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
