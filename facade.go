package forwarder

import (
	"fmt"

	forwardercommand "github.com/goliatone/go-forwarder/command"
	forwarderquery "github.com/goliatone/go-forwarder/query"
)

type CommandQueryService interface {
	forwardercommand.MutatingService
	forwarderquery.JobReader
	forwarderquery.RuleReader
	forwarderquery.MessageReader
	forwarderquery.SettingsReader
	forwarderquery.LogReader
	forwarderquery.BackupExporter
}

type Commands struct {
	IngestFragment    *forwardercommand.IngestFragmentCommand
	RetryJob          *forwardercommand.RetryJobCommand
	CancelJob         *forwardercommand.CancelJobCommand
	CancelAllRetrying *forwardercommand.CancelAllRetryingCommand
	CreateRule        *forwardercommand.CreateRuleCommand
	UpdateRule        *forwardercommand.UpdateRuleCommand
	SetRuleEnabled    *forwardercommand.SetRuleEnabledCommand
	DeleteRule        *forwardercommand.DeleteRuleCommand
	TestDelivery      *forwardercommand.TestDeliveryCommand
	UpdateSettings    *forwardercommand.UpdateSettingsCommand
	ImportBackup      *forwardercommand.ImportBackupCommand
	ClearMessages     *forwardercommand.ClearMessagesCommand
	ClearLogs         *forwardercommand.ClearLogsCommand
}

type Queries struct {
	GetJob             *forwarderquery.GetJobQuery
	ListJobsForMessage *forwarderquery.ListJobsForMessageQuery
	ListJobsByStatus   *forwarderquery.ListJobsByStatusQuery
	GetRule            *forwarderquery.GetRuleQuery
	ListRules          *forwarderquery.ListRulesQuery
	GetMessage         *forwarderquery.GetMessageQuery
	ListMessages       *forwarderquery.ListMessagesQuery
	GetSettings        *forwarderquery.GetSettingsQuery
	ListLogs           *forwarderquery.ListLogsQuery
	ExportBackup       *forwarderquery.ExportBackupQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("forwarder: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		IngestFragment:    forwardercommand.NewIngestFragmentCommand(service),
		RetryJob:          forwardercommand.NewRetryJobCommand(service),
		CancelJob:         forwardercommand.NewCancelJobCommand(service),
		CancelAllRetrying: forwardercommand.NewCancelAllRetryingCommand(service),
		CreateRule:        forwardercommand.NewCreateRuleCommand(service),
		UpdateRule:        forwardercommand.NewUpdateRuleCommand(service),
		SetRuleEnabled:    forwardercommand.NewSetRuleEnabledCommand(service),
		DeleteRule:        forwardercommand.NewDeleteRuleCommand(service),
		TestDelivery:      forwardercommand.NewTestDeliveryCommand(service),
		UpdateSettings:    forwardercommand.NewUpdateSettingsCommand(service),
		ImportBackup:      forwardercommand.NewImportBackupCommand(service),
		ClearMessages:     forwardercommand.NewClearMessagesCommand(service),
		ClearLogs:         forwardercommand.NewClearLogsCommand(service),
	}
	facade.queries = Queries{
		GetJob:             forwarderquery.NewGetJobQuery(service),
		ListJobsForMessage: forwarderquery.NewListJobsForMessageQuery(service),
		ListJobsByStatus:   forwarderquery.NewListJobsByStatusQuery(service),
		GetRule:            forwarderquery.NewGetRuleQuery(service),
		ListRules:          forwarderquery.NewListRulesQuery(service),
		GetMessage:         forwarderquery.NewGetMessageQuery(service),
		ListMessages:       forwarderquery.NewListMessagesQuery(service),
		GetSettings:        forwarderquery.NewGetSettingsQuery(service),
		ListLogs:           forwarderquery.NewListLogsQuery(service),
		ExportBackup:       forwarderquery.NewExportBackupQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
