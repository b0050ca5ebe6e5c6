package query

import (
	"context"

	"github.com/goliatone/go-forwarder/core"
)

type JobReader interface {
	GetJob(ctx context.Context, jobID string) (core.Job, error)
	ListJobsForMessage(ctx context.Context, messageID string) ([]core.JobView, error)
	ListJobsByStatus(ctx context.Context, status core.JobStatus, limit int) ([]core.Job, error)
}

type RuleReader interface {
	GetRule(ctx context.Context, ruleID string) (core.Rule, error)
	ListRules(ctx context.Context) ([]core.Rule, error)
}

type MessageReader interface {
	GetMessage(ctx context.Context, messageID string) (core.Message, error)
	ListMessages(ctx context.Context, limit int) ([]core.Message, error)
}

type SettingsReader interface {
	GetSettings(ctx context.Context) (core.Settings, error)
}

type LogReader interface {
	ListLogs(ctx context.Context, limit int) ([]core.LogEntry, error)
}

type BackupExporter interface {
	ExportBackup(ctx context.Context) (core.BackupDocument, error)
}

type GetJobQuery struct {
	reader JobReader
}

func NewGetJobQuery(reader JobReader) *GetJobQuery {
	return &GetJobQuery{reader: reader}
}

func (q *GetJobQuery) Query(ctx context.Context, msg GetJobMessage) (core.Job, error) {
	if q == nil || q.reader == nil {
		return core.Job{}, core.NewDependencyError("query: job reader is required")
	}
	return q.reader.GetJob(ctx, msg.JobID)
}

type ListJobsForMessageQuery struct {
	reader JobReader
}

func NewListJobsForMessageQuery(reader JobReader) *ListJobsForMessageQuery {
	return &ListJobsForMessageQuery{reader: reader}
}

func (q *ListJobsForMessageQuery) Query(ctx context.Context, msg ListJobsForMessageMessage) ([]core.JobView, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: job reader is required")
	}
	return q.reader.ListJobsForMessage(ctx, msg.MessageID)
}

type ListJobsByStatusQuery struct {
	reader JobReader
}

func NewListJobsByStatusQuery(reader JobReader) *ListJobsByStatusQuery {
	return &ListJobsByStatusQuery{reader: reader}
}

func (q *ListJobsByStatusQuery) Query(ctx context.Context, msg ListJobsByStatusMessage) ([]core.Job, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: job reader is required")
	}
	return q.reader.ListJobsByStatus(ctx, msg.Status, msg.Limit)
}

type GetRuleQuery struct {
	reader RuleReader
}

func NewGetRuleQuery(reader RuleReader) *GetRuleQuery {
	return &GetRuleQuery{reader: reader}
}

func (q *GetRuleQuery) Query(ctx context.Context, msg GetRuleMessage) (core.Rule, error) {
	if q == nil || q.reader == nil {
		return core.Rule{}, core.NewDependencyError("query: rule reader is required")
	}
	return q.reader.GetRule(ctx, msg.RuleID)
}

type ListRulesQuery struct {
	reader RuleReader
}

func NewListRulesQuery(reader RuleReader) *ListRulesQuery {
	return &ListRulesQuery{reader: reader}
}

func (q *ListRulesQuery) Query(ctx context.Context, _ ListRulesMessage) ([]core.Rule, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: rule reader is required")
	}
	return q.reader.ListRules(ctx)
}

type GetMessageQuery struct {
	reader MessageReader
}

func NewGetMessageQuery(reader MessageReader) *GetMessageQuery {
	return &GetMessageQuery{reader: reader}
}

func (q *GetMessageQuery) Query(ctx context.Context, msg GetMessageMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, core.NewDependencyError("query: message reader is required")
	}
	return q.reader.GetMessage(ctx, msg.MessageID)
}

type ListMessagesQuery struct {
	reader MessageReader
}

func NewListMessagesQuery(reader MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) ([]core.Message, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: message reader is required")
	}
	return q.reader.ListMessages(ctx, msg.Limit)
}

type GetSettingsQuery struct {
	reader SettingsReader
}

func NewGetSettingsQuery(reader SettingsReader) *GetSettingsQuery {
	return &GetSettingsQuery{reader: reader}
}

func (q *GetSettingsQuery) Query(ctx context.Context, _ GetSettingsMessage) (core.Settings, error) {
	if q == nil || q.reader == nil {
		return core.Settings{}, core.NewDependencyError("query: settings reader is required")
	}
	return q.reader.GetSettings(ctx)
}

type ListLogsQuery struct {
	reader LogReader
}

func NewListLogsQuery(reader LogReader) *ListLogsQuery {
	return &ListLogsQuery{reader: reader}
}

func (q *ListLogsQuery) Query(ctx context.Context, msg ListLogsMessage) ([]core.LogEntry, error) {
	if q == nil || q.reader == nil {
		return nil, core.NewDependencyError("query: log reader is required")
	}
	return q.reader.ListLogs(ctx, msg.Limit)
}

type ExportBackupQuery struct {
	exporter BackupExporter
}

func NewExportBackupQuery(exporter BackupExporter) *ExportBackupQuery {
	return &ExportBackupQuery{exporter: exporter}
}

func (q *ExportBackupQuery) Query(ctx context.Context, _ ExportBackupMessage) (core.BackupDocument, error) {
	if q == nil || q.exporter == nil {
		return core.BackupDocument{}, core.NewDependencyError("query: backup exporter is required")
	}
	return q.exporter.ExportBackup(ctx)
}
