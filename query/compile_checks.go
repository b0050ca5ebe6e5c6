package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-forwarder/core"
)

var (
	_ gocmd.Querier[GetJobMessage, core.Job]                   = (*GetJobQuery)(nil)
	_ gocmd.Querier[ListJobsForMessageMessage, []core.JobView] = (*ListJobsForMessageQuery)(nil)
	_ gocmd.Querier[ListJobsByStatusMessage, []core.Job]       = (*ListJobsByStatusQuery)(nil)
	_ gocmd.Querier[GetRuleMessage, core.Rule]                 = (*GetRuleQuery)(nil)
	_ gocmd.Querier[ListRulesMessage, []core.Rule]             = (*ListRulesQuery)(nil)
	_ gocmd.Querier[GetMessageMessage, core.Message]           = (*GetMessageQuery)(nil)
	_ gocmd.Querier[ListMessagesMessage, []core.Message]       = (*ListMessagesQuery)(nil)
	_ gocmd.Querier[GetSettingsMessage, core.Settings]         = (*GetSettingsQuery)(nil)
	_ gocmd.Querier[ListLogsMessage, []core.LogEntry]          = (*ListLogsQuery)(nil)
	_ gocmd.Querier[ExportBackupMessage, core.BackupDocument]  = (*ExportBackupQuery)(nil)

	_ JobReader      = (core.ForwarderService)(nil)
	_ RuleReader     = (core.ForwarderService)(nil)
	_ MessageReader  = (core.ForwarderService)(nil)
	_ SettingsReader = (core.ForwarderService)(nil)
	_ LogReader      = (core.ForwarderService)(nil)
	_ BackupExporter = (core.ForwarderService)(nil)
)
