package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-forwarder/core"
)

var (
	_ gocmd.Commander[IngestFragmentMessage]    = (*IngestFragmentCommand)(nil)
	_ gocmd.Commander[RetryJobMessage]          = (*RetryJobCommand)(nil)
	_ gocmd.Commander[CancelJobMessage]         = (*CancelJobCommand)(nil)
	_ gocmd.Commander[CancelAllRetryingMessage] = (*CancelAllRetryingCommand)(nil)
	_ gocmd.Commander[CreateRuleMessage]        = (*CreateRuleCommand)(nil)
	_ gocmd.Commander[UpdateRuleMessage]        = (*UpdateRuleCommand)(nil)
	_ gocmd.Commander[SetRuleEnabledMessage]    = (*SetRuleEnabledCommand)(nil)
	_ gocmd.Commander[DeleteRuleMessage]        = (*DeleteRuleCommand)(nil)
	_ gocmd.Commander[TestDeliveryMessage]      = (*TestDeliveryCommand)(nil)
	_ gocmd.Commander[UpdateSettingsMessage]    = (*UpdateSettingsCommand)(nil)
	_ gocmd.Commander[ImportBackupMessage]      = (*ImportBackupCommand)(nil)
	_ gocmd.Commander[ClearMessagesMessage]     = (*ClearMessagesCommand)(nil)
	_ gocmd.Commander[ClearLogsMessage]         = (*ClearLogsCommand)(nil)

	_ MutatingService = (core.ForwarderService)(nil)
)
