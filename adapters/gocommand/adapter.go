package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	forwardercommand "github.com/goliatone/go-forwarder/command"
	"github.com/goliatone/go-forwarder/core"
	forwarderquery "github.com/goliatone/go-forwarder/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so they can be dispatched asynchronously.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// DispatchWithResult runs a command and returns the value its handler stored.
func DispatchWithResult[T any, R any](ctx context.Context, msg T) (R, error) {
	collector := command.NewResult[R]()
	if err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		var zero R
		return zero, err
	}
	value, _ := collector.Load()
	return value, nil
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Bundle holds the dispatcher subscriptions for every forwarder command and
// query. Close releases them.
type Bundle struct {
	subscriptions []commanddispatcher.Subscription
}

func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.subscriptions)
}

func (b *Bundle) Close() {
	if b == nil {
		return
	}
	for _, subscription := range b.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

// RegisterForwarder registers and subscribes the forwarder command and query
// handlers against svc.
func RegisterForwarder(adapter *RegistryAdapter, svc core.ForwarderService, runnerOpts ...runner.Option) (*Bundle, error) {
	if svc == nil {
		return nil, fmt.Errorf("gocommand: forwarder service is required")
	}
	bundle := &Bundle{}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.IngestFragmentMessage](adapter, forwardercommand.NewIngestFragmentCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.RetryJobMessage](adapter, forwardercommand.NewRetryJobCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.CancelJobMessage](adapter, forwardercommand.NewCancelJobCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.CancelAllRetryingMessage](adapter, forwardercommand.NewCancelAllRetryingCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.CreateRuleMessage](adapter, forwardercommand.NewCreateRuleCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.UpdateRuleMessage](adapter, forwardercommand.NewUpdateRuleCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.SetRuleEnabledMessage](adapter, forwardercommand.NewSetRuleEnabledCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.DeleteRuleMessage](adapter, forwardercommand.NewDeleteRuleCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.TestDeliveryMessage](adapter, forwardercommand.NewTestDeliveryCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.UpdateSettingsMessage](adapter, forwardercommand.NewUpdateSettingsCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.ImportBackupMessage](adapter, forwardercommand.NewImportBackupCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.ClearMessagesMessage](adapter, forwardercommand.NewClearMessagesCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[forwardercommand.ClearLogsMessage](adapter, forwardercommand.NewClearLogsCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.GetJobMessage, core.Job](adapter, forwarderquery.NewGetJobQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.ListJobsForMessageMessage, []core.JobView](adapter, forwarderquery.NewListJobsForMessageQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.ListJobsByStatusMessage, []core.Job](adapter, forwarderquery.NewListJobsByStatusQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.GetRuleMessage, core.Rule](adapter, forwarderquery.NewGetRuleQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.ListRulesMessage, []core.Rule](adapter, forwarderquery.NewListRulesQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.GetMessageMessage, core.Message](adapter, forwarderquery.NewGetMessageQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.ListMessagesMessage, []core.Message](adapter, forwarderquery.NewListMessagesQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.GetSettingsMessage, core.Settings](adapter, forwarderquery.NewGetSettingsQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.ListLogsMessage, []core.LogEntry](adapter, forwarderquery.NewListLogsQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[forwarderquery.ExportBackupMessage, core.BackupDocument](adapter, forwarderquery.NewExportBackupQuery(svc), runnerOpts...)
		},
	}
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			bundle.Close()
			return nil, err
		}
		bundle.subscriptions = append(bundle.subscriptions, subscription)
	}
	return bundle, nil
}
