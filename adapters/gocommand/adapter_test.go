package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	forwardercommand "github.com/goliatone/go-forwarder/command"
	"github.com/goliatone/go-forwarder/core"
	forwarderquery "github.com/goliatone/go-forwarder/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
)

type okMessage struct{}

func (okMessage) Type() string { return "forwarder.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "forwarder.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "forwarder.test.dispatch" }

type queueMessage struct{}

func (queueMessage) Type() string { return "forwarder.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(forwardercommand.RetryJobMessage{}); err == nil {
		t.Fatalf("expected retry message without job id to fail")
	}
	if err := ValidateMessageContract(forwardercommand.RetryJobMessage{JobID: "job-1"}); err != nil {
		t.Fatalf("expected retry message to pass, got %v", err)
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	subscription, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer subscription.Unsubscribe()
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("forwarder.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterForwarder_RequiresService(t *testing.T) {
	if _, err := RegisterForwarder(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestRegisterForwarder_DispatchesCommandsAndQueries(t *testing.T) {
	svc, err := core.NewService(core.DefaultConfig(), core.WithLogger(glog.Nop()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() { _ = svc.Close(context.Background()) }()

	adapter := NewRegistryAdapter(command.NewRegistry())
	bundle, err := RegisterForwarder(adapter, svc)
	if err != nil {
		t.Fatalf("register forwarder: %v", err)
	}
	defer bundle.Close()
	if bundle.Len() != 23 {
		t.Fatalf("expected 23 subscriptions, got %d", bundle.Len())
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	rule, err := DispatchWithResult[forwardercommand.CreateRuleMessage, core.Rule](ctx, forwardercommand.CreateRuleMessage{
		Input: core.CreateRuleInput{
			Name:    "dispatch",
			Channel: core.ChannelConfig{Key: "abc", Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("dispatch create rule: %v", err)
	}
	if rule.ID == "" || rule.Name != "dispatch" {
		t.Fatalf("expected created rule result, got %+v", rule)
	}

	rules, err := Query[forwarderquery.ListRulesMessage, []core.Rule](ctx, forwarderquery.ListRulesMessage{})
	if err != nil {
		t.Fatalf("query rules: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != rule.ID {
		t.Fatalf("expected the dispatched rule, got %+v", rules)
	}

	if err := Dispatch(ctx, forwardercommand.DeleteRuleMessage{RuleID: rule.ID}); err != nil {
		t.Fatalf("dispatch delete rule: %v", err)
	}
	if _, err := Query[forwarderquery.GetRuleMessage, core.Rule](ctx, forwarderquery.GetRuleMessage{RuleID: rule.ID}); err == nil {
		t.Fatalf("expected deleted rule lookup to fail")
	}
}
