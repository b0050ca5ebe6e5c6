package adapters_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	forwarder "github.com/goliatone/go-forwarder"
	"github.com/goliatone/go-forwarder/adapters/gocommand"
	"github.com/goliatone/go-forwarder/adapters/gojob"
	"github.com/goliatone/go-forwarder/adapters/gologger"
	forwardercommand "github.com/goliatone/go-forwarder/command"
	"github.com/goliatone/go-forwarder/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	_ "github.com/mattn/go-sqlite3"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("forwarder", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueuer := &compatEnqueuer{}
	if err := gojob.NewQueueScheduler(enqueuer).ScheduleNow(ctx, "job_1"); err != nil {
		t.Fatalf("enqueue via queue scheduler: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != gojob.JobIDDeliver {
		t.Fatalf("expected go-job delivery message from queue scheduler")
	}
	if enqueuer.last.Parameters[gojob.ParamJobID] != "job_1" {
		t.Fatalf("expected forwarder job id parameter, got %+v", enqueuer.last.Parameters)
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("forwarder.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_IngestDispatchThroughQueueScheduler(t *testing.T) {
	var hits atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "queue.db")))
	if err != nil {
		t.Fatalf("open queue db: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()
	deliveryQueue, err := gojob.NewSQLQueue(context.Background(), db, "sqlite3")
	if err != nil {
		t.Fatalf("new sql queue: %v", err)
	}

	cfg := core.DefaultConfig()
	cfg.Ingestion.ConcatTimeoutMS = 10
	svc, err := forwarder.NewService(cfg,
		forwarder.WithLogger(glog.Nop()),
		forwarder.WithRetryScheduler(gojob.NewQueueScheduler(deliveryQueue)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() { _ = svc.Close(context.Background()) }()

	deliveryWorker, err := gojob.NewDeliveryWorker(deliveryQueue, svc.Executor(),
		gojob.WithRetryConfig(cfg.Retry),
		gojob.WithWorkerHook(gologger.NewJobLogHook(nil, glog.Nop())),
		gojob.WithIdleDelay(5*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new delivery worker: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := deliveryWorker.Start(ctx); err != nil {
		t.Fatalf("start delivery worker: %v", err)
	}

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	bundle, err := gocommand.RegisterForwarder(adapter, svc)
	if err != nil {
		t.Fatalf("register forwarder: %v", err)
	}
	defer bundle.Close()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, err := gocommand.DispatchWithResult[forwardercommand.CreateRuleMessage, core.Rule](ctx, forwardercommand.CreateRuleMessage{
		Input: core.CreateRuleInput{
			Name:    "phone",
			Channel: core.ChannelConfig{Key: "k1", BaseURL: relay.URL, Enabled: true},
		},
	}); err != nil {
		t.Fatalf("dispatch create rule: %v", err)
	}
	result, err := gocommand.DispatchWithResult[forwardercommand.IngestFragmentMessage, core.IngestResult](ctx, forwardercommand.IngestFragmentMessage{
		Sender:     "10086",
		Content:    "verification code 4821",
		CapturedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("dispatch ingest: %v", err)
	}
	if result != core.IngestResultStarted {
		t.Fatalf("expected started ingest, got %q", result)
	}

	deadline := time.Now().Add(3 * time.Second)
	var succeeded []core.Job
	for time.Now().Before(deadline) {
		succeeded, _ = svc.ListJobsByStatus(context.Background(), core.JobStatusSuccess, 10)
		if len(succeeded) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := deliveryWorker.Stop(context.Background()); err != nil {
		t.Fatalf("stop delivery worker: %v", err)
	}

	if len(succeeded) != 1 {
		t.Fatalf("expected one delivered job through the queue, got %+v", succeeded)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one relay hit, got %d", hits.Load())
	}
	var deadLetters int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + gojob.QueueDLQTable).Scan(&deadLetters); err != nil {
		t.Fatalf("count dead letters: %v", err)
	}
	if deadLetters != 0 {
		t.Fatalf("expected no dead letters, got %d", deadLetters)
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "forwarder.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	e.last = msg
	return queue.EnqueueReceipt{DispatchID: "dispatch_1", EnqueuedAt: time.Now().UTC()}, nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
