package forwarder_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	forwarder "github.com/goliatone/go-forwarder"
	"github.com/goliatone/go-forwarder/core"
	forwardermigrations "github.com/goliatone/go-forwarder/migrations"
	sqlstore "github.com/goliatone/go-forwarder/store/sql"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type compositionPersistenceConfig struct {
	server string
}

func (compositionPersistenceConfig) GetDebug() bool { return false }
func (compositionPersistenceConfig) GetDriver() string { return "sqlite3" }
func (c compositionPersistenceConfig) GetServer() string { return c.server }
func (compositionPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (compositionPersistenceConfig) GetOtelIdentifier() string { return "go-forwarder-composition" }

func TestDownstreamComposition_SQLiteStoresRetryAndRecover(t *testing.T) {
	ctx := context.Background()
	client := newCompositionClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}

	var failing atomic.Bool
	failing.Store(true)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := forwarder.DefaultConfig()
	cfg.Ingestion.ConcatTimeoutMS = 20
	svc, err := forwarder.NewService(cfg,
		forwarder.WithLogger(glog.Nop()),
		forwarder.WithPersistenceClient(client),
		forwarder.WithRepositoryFactory(factory),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(closeCtx)
	}()

	if _, err := svc.CreateRule(ctx, core.CreateRuleInput{
		Name:    "relay",
		Channel: core.ChannelConfig{Key: "k1", BaseURL: server.URL, Enabled: true},
	}); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	svc.OnRawFragment("10010", "data plan ", time.Time{})
	svc.OnRawFragment("10010", "renewed", time.Time{})
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	messages, err := svc.ListMessages(ctx, 0)
	if err != nil || len(messages) != 1 {
		t.Fatalf("expected one persisted message, got %d (%v)", len(messages), err)
	}
	if messages[0].Content != "data plan renewed" {
		t.Fatalf("expected reassembled content, got %q", messages[0].Content)
	}

	job := waitForJobStatus(t, svc, messages[0].ID, core.JobStatusFailedRetry)
	if job.Attempts != 1 || job.LastError == nil {
		t.Fatalf("expected one recorded attempt with error, got %+v", job)
	}

	failing.Store(false)
	if _, err := svc.RetryJob(ctx, job.ID); err != nil {
		t.Fatalf("retry job: %v", err)
	}
	job = waitForJobStatus(t, svc, messages[0].ID, core.JobStatusSuccess)
	if job.Attempts != 1 {
		t.Fatalf("expected attempts to stay at 1 after success, got %d", job.Attempts)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 relay hits, got %d", got)
	}

	entries, err := svc.ListLogs(ctx, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected activity log entries in sqlite store")
	}
}

func waitForJobStatus(t *testing.T, svc *forwarder.Service, messageID string, status core.JobStatus) core.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		views, err := svc.ListJobsForMessage(context.Background(), messageID)
		if err == nil && len(views) == 1 && views[0].Job.Status == status {
			return views[0].Job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job for message %s did not reach %s", messageID, status)
	return core.Job{}
}

func newCompositionClient(t *testing.T) *persistence.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:forwarder-composition-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(compositionPersistenceConfig{server: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := forwardermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect == forwardermigrations.DialectSQLite {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, forwardermigrations.WithDialects(forwardermigrations.DialectSQLite)); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
