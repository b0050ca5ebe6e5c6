package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-forwarder/core"
	forwardermigrations "github.com/goliatone/go-forwarder/migrations"
	sqlstore "github.com/goliatone/go-forwarder/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-forwarder-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"forwarder_messages", "forwarder_rules", "forwarder_jobs", "forwarder_logs", "forwarder_settings"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestMessageStore_EnforceLimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	factory := newFactory(t)
	messages := factory.MessageStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const limit = 10
	for i := 0; i < limit+5; i++ {
		if _, err := messages.Insert(ctx, core.Message{
			Sender:     "10086",
			Content:    fmt.Sprintf("message %02d", i),
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("insert message %d: %v", i, err)
		}
	}

	removed, err := messages.EnforceLimit(ctx, limit)
	if err != nil {
		t.Fatalf("enforce limit: %v", err)
	}
	if removed != 5 {
		t.Fatalf("expected 5 removed, got %d", removed)
	}
	count, err := messages.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != limit {
		t.Fatalf("expected %d messages left, got %d", limit, count)
	}
	listed, err := messages.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listed[0].Content != "message 14" || listed[len(listed)-1].Content != "message 05" {
		t.Fatalf("expected newest first from 14 to 05, got %q .. %q", listed[0].Content, listed[len(listed)-1].Content)
	}

	if removed, err := messages.EnforceLimit(ctx, 0); err != nil || removed != 0 {
		t.Fatalf("expected unlimited to remove nothing, got %d/%v", removed, err)
	}
	if _, err := messages.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, core.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestRuleStore_CRUDAndEnabledFilter(t *testing.T) {
	ctx := context.Background()
	rules := newFactory(t).RuleStore()

	phone, err := rules.Create(ctx, core.Rule{
		Name: "phone",
		Channel: core.ChannelConfig{
			Key:        "phone-key",
			BaseURL:    "https://bark.example",
			Enabled:    true,
			Encryption: &core.EncryptionConfig{Mode: "CBC", Key: "0123456789abcdef", IV: "fedcba9876543210"},
		},
	})
	if err != nil {
		t.Fatalf("create phone: %v", err)
	}
	if _, err := rules.Create(ctx, core.Rule{Name: "muted", Channel: core.ChannelConfig{Key: "muted-key"}}); err != nil {
		t.Fatalf("create muted: %v", err)
	}

	enabled, err := rules.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != phone.ID {
		t.Fatalf("expected only phone enabled, got %+v", enabled)
	}
	if enabled[0].Channel.Encryption == nil || enabled[0].Channel.Encryption.IV != "fedcba9876543210" {
		t.Fatalf("expected encryption block to round trip, got %+v", enabled[0].Channel.Encryption)
	}

	phone.Name = "phone-renamed"
	phone.Channel.Enabled = false
	phone.Channel.Encryption = nil
	updated, err := rules.Update(ctx, phone)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "phone-renamed" || updated.Channel.Enabled || updated.Channel.Encryption != nil {
		t.Fatalf("unexpected updated rule %+v", updated)
	}

	if err := rules.Delete(ctx, phone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := rules.Delete(ctx, phone.ID); !errors.Is(err, core.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound on second delete, got %v", err)
	}
	if _, err := rules.Update(ctx, phone); !errors.Is(err, core.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound on update of deleted rule, got %v", err)
	}
}

func TestJobStore_UniquePairAndTransitions(t *testing.T) {
	ctx := context.Background()
	factory := newFactory(t)
	jobs := factory.JobStore()
	rule, err := factory.RuleStore().Create(ctx, core.Rule{Name: "phone", Channel: core.ChannelConfig{Key: "k", Enabled: true}})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	job, err := jobs.Create(ctx, core.Job{MessageID: "msg_1", RuleID: rule.ID})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != core.JobStatusPending || job.Attempts != 0 {
		t.Fatalf("expected pending job with zero attempts, got %+v", job)
	}
	if _, err := jobs.Create(ctx, core.Job{MessageID: "msg_1", RuleID: rule.ID}); !errors.Is(err, core.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}

	failure := "HTTP 500 Internal Server Error"
	attemptedAt := time.Now().UTC()
	failed, err := jobs.Transition(ctx, core.JobTransition{
		JobID:             job.ID,
		From:              []core.JobStatus{core.JobStatusPending},
		To:                core.JobStatusFailedRetry,
		IncrementAttempts: true,
		LastError:         &failure,
		AttemptedAt:       &attemptedAt,
	})
	if err != nil {
		t.Fatalf("transition to failed_retry: %v", err)
	}
	if failed.Attempts != 1 || failed.LastError == nil || *failed.LastError != failure || failed.LastAttemptAt == nil {
		t.Fatalf("unexpected failed job %+v", failed)
	}

	_, err = jobs.Transition(ctx, core.JobTransition{
		JobID: job.ID,
		From:  []core.JobStatus{core.JobStatusPending},
		To:    core.JobStatusSuccess,
	})
	if !errors.Is(err, core.ErrJobStateConflict) {
		t.Fatalf("expected ErrJobStateConflict, got %v", err)
	}
	staleAttempts := 0
	_, err = jobs.Transition(ctx, core.JobTransition{
		JobID:             job.ID,
		From:              []core.JobStatus{core.JobStatusFailedRetry},
		To:                core.JobStatusSuccess,
		IncrementAttempts: true,
		ExpectAttempts:    &staleAttempts,
	})
	if !errors.Is(err, core.ErrJobStateConflict) {
		t.Fatalf("expected ErrJobStateConflict for stale attempts, got %v", err)
	}
	if _, err := jobs.Transition(ctx, core.JobTransition{JobID: "job_missing", To: core.JobStatusSuccess}); !errors.Is(err, core.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	succeeded, err := jobs.Transition(ctx, core.JobTransition{
		JobID:             job.ID,
		From:              []core.JobStatus{core.JobStatusFailedRetry},
		To:                core.JobStatusSuccess,
		IncrementAttempts: true,
		ClearError:        true,
	})
	if err != nil {
		t.Fatalf("transition to success: %v", err)
	}
	if succeeded.Attempts != 2 || succeeded.LastError != nil {
		t.Fatalf("expected attempts=2 and cleared error, got %+v", succeeded)
	}

	views, err := jobs.ListByMessage(ctx, "msg_1")
	if err != nil {
		t.Fatalf("list by message: %v", err)
	}
	if len(views) != 1 || views[0].RuleName != "phone" {
		t.Fatalf("expected one view named phone, got %+v", views)
	}
}

func TestJobStore_CancelAllRetrying(t *testing.T) {
	ctx := context.Background()
	jobs := newFactory(t).JobStore()

	for i, status := range []core.JobStatus{core.JobStatusFailedRetry, core.JobStatusFailedRetry, core.JobStatusSuccess} {
		if _, err := jobs.Create(ctx, core.Job{MessageID: fmt.Sprintf("msg_%d", i), RuleID: "rule_1", Status: status}); err != nil {
			t.Fatalf("seed job %d: %v", i, err)
		}
	}
	cancelled, err := jobs.CancelAllRetrying(ctx)
	if err != nil {
		t.Fatalf("cancel all: %v", err)
	}
	if cancelled != 2 {
		t.Fatalf("expected 2 cancelled, got %d", cancelled)
	}
	retrying, err := jobs.ListByStatus(ctx, core.JobStatusFailedRetry, 0)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(retrying) != 0 {
		t.Fatalf("expected no retrying jobs left, got %d", len(retrying))
	}
	done, _ := jobs.ListByStatus(ctx, core.JobStatusCancelled, 1)
	if len(done) != 1 {
		t.Fatalf("expected limit to cap cancelled listing, got %d", len(done))
	}
}

func TestSettingsAndLogStores(t *testing.T) {
	ctx := context.Background()
	factory := newFactory(t)
	settings := factory.SettingsStore()

	defaults := core.Settings{RetryOnFailure: true, MessageLimit: 100}
	loaded, err := settings.Load(ctx, defaults)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if loaded != defaults {
		t.Fatalf("expected defaults before first save, got %+v", loaded)
	}
	for _, next := range []core.Settings{{RetryOnFailure: false, MessageLimit: 5}, {RetryOnFailure: true, MessageLimit: 0}} {
		if _, err := settings.Save(ctx, next); err != nil {
			t.Fatalf("save: %v", err)
		}
		loaded, err = settings.Load(ctx, defaults)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded != next {
			t.Fatalf("expected %+v, got %+v", next, loaded)
		}
	}

	logs := factory.LogStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := logs.Append(ctx, core.LogEntry{Message: fmt.Sprintf("entry %d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := logs.List(ctx, 2)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "entry 2" {
		t.Fatalf("expected newest two entries, got %+v", entries)
	}
	if err := logs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if entries, _ := logs.List(ctx, 0); len(entries) != 0 {
		t.Fatalf("expected no entries after clear, got %d", len(entries))
	}
}

func TestCachedRuleStore_InvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithRuleCache(newTestCacheService(t)))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	rules := factory.RuleStore()
	if _, ok := rules.(*sqlstore.CachedRuleStore); !ok {
		t.Fatalf("expected cached rule store, got %T", rules)
	}

	rule, err := rules.Create(ctx, core.Rule{Name: "phone", Channel: core.ChannelConfig{Key: "k", Enabled: true}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enabled, err := rules.ListEnabled(ctx)
	if err != nil || len(enabled) != 1 {
		t.Fatalf("expected one enabled rule, got %d/%v", len(enabled), err)
	}

	if _, err := rules.Get(ctx, rule.ID); err != nil {
		t.Fatalf("warm get: %v", err)
	}
	if _, err := client.DB().NewRaw("UPDATE forwarder_rules SET name = ? WHERE id = ?", "bypassed", rule.ID).Exec(ctx); err != nil {
		t.Fatalf("raw update: %v", err)
	}
	cached, err := rules.Get(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cached.Name != "phone" {
		t.Fatalf("expected cached name phone, got %q", cached.Name)
	}

	rule.Channel.Enabled = false
	if _, err := rules.Update(ctx, rule); err != nil {
		t.Fatalf("update: %v", err)
	}
	enabled, err = rules.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list enabled after update: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("expected update to invalidate enabled snapshot, got %d", len(enabled))
	}
	fresh, err := rules.Get(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if fresh.Name != "phone" || fresh.Channel.Enabled {
		t.Fatalf("expected evicted read to reflect the update, got %+v", fresh)
	}

	if err := rules.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if _, err := rules.Get(ctx, rule.ID); !errors.Is(err, core.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound after delete all, got %v", err)
	}
}

type recordingTransport struct {
	mu       sync.Mutex
	requests []core.WebhookRequest
}

func (t *recordingTransport) Post(_ context.Context, req core.WebhookRequest) (core.WebhookResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	return core.WebhookResponse{StatusCode: 200, Status: "OK"}, nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

func TestService_DeliversThroughSQLStores(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	transport := &recordingTransport{}
	svc, err := core.NewService(
		core.Config{Ingestion: core.IngestionConfig{ConcatTimeoutMS: 20}},
		core.WithRepositoryFactory(sqlstore.NewRepositoryFactory()),
		core.WithPersistenceClient(client),
		core.WithWebhookTransport(transport),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(closeCtx)
	}()

	if _, err := svc.CreateRule(ctx, core.CreateRuleInput{Name: "phone", Channel: core.ChannelConfig{Key: "phone-key", Enabled: true}}); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	svc.OnRawFragment("10086", "your code is 4821", time.Time{})
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	messages, err := svc.ListMessages(ctx, 0)
	if err != nil || len(messages) != 1 {
		t.Fatalf("expected one persisted message, got %d/%v", len(messages), err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		views, err := svc.ListJobsForMessage(ctx, messages[0].ID)
		if err == nil && len(views) == 1 && views[0].Job.Status == core.JobStatusSuccess {
			if transport.count() != 1 {
				t.Fatalf("expected one webhook request, got %d", transport.count())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job did not reach SUCCESS through sql stores")
}

func newFactory(t *testing.T) *sqlstore.RepositoryFactory {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	t.Cleanup(cleanup)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:forwarder-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = forwardermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != forwardermigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, forwardermigrations.WithDialects(forwardermigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
