package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// recordingTransport answers every POST with the configured status and keeps
// the requests it saw.
type recordingTransport struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []WebhookRequest
	before   func(req WebhookRequest)
}

func (t *recordingTransport) Post(_ context.Context, req WebhookRequest) (WebhookResponse, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	status, body, err, before := t.status, t.body, t.err, t.before
	t.mu.Unlock()
	if before != nil {
		before(req)
	}
	if err != nil {
		return WebhookResponse{}, err
	}
	if status == 0 {
		status = 200
	}
	return WebhookResponse{StatusCode: status, Status: statusText(status), Body: []byte(body)}, nil
}

func (t *recordingTransport) snapshot() []WebhookRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WebhookRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

func (t *recordingTransport) setStatus(status int, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.body = body
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Status"
	}
}

type scheduledCall struct {
	jobID   string
	backoff time.Duration
	now     bool
}

// manualScheduler records scheduling requests without running anything.
type manualScheduler struct {
	mu        sync.Mutex
	calls     []scheduledCall
	cancelled []string
}

func (s *manualScheduler) ScheduleNow(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduledCall{jobID: jobID, now: true})
	return nil
}

func (s *manualScheduler) ScheduleAfter(_ context.Context, jobID string, backoff time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduledCall{jobID: jobID, backoff: backoff})
	return nil
}

func (s *manualScheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, jobID)
	return true
}

func (s *manualScheduler) snapshot() []scheduledCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scheduledCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// upperEncrypter is a reversible stand-in for the AES codec.
type upperEncrypter struct{}

func (upperEncrypter) EncryptPayload(plaintext string, mode string, key string, iv string) (string, error) {
	if len(key) != 16 {
		return "", NewConfigurationError(nil, "invalid key length", map[string]any{"length": len(key)})
	}
	return strings.ToUpper(mode) + ":" + plaintext, nil
}

type workerFixture struct {
	messages  *MemoryMessageStore
	rules     *MemoryRuleStore
	jobs      *MemoryJobStore
	logs      *MemoryLogStore
	settings  *MemorySettingsStore
	transport *recordingTransport
	scheduler *manualScheduler
	worker    *DeliveryWorker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		messages:  NewMemoryMessageStore(),
		rules:     NewMemoryRuleStore(),
		logs:      NewMemoryLogStore(),
		settings:  NewMemorySettingsStore(),
		transport: &recordingTransport{},
		scheduler: &manualScheduler{},
	}
	f.jobs = NewMemoryJobStore(f.rules)
	cfg := DefaultConfig()
	f.worker = NewDeliveryWorker(DeliveryWorkerConfig{
		BaseURL:           "https://push.example",
		Group:             DefaultDeliveryGroup,
		TitlePrefix:       DefaultTitlePrefix,
		MaxErrorBodyBytes: 16,
		Backoff:           cfg.Retry.Backoff(),
		DefaultSettings:   cfg.DefaultSettings(),
	}, DeliveryWorkerDeps{
		Jobs:      f.jobs,
		Rules:     f.rules,
		Messages:  f.messages,
		Settings:  f.settings,
		Transport: f.transport,
		Encrypter: upperEncrypter{},
		Scheduler: f.scheduler,
		Activity:  NewActivityLog(f.logs, stubLogger{}),
		Logger:    stubLogger{},
	})
	return f
}

// seedJob stores a message, an enabled rule and a PENDING job for them.
func (f *workerFixture) seedJob(t *testing.T, channel ChannelConfig) (Message, Rule, Job) {
	t.Helper()
	ctx := context.Background()
	message, err := f.messages.Insert(ctx, Message{Sender: "10086", Content: "your code is 4711"})
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}
	channel.Enabled = true
	rule, err := f.rules.Create(ctx, Rule{Name: "phone", Channel: channel})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	job, err := f.jobs.Create(ctx, Job{MessageID: message.ID, RuleID: rule.ID, Status: JobStatusPending})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return message, rule, job
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
