package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type MessageStore interface {
	Insert(ctx context.Context, message Message) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	// List returns the newest messages first. A limit <= 0 returns every row.
	List(ctx context.Context, limit int) ([]Message, error)
	// EnforceLimit keeps the newest limit rows by receive time and returns the
	// number removed. A limit <= 0 means unlimited and removes nothing.
	EnforceLimit(ctx context.Context, limit int) (int, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

type RuleStore interface {
	Create(ctx context.Context, rule Rule) (Rule, error)
	Update(ctx context.Context, rule Rule) (Rule, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Rule, error)
	List(ctx context.Context) ([]Rule, error)
	ListEnabled(ctx context.Context) ([]Rule, error)
	DeleteAll(ctx context.Context) error
}

// JobTransition is a conditional single-row update. The row is only written
// when its persisted status is one of From.
type JobTransition struct {
	JobID             string
	From              []JobStatus
	To                JobStatus
	IncrementAttempts bool
	ResetAttempts     bool
	LastError         *string
	ClearError        bool
	AttemptedAt       *time.Time
	// ExpectAttempts, when set, only matches a row whose attempt counter
	// still holds this value.
	ExpectAttempts *int
}

type JobStore interface {
	// Create returns ErrDuplicateJob when a job already exists for the
	// (message, rule) pair.
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	// Transition applies a conditional update. It returns ErrJobNotFound for a
	// missing row and ErrJobStateConflict when the status or attempts
	// precondition fails.
	Transition(ctx context.Context, transition JobTransition) (Job, error)
	ListByMessage(ctx context.Context, messageID string) ([]JobView, error)
	ListByStatus(ctx context.Context, status JobStatus, limit int) ([]Job, error)
	// CancelAllRetrying moves every FAILED_RETRY job to CANCELLED.
	CancelAllRetrying(ctx context.Context) (int, error)
}

type LogStore interface {
	Append(ctx context.Context, entry LogEntry) (LogEntry, error)
	List(ctx context.Context, limit int) ([]LogEntry, error)
	Clear(ctx context.Context) error
}

type SettingsStore interface {
	// Load returns defaults when nothing has been saved yet.
	Load(ctx context.Context, defaults Settings) (Settings, error)
	Save(ctx context.Context, settings Settings) (Settings, error)
}

// StoreProvider is implemented by repository factories that can hand out all
// of the forwarding stores at once.
type StoreProvider interface {
	MessageStore() MessageStore
	RuleStore() RuleStore
	JobStore() JobStore
	LogStore() LogStore
	SettingsStore() SettingsStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// RetryScheduler re-invokes the delivery worker for a job. Implementations
// may invoke the same job id more than once; the worker tolerates that.
type RetryScheduler interface {
	ScheduleNow(ctx context.Context, jobID string) error
	ScheduleAfter(ctx context.Context, jobID string, backoff time.Duration) error
}

type JobExecutor interface {
	Execute(ctx context.Context, jobID string) (DeliveryOutcome, error)
}

type JobExecutorFunc func(ctx context.Context, jobID string) (DeliveryOutcome, error)

func (f JobExecutorFunc) Execute(ctx context.Context, jobID string) (DeliveryOutcome, error) {
	return f(ctx, jobID)
}

type PayloadEncrypter interface {
	EncryptPayload(plaintext string, mode string, key string, iv string) (string, error)
}

type WebhookRequest struct {
	URL         string
	ContentType string
	Body        []byte
	Headers     map[string]string
}

type WebhookResponse struct {
	StatusCode int
	Status     string
	Body       []byte
}

type WebhookTransport interface {
	Post(ctx context.Context, req WebhookRequest) (WebhookResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// ForwarderService is the surface consumed by the command, query and HTTP
// layers.
type ForwarderService interface {
	OnRawFragment(sender string, content string, capturedAt time.Time) IngestResult
	Flush(ctx context.Context) error

	ExecuteJob(ctx context.Context, jobID string) (DeliveryOutcome, error)
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobsForMessage(ctx context.Context, messageID string) ([]JobView, error)
	ListJobsByStatus(ctx context.Context, status JobStatus, limit int) ([]Job, error)
	RetryJob(ctx context.Context, jobID string) (Job, error)
	CancelJob(ctx context.Context, jobID string) (Job, error)
	CancelAllRetryJobs(ctx context.Context) (int, error)

	CreateRule(ctx context.Context, input CreateRuleInput) (Rule, error)
	UpdateRule(ctx context.Context, input UpdateRuleInput) (Rule, error)
	SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error
	GetRule(ctx context.Context, ruleID string) (Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)

	GetMessage(ctx context.Context, messageID string) (Message, error)
	ListMessages(ctx context.Context, limit int) ([]Message, error)
	ClearMessages(ctx context.Context) error

	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, settings Settings) (Settings, error)
	ListLogs(ctx context.Context, limit int) ([]LogEntry, error)
	ClearLogs(ctx context.Context) error

	TestDelivery(ctx context.Context, channel ChannelConfig, title string, body string) error
	ExportBackup(ctx context.Context) (BackupDocument, error)
	ImportBackup(ctx context.Context, doc BackupDocument, strategy ImportStrategy) (ImportResult, error)
}
