package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service wires the forwarding pipeline: ingestion gate, dispatcher, delivery
// worker and retry scheduler, plus the rule, message, job, log and settings
// operations exposed to outer surfaces.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	messageStore      MessageStore
	ruleStore         RuleStore
	jobStore          JobStore
	logStore          LogStore
	settingsStore     SettingsStore
	retryScheduler    RetryScheduler
	webhookTransport  WebhookTransport
	payloadEncrypter  PayloadEncrypter
	activity          *ActivityLog
	gate              *IngestionGate
	dispatcher        *JobDispatcher
	worker            *DeliveryWorker
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	MessageStore      MessageStore
	RuleStore         RuleStore
	JobStore          JobStore
	LogStore          LogStore
	SettingsStore     SettingsStore
	RetryScheduler    RetryScheduler
	WebhookTransport  WebhookTransport
	PayloadEncrypter  PayloadEncrypter
}

type schedulerBinder interface {
	Bind(executor JobExecutor)
}

type schedulerCanceler interface {
	Cancel(jobID string) bool
}

type schedulerCloser interface {
	Close(ctx context.Context) error
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("forwarder", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("forwarder"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if err := resolveStores(&builder); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.messageStore == nil {
		builder.messageStore = NewMemoryMessageStore()
	}
	if builder.ruleStore == nil {
		builder.ruleStore = NewMemoryRuleStore()
	}
	if builder.jobStore == nil {
		builder.jobStore = NewMemoryJobStore(builder.ruleStore)
	}
	if builder.logStore == nil {
		builder.logStore = NewMemoryLogStore()
	}
	if builder.settingsStore == nil {
		builder.settingsStore = NewMemorySettingsStore()
	}
	if builder.retryScheduler == nil {
		builder.retryScheduler = NewTimerRetryScheduler(nil, finalConfig.Retry.Workers, logger)
	}

	activity := NewActivityLog(builder.logStore, logger)
	activity.now = builder.clock

	worker := NewDeliveryWorker(DeliveryWorkerConfig{
		BaseURL:           finalConfig.Delivery.BaseURL,
		Group:             finalConfig.Delivery.Group,
		TitlePrefix:       finalConfig.Delivery.TitlePrefix,
		MaxErrorBodyBytes: finalConfig.Delivery.MaxErrorBodyBytes,
		Backoff:           finalConfig.Retry.Backoff(),
		DefaultSettings:   finalConfig.DefaultSettings(),
	}, DeliveryWorkerDeps{
		Jobs:      builder.jobStore,
		Rules:     builder.ruleStore,
		Messages:  builder.messageStore,
		Settings:  builder.settingsStore,
		Transport: builder.webhookTransport,
		Encrypter: builder.payloadEncrypter,
		Scheduler: builder.retryScheduler,
		Activity:  activity,
		Logger:    logger,
		Now:       builder.clock,
	})
	if binder, ok := builder.retryScheduler.(schedulerBinder); ok {
		binder.Bind(worker)
	}

	dispatcher := NewJobDispatcher(builder.ruleStore, builder.jobStore, builder.retryScheduler, activity, logger)
	dispatcher.now = builder.clock

	svc := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		messageStore:      builder.messageStore,
		ruleStore:         builder.ruleStore,
		jobStore:          builder.jobStore,
		logStore:          builder.logStore,
		settingsStore:     builder.settingsStore,
		retryScheduler:    builder.retryScheduler,
		webhookTransport:  builder.webhookTransport,
		payloadEncrypter:  builder.payloadEncrypter,
		activity:          activity,
		dispatcher:        dispatcher,
		worker:            worker,
		now:               builder.clock,
	}
	svc.gate = NewIngestionGate(IngestionGateConfig{
		DebounceWindow: finalConfig.Ingestion.DebounceWindow(),
		ConcatTimeout:  finalConfig.Ingestion.ConcatTimeout(),
		MaxSignatures:  finalConfig.Ingestion.MaxSignatures,
	}, svc.commitMessage, WithIngestionClock(builder.clock), WithIngestionLogger(logger))
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func resolveStores(builder *serviceBuilder) error {
	if builder.repositoryFactory == nil {
		return nil
	}
	var provider StoreProvider
	if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
		built, err := storeFactory.BuildStores(builder.persistenceClient)
		if err != nil {
			return err
		}
		provider = built
	} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
		provider = direct
	}
	if provider == nil {
		return nil
	}
	if builder.messageStore == nil {
		builder.messageStore = provider.MessageStore()
	}
	if builder.ruleStore == nil {
		builder.ruleStore = provider.RuleStore()
	}
	if builder.jobStore == nil {
		builder.jobStore = provider.JobStore()
	}
	if builder.logStore == nil {
		builder.logStore = provider.LogStore()
	}
	if builder.settingsStore == nil {
		builder.settingsStore = provider.SettingsStore()
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		MessageStore:      s.messageStore,
		RuleStore:         s.ruleStore,
		JobStore:          s.jobStore,
		LogStore:          s.logStore,
		SettingsStore:     s.settingsStore,
		RetryScheduler:    s.retryScheduler,
		WebhookTransport:  s.webhookTransport,
		PayloadEncrypter:  s.payloadEncrypter,
	}
}

// Executor returns the delivery worker, for durable schedulers that consume
// job ids outside the service.
func (s *Service) Executor() JobExecutor {
	if s == nil {
		return nil
	}
	return s.worker
}

// OnRawFragment feeds one captured fragment to the ingestion gate.
func (s *Service) OnRawFragment(sender string, content string, capturedAt time.Time) IngestResult {
	if s == nil || s.gate == nil {
		return IngestResultRejected
	}
	return s.gate.OnRawFragment(sender, content, capturedAt)
}

// Flush commits all open reassembly sessions and waits for the commits.
func (s *Service) Flush(ctx context.Context) error {
	if s == nil || s.gate == nil {
		return nil
	}
	return s.gate.Flush(ctx)
}

// Close flushes ingestion and then drains the scheduler when it supports it.
func (s *Service) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.gate != nil {
		if err := s.gate.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if closer, ok := s.retryScheduler.(schedulerCloser); ok {
		if err := closer.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResumeJobs re-schedules persisted work after a restart. PENDING jobs run now
// and FAILED_RETRY jobs wait out whatever is left of their backoff.
func (s *Service) ResumeJobs(ctx context.Context) (resumed int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["resumed"] = resumed
		s.observeOperation(ctx, startedAt, "resume_jobs", err, fields)
	}()

	pending, err := s.jobStore.ListByStatus(ctx, JobStatusPending, 0)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	retrying, err := s.jobStore.ListByStatus(ctx, JobStatusFailedRetry, 0)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	var errs []error
	for _, job := range pending {
		if scheduleErr := s.retryScheduler.ScheduleNow(ctx, job.ID); scheduleErr != nil {
			errs = append(errs, fmt.Errorf("schedule job %s: %w", job.ID, scheduleErr))
			continue
		}
		resumed++
	}
	backoff := s.config.Retry.Backoff()
	now := s.now()
	for _, job := range retrying {
		delay := backoff.NextDelay(job.Attempts)
		if job.LastAttemptAt != nil {
			delay -= now.Sub(*job.LastAttemptAt)
		}
		if delay < 0 {
			delay = 0
		}
		if scheduleErr := s.retryScheduler.ScheduleAfter(ctx, job.ID, delay); scheduleErr != nil {
			errs = append(errs, fmt.Errorf("schedule job %s: %w", job.ID, scheduleErr))
			continue
		}
		resumed++
	}
	if resumed > 0 {
		s.activity.Record(ctx, "[Worker] Resumed %d job(s) after restart", resumed)
	}
	if len(errs) > 0 {
		err = s.mapError(errors.Join(errs...))
		return resumed, err
	}
	return resumed, nil
}

func (s *Service) commitMessage(ctx context.Context, sender string, content string, receivedAt time.Time) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"sender": sender}
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "commit_message", err, fields)
	}()

	message, err := s.messageStore.Insert(ctx, Message{
		Sender:     sender,
		Content:    content,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		return
	}
	fields["message_id"] = message.ID
	s.activity.Record(ctx, "[Gate] Committed message %s from %s (%d chars)", message.ID, sender, len(content))

	settings := s.loadSettings(ctx)
	if settings.MessageLimit > 0 {
		removed, limitErr := s.messageStore.EnforceLimit(ctx, settings.MessageLimit)
		if limitErr != nil {
			s.logWithLevel(ctx, "warn", "enforce message limit failed", map[string]any{"error": limitErr.Error()})
		} else if removed > 0 {
			s.activity.Record(ctx, "[Store] Enforced message limit of %d, removed %d", settings.MessageLimit, removed)
		}
	}

	jobs, err := s.dispatcher.Dispatch(ctx, message)
	fields["jobs"] = len(jobs)
}

// ExecuteJob runs the delivery worker once for a job.
func (s *Service) ExecuteJob(ctx context.Context, jobID string) (outcome DeliveryOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"job_id": jobID}
	defer func() {
		fields["result"] = string(outcome.Result)
		s.observeOperation(ctx, startedAt, "execute_job", err, fields)
	}()
	if s == nil || s.worker == nil {
		return DeliveryOutcome{JobID: jobID}, fmt.Errorf("core: delivery worker is not configured")
	}
	outcome, err = s.worker.Execute(ctx, jobID)
	if err != nil {
		err = s.mapError(err)
	}
	return outcome, err
}

func (s *Service) GetJob(ctx context.Context, jobID string) (Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, s.mapError(validationError("job_id", "job id is required"))
	}
	job, err := s.jobStore.Get(ctx, jobID)
	if err != nil {
		return Job{}, s.mapError(err)
	}
	return job, nil
}

func (s *Service) ListJobsForMessage(ctx context.Context, messageID string) ([]JobView, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, s.mapError(validationError("message_id", "message id is required"))
	}
	views, err := s.jobStore.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return views, nil
}

func (s *Service) ListJobsByStatus(ctx context.Context, status JobStatus, limit int) ([]Job, error) {
	parsed, err := ParseJobStatus(string(status))
	if err != nil {
		return nil, s.mapError(validationError("status", err.Error()))
	}
	jobs, err := s.jobStore.ListByStatus(ctx, parsed, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return jobs, nil
}

// RetryJob moves a cancelled job back to PENDING with a clean slate and runs
// it now. A FAILED_RETRY job is run now without waiting for its backoff.
func (s *Service) RetryJob(ctx context.Context, jobID string) (job Job, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"job_id": jobID}
	defer func() {
		s.observeOperation(ctx, startedAt, "retry_job", err, fields)
	}()

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	switch current.Status {
	case JobStatusCancelled:
		next := current
		if err = next.TransitionTo(JobStatusPending, s.now()); err != nil {
			err = s.mapError(err)
			return Job{}, err
		}
		job, err = s.jobStore.Transition(ctx, JobTransition{
			JobID:         current.ID,
			From:          []JobStatus{JobStatusCancelled},
			To:            JobStatusPending,
			ResetAttempts: true,
			ClearError:    true,
		})
		if err != nil {
			err = s.mapError(err)
			return Job{}, err
		}
	case JobStatusFailedRetry:
		job = current
	default:
		err = s.mapError(fmt.Errorf("%w: %s -> %s", ErrInvalidJobStatusTransition, current.Status, JobStatusPending))
		return Job{}, err
	}

	if canceler, ok := s.retryScheduler.(schedulerCanceler); ok {
		canceler.Cancel(job.ID)
	}
	if err = s.retryScheduler.ScheduleNow(ctx, job.ID); err != nil {
		err = s.mapError(err)
		return job, err
	}
	s.activity.Record(ctx, "[User] Retry requested for job %s", job.ID)
	return job, nil
}

// CancelJob is idempotent for jobs that are already cancelled. Terminal jobs
// reject the cancel.
func (s *Service) CancelJob(ctx context.Context, jobID string) (job Job, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"job_id": jobID}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_job", err, fields)
	}()

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if current.Status == JobStatusCancelled {
		return current, nil
	}
	if !current.Status.Cancellable() {
		err = s.mapError(fmt.Errorf("%w: %s -> %s", ErrInvalidJobStatusTransition, current.Status, JobStatusCancelled))
		return Job{}, err
	}
	job, err = s.jobStore.Transition(ctx, JobTransition{
		JobID: current.ID,
		From:  []JobStatus{JobStatusPending, JobStatusFailedRetry},
		To:    JobStatusCancelled,
	})
	if err != nil {
		err = s.mapError(err)
		return Job{}, err
	}
	if canceler, ok := s.retryScheduler.(schedulerCanceler); ok {
		canceler.Cancel(job.ID)
	}
	s.activity.Record(ctx, "[User] Cancelled job %s", job.ID)
	return job, nil
}

func (s *Service) CancelAllRetryJobs(ctx context.Context) (count int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["cancelled"] = count
		s.observeOperation(ctx, startedAt, "cancel_all_retry_jobs", err, fields)
	}()

	retrying, err := s.jobStore.ListByStatus(ctx, JobStatusFailedRetry, 0)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	count, err = s.jobStore.CancelAllRetrying(ctx)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	if canceler, ok := s.retryScheduler.(schedulerCanceler); ok {
		for _, job := range retrying {
			canceler.Cancel(job.ID)
		}
	}
	s.activity.Record(ctx, "[User] Cancelled %d retrying job(s)", count)
	return count, nil
}

func (s *Service) CreateRule(ctx context.Context, input CreateRuleInput) (rule Rule, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"name": input.Name, "channel_key": input.Channel.Key}
	defer func() {
		fields["rule_id"] = rule.ID
		s.observeOperation(ctx, startedAt, "create_rule", err, fields)
	}()

	if err = validateRule(input.Name, input.Channel); err != nil {
		err = s.mapError(err)
		return Rule{}, err
	}
	now := s.now()
	rule, err = s.ruleStore.Create(ctx, Rule{
		Name:      strings.TrimSpace(input.Name),
		Channel:   normalizeChannel(input.Channel),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		err = s.mapError(err)
		return Rule{}, err
	}
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, input UpdateRuleInput) (rule Rule, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"rule_id": input.ID}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_rule", err, fields)
	}()

	if strings.TrimSpace(input.ID) == "" {
		err = s.mapError(validationError("id", "rule id is required"))
		return Rule{}, err
	}
	if err = validateRule(input.Name, input.Channel); err != nil {
		err = s.mapError(err)
		return Rule{}, err
	}
	existing, err := s.ruleStore.Get(ctx, input.ID)
	if err != nil {
		err = s.mapError(err)
		return Rule{}, err
	}
	existing.Name = strings.TrimSpace(input.Name)
	existing.Channel = normalizeChannel(input.Channel)
	existing.UpdatedAt = s.now()
	rule, err = s.ruleStore.Update(ctx, existing)
	if err != nil {
		err = s.mapError(err)
		return Rule{}, err
	}
	return rule, nil
}

// SetRuleEnabled only affects messages committed afterwards.
func (s *Service) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (rule Rule, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"rule_id": ruleID, "enabled": enabled}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_rule_enabled", err, fields)
	}()

	existing, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return Rule{}, err
	}
	existing.Channel.Enabled = enabled
	existing.UpdatedAt = s.now()
	rule, err = s.ruleStore.Update(ctx, existing)
	if err != nil {
		err = s.mapError(err)
		return Rule{}, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, ruleID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"rule_id": ruleID}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_rule", err, fields)
	}()

	if strings.TrimSpace(ruleID) == "" {
		err = s.mapError(validationError("id", "rule id is required"))
		return err
	}
	if err = s.ruleStore.Delete(ctx, strings.TrimSpace(ruleID)); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) GetRule(ctx context.Context, ruleID string) (Rule, error) {
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return Rule{}, s.mapError(validationError("id", "rule id is required"))
	}
	rule, err := s.ruleStore.Get(ctx, ruleID)
	if err != nil {
		return Rule{}, s.mapError(err)
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.ruleStore.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return rules, nil
}

func (s *Service) GetMessage(ctx context.Context, messageID string) (Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return Message{}, s.mapError(validationError("id", "message id is required"))
	}
	message, err := s.messageStore.Get(ctx, messageID)
	if err != nil {
		return Message{}, s.mapError(err)
	}
	return message, nil
}

func (s *Service) ListMessages(ctx context.Context, limit int) ([]Message, error) {
	messages, err := s.messageStore.List(ctx, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return messages, nil
}

// ClearMessages deletes every message. Jobs are kept as the audit trail.
func (s *Service) ClearMessages(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "clear_messages", err, nil)
	}()
	if err = s.messageStore.DeleteAll(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	s.activity.Record(ctx, "[User] Cleared all messages")
	return nil
}

func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	settings, err := s.settingsStore.Load(ctx, s.config.DefaultSettings())
	if err != nil {
		return Settings{}, s.mapError(err)
	}
	return settings, nil
}

// UpdateSettings persists the toggles and applies a tightened message limit
// right away.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) (saved Settings, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"retry_on_failure": settings.RetryOnFailure,
		"message_limit":    settings.MessageLimit,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_settings", err, fields)
	}()

	if settings.MessageLimit <= 0 {
		settings.MessageLimit = -1
	}
	saved, err = s.settingsStore.Save(ctx, settings)
	if err != nil {
		err = s.mapError(err)
		return Settings{}, err
	}
	if saved.MessageLimit > 0 {
		if _, limitErr := s.messageStore.EnforceLimit(ctx, saved.MessageLimit); limitErr != nil {
			err = s.mapError(limitErr)
			return saved, err
		}
	}
	return saved, nil
}

func (s *Service) ListLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	entries, err := s.logStore.List(ctx, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return entries, nil
}

func (s *Service) ClearLogs(ctx context.Context) error {
	if err := s.logStore.Clear(ctx); err != nil {
		return s.mapError(err)
	}
	return nil
}

// TestDelivery sends one payload for a channel without creating a job.
func (s *Service) TestDelivery(ctx context.Context, channel ChannelConfig, title string, body string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"channel_key": channel.Key, "base_url": channel.BaseURL}
	defer func() {
		s.observeOperation(ctx, startedAt, "test_delivery", err, fields)
	}()

	if strings.TrimSpace(title) == "" {
		title = s.config.Delivery.TitlePrefix + "test delivery"
	}
	if body == "" {
		body = "This is a test message."
	}
	payload := WebhookPayload{Body: body, Title: title, Group: s.worker.cfg.Group}
	if err = s.worker.Deliver(ctx, normalizeChannel(channel), payload); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) ExportBackup(ctx context.Context) (doc BackupDocument, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["rules"] = len(doc.Rules)
		fields["messages"] = len(doc.Messages)
		s.observeOperation(ctx, startedAt, "export_backup", err, fields)
	}()

	rules, err := s.ruleStore.List(ctx)
	if err != nil {
		err = s.mapError(err)
		return BackupDocument{}, err
	}
	messages, err := s.messageStore.List(ctx, 0)
	if err != nil {
		err = s.mapError(err)
		return BackupDocument{}, err
	}
	return NewBackupDocument(rules, messages, s.now()), nil
}

// ImportBackup re-inserts rules and messages with fresh ids. REPLACE clears
// both collections first. Imported messages are not dispatched.
func (s *Service) ImportBackup(ctx context.Context, doc BackupDocument, strategy ImportStrategy) (result ImportResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"strategy": string(strategy)}
	defer func() {
		fields["rules"] = result.RulesImported
		fields["messages"] = result.MessagesImported
		s.observeOperation(ctx, startedAt, "import_backup", err, fields)
	}()

	strategy, err = ParseImportStrategy(string(strategy))
	if err != nil {
		err = s.mapError(validationError("strategy", err.Error()))
		return ImportResult{}, err
	}
	if err = doc.Validate(); err != nil {
		err = s.mapError(err)
		return ImportResult{}, err
	}
	result.Strategy = strategy

	if strategy == ImportStrategyReplace {
		if err = s.ruleStore.DeleteAll(ctx); err != nil {
			err = s.mapError(err)
			return result, err
		}
		if err = s.messageStore.DeleteAll(ctx); err != nil {
			err = s.mapError(err)
			return result, err
		}
	}

	now := s.now()
	for _, backupRule := range doc.Rules {
		rule := backupRule.ToRule()
		rule.CreatedAt = now
		rule.UpdatedAt = now
		if _, err = s.ruleStore.Create(ctx, rule); err != nil {
			err = s.mapError(err)
			return result, err
		}
		result.RulesImported++
	}
	for _, backupMessage := range doc.Messages {
		if _, err = s.messageStore.Insert(ctx, backupMessage.ToMessage()); err != nil {
			err = s.mapError(err)
			return result, err
		}
		result.MessagesImported++
	}

	if limit := s.loadSettings(ctx).MessageLimit; limit > 0 {
		if _, limitErr := s.messageStore.EnforceLimit(ctx, limit); limitErr != nil {
			s.logWithLevel(ctx, "warn", "enforce message limit after import failed", map[string]any{"error": limitErr.Error()})
		}
	}
	s.activity.Record(ctx, "[Backup] Imported %d rule(s) and %d message(s) using %s", result.RulesImported, result.MessagesImported, strategy)
	return result, nil
}

func (s *Service) loadSettings(ctx context.Context) Settings {
	defaults := s.config.DefaultSettings()
	if s.settingsStore == nil {
		return defaults
	}
	settings, err := s.settingsStore.Load(ctx, defaults)
	if err != nil {
		s.logWithLevel(ctx, "warn", "load settings failed, using defaults", map[string]any{"error": err.Error()})
		return defaults
	}
	return settings
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func validateRule(name string, channel ChannelConfig) error {
	if strings.TrimSpace(name) == "" {
		return validationError("name", "rule name is required")
	}
	if base := strings.TrimSpace(channel.BaseURL); base != "" {
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return validationError("channel.base_url", "base url must be http or https")
		}
	}
	if channel.Encryption.Active() {
		switch strings.ToUpper(strings.TrimSpace(channel.Encryption.Mode)) {
		case "ECB", "CBC", "GCM":
		default:
			return validationError("channel.encryption.mode", fmt.Sprintf("unsupported encryption mode %q", channel.Encryption.Mode))
		}
	}
	return nil
}

func normalizeChannel(channel ChannelConfig) ChannelConfig {
	channel.Key = strings.TrimSpace(channel.Key)
	channel.BaseURL = strings.TrimSpace(channel.BaseURL)
	if channel.Encryption != nil {
		enc := *channel.Encryption
		enc.Mode = strings.ToUpper(strings.TrimSpace(enc.Mode))
		channel.Encryption = &enc
	}
	return channel
}
