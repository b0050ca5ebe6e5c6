package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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
	clock             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithMessageStore(store MessageStore) Option {
	return func(b *serviceBuilder) {
		b.messageStore = store
	}
}

func WithRuleStore(store RuleStore) Option {
	return func(b *serviceBuilder) {
		b.ruleStore = store
	}
}

func WithJobStore(store JobStore) Option {
	return func(b *serviceBuilder) {
		b.jobStore = store
	}
}

func WithLogStore(store LogStore) Option {
	return func(b *serviceBuilder) {
		b.logStore = store
	}
}

func WithSettingsStore(store SettingsStore) Option {
	return func(b *serviceBuilder) {
		b.settingsStore = store
	}
}

// WithRetryScheduler replaces the in-process timer scheduler. Schedulers that
// expose Bind(JobExecutor) are bound to the delivery worker.
func WithRetryScheduler(scheduler RetryScheduler) Option {
	return func(b *serviceBuilder) {
		b.retryScheduler = scheduler
	}
}

func WithWebhookTransport(transport WebhookTransport) Option {
	return func(b *serviceBuilder) {
		b.webhookTransport = transport
	}
}

func WithPayloadEncrypter(encrypter PayloadEncrypter) Option {
	return func(b *serviceBuilder) {
		b.payloadEncrypter = encrypter
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("forwarder", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

// StaticRawConfigLoader serves a fixed map, mostly for tests and embedding.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap only emits non-zero values for non-default layers so an
// unset runtime field never masks a loaded one.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	ingestion := map[string]any{}
	if includeZero || cfg.Ingestion.DebounceWindowMS != 0 {
		ingestion["debounce_window_ms"] = cfg.Ingestion.DebounceWindowMS
	}
	if includeZero || cfg.Ingestion.ConcatTimeoutMS != 0 {
		ingestion["concat_timeout_ms"] = cfg.Ingestion.ConcatTimeoutMS
	}
	if includeZero || cfg.Ingestion.MaxSignatures != 0 {
		ingestion["max_signatures"] = cfg.Ingestion.MaxSignatures
	}
	if len(ingestion) > 0 {
		layer["ingestion"] = ingestion
	}

	if includeZero || cfg.Messages.RetentionLimit != 0 {
		layer["messages"] = map[string]any{
			"retention_limit": cfg.Messages.RetentionLimit,
		}
	}

	delivery := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Delivery.BaseURL) != "" {
		delivery["base_url"] = cfg.Delivery.BaseURL
	}
	if includeZero || strings.TrimSpace(cfg.Delivery.Group) != "" {
		delivery["group"] = cfg.Delivery.Group
	}
	if includeZero || cfg.Delivery.TitlePrefix != "" {
		delivery["title_prefix"] = cfg.Delivery.TitlePrefix
	}
	if includeZero || cfg.Delivery.ConnectTimeoutMS != 0 {
		delivery["connect_timeout_ms"] = cfg.Delivery.ConnectTimeoutMS
	}
	if includeZero || cfg.Delivery.ReadTimeoutMS != 0 {
		delivery["read_timeout_ms"] = cfg.Delivery.ReadTimeoutMS
	}
	if includeZero || cfg.Delivery.MaxErrorBodyBytes != 0 {
		delivery["max_error_body_bytes"] = cfg.Delivery.MaxErrorBodyBytes
	}
	if includeZero || cfg.Delivery.DisableRetry {
		delivery["disable_retry"] = cfg.Delivery.DisableRetry
	}
	if len(delivery) > 0 {
		layer["delivery"] = delivery
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.InitialBackoffMS != 0 {
		retry["initial_backoff_ms"] = cfg.Retry.InitialBackoffMS
	}
	if includeZero || cfg.Retry.MaxBackoffMS != 0 {
		retry["max_backoff_ms"] = cfg.Retry.MaxBackoffMS
	}
	if includeZero || cfg.Retry.MaxAttempts != 0 {
		retry["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if includeZero || cfg.Retry.Workers != 0 {
		retry["workers"] = cfg.Retry.Workers
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}
	return layer
}
