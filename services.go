package forwarder

import "github.com/goliatone/go-forwarder/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type MessageStore = core.MessageStore
type RuleStore = core.RuleStore
type JobStore = core.JobStore
type LogStore = core.LogStore
type SettingsStore = core.SettingsStore
type RetryScheduler = core.RetryScheduler
type WebhookTransport = core.WebhookTransport
type PayloadEncrypter = core.PayloadEncrypter

type Message = core.Message
type Rule = core.Rule
type ChannelConfig = core.ChannelConfig
type EncryptionConfig = core.EncryptionConfig
type Job = core.Job
type JobStatus = core.JobStatus
type Settings = core.Settings
type BackupDocument = core.BackupDocument

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithMessageStore      = core.WithMessageStore
	WithRuleStore         = core.WithRuleStore
	WithJobStore          = core.WithJobStore
	WithLogStore          = core.WithLogStore
	WithSettingsStore     = core.WithSettingsStore
	WithRetryScheduler    = core.WithRetryScheduler
	WithWebhookTransport  = core.WithWebhookTransport
	WithPayloadEncrypter  = core.WithPayloadEncrypter
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service with the HTTP webhook transport and the AES
// payload codec unless opts supply their own.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, withDefaultCollaborators(cfg, opts)...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}
