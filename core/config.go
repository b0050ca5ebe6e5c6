package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultDeliveryBaseURL = "https://api.day.app"
	DefaultDeliveryGroup   = "SmsForwarder"
	DefaultTitlePrefix     = "New message from: "
)

type IngestionConfig struct {
	DebounceWindowMS int `koanf:"debounce_window_ms" mapstructure:"debounce_window_ms"`
	ConcatTimeoutMS  int `koanf:"concat_timeout_ms" mapstructure:"concat_timeout_ms"`
	MaxSignatures    int `koanf:"max_signatures" mapstructure:"max_signatures"`
}

type MessagesConfig struct {
	// RetentionLimit seeds the MessageLimit setting. Values <= 0 mean unlimited.
	RetentionLimit int `koanf:"retention_limit" mapstructure:"retention_limit"`
}

type DeliveryConfig struct {
	BaseURL           string `koanf:"base_url" mapstructure:"base_url"`
	Group             string `koanf:"group" mapstructure:"group"`
	TitlePrefix       string `koanf:"title_prefix" mapstructure:"title_prefix"`
	ConnectTimeoutMS  int    `koanf:"connect_timeout_ms" mapstructure:"connect_timeout_ms"`
	ReadTimeoutMS     int    `koanf:"read_timeout_ms" mapstructure:"read_timeout_ms"`
	MaxErrorBodyBytes int    `koanf:"max_error_body_bytes" mapstructure:"max_error_body_bytes"`
	// DisableRetry seeds RetryOnFailure=false. Retry is on by default.
	DisableRetry bool `koanf:"disable_retry" mapstructure:"disable_retry"`
}

type RetryConfig struct {
	InitialBackoffMS int `koanf:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `koanf:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxAttempts      int `koanf:"max_attempts" mapstructure:"max_attempts"`
	Workers          int `koanf:"workers" mapstructure:"workers"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Ingestion   IngestionConfig `koanf:"ingestion" mapstructure:"ingestion"`
	Messages    MessagesConfig  `koanf:"messages" mapstructure:"messages"`
	Delivery    DeliveryConfig  `koanf:"delivery" mapstructure:"delivery"`
	Retry       RetryConfig     `koanf:"retry" mapstructure:"retry"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "forwarder",
		Ingestion: IngestionConfig{
			DebounceWindowMS: 2000,
			ConcatTimeoutMS:  100,
			MaxSignatures:    1024,
		},
		Messages: MessagesConfig{
			RetentionLimit: -1,
		},
		Delivery: DeliveryConfig{
			BaseURL:           DefaultDeliveryBaseURL,
			Group:             DefaultDeliveryGroup,
			TitlePrefix:       DefaultTitlePrefix,
			ConnectTimeoutMS:  15000,
			ReadTimeoutMS:     15000,
			MaxErrorBodyBytes: 512,
		},
		Retry: RetryConfig{
			InitialBackoffMS: 30000,
			MaxBackoffMS:     1800000,
			MaxAttempts:      8,
			Workers:          4,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Ingestion.DebounceWindowMS <= 0 {
		return fmt.Errorf("core: ingestion.debounce_window_ms must be positive")
	}
	if c.Ingestion.ConcatTimeoutMS <= 0 {
		return fmt.Errorf("core: ingestion.concat_timeout_ms must be positive")
	}
	if c.Ingestion.MaxSignatures < 0 {
		return fmt.Errorf("core: ingestion.max_signatures must not be negative")
	}
	if base := strings.TrimSpace(c.Delivery.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: delivery.base_url %q is invalid", base)
		}
	}
	if c.Delivery.ConnectTimeoutMS < 0 || c.Delivery.ReadTimeoutMS < 0 {
		return fmt.Errorf("core: delivery timeouts must not be negative")
	}
	if c.Retry.InitialBackoffMS < 0 || c.Retry.MaxBackoffMS < 0 {
		return fmt.Errorf("core: retry backoff must not be negative")
	}
	if c.Retry.MaxBackoffMS > 0 && c.Retry.InitialBackoffMS > c.Retry.MaxBackoffMS {
		return fmt.Errorf("core: retry.initial_backoff_ms exceeds retry.max_backoff_ms")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("core: retry.max_attempts must not be negative")
	}
	return nil
}

func (c IngestionConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMS) * time.Millisecond
}

func (c IngestionConfig) ConcatTimeout() time.Duration {
	return time.Duration(c.ConcatTimeoutMS) * time.Millisecond
}

func (c DeliveryConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

func (c DeliveryConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

func (c RetryConfig) Backoff() ExponentialBackoff {
	return ExponentialBackoff{
		Initial:     time.Duration(c.InitialBackoffMS) * time.Millisecond,
		Max:         time.Duration(c.MaxBackoffMS) * time.Millisecond,
		MaxAttempts: c.MaxAttempts,
	}
}

// DefaultSettings derives the initial runtime settings from configuration.
func (c Config) DefaultSettings() Settings {
	return Settings{
		RetryOnFailure: !c.Delivery.DisableRetry,
		MessageLimit:   c.Messages.RetentionLimit,
	}
}
