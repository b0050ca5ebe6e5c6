package httpapi

import (
	"time"

	"github.com/goliatone/go-forwarder/core"
)

type fragmentRequest struct {
	Sender     string     `json:"sender"`
	Content    string     `json:"content"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type fragmentResponse struct {
	Result core.IngestResult `json:"result"`
}

type encryptionDTO struct {
	Mode string `json:"mode"`
	Key  string `json:"key"`
	IV   string `json:"iv,omitempty"`
}

type channelDTO struct {
	Key        string         `json:"key"`
	BaseURL    string         `json:"base_url,omitempty"`
	Enabled    *bool          `json:"enabled,omitempty"`
	Encryption *encryptionDTO `json:"encryption,omitempty"`
}

// toDomain converts the payload. An omitted enabled flag falls back to
// enabledDefault.
func (c channelDTO) toDomain(enabledDefault bool) core.ChannelConfig {
	channel := core.ChannelConfig{
		Key:     c.Key,
		BaseURL: c.BaseURL,
		Enabled: enabledDefault,
	}
	if c.Enabled != nil {
		channel.Enabled = *c.Enabled
	}
	if c.Encryption != nil {
		channel.Encryption = &core.EncryptionConfig{
			Mode: c.Encryption.Mode,
			Key:  c.Encryption.Key,
			IV:   c.Encryption.IV,
		}
	}
	return channel
}

func channelFromDomain(channel core.ChannelConfig) channelDTO {
	enabled := channel.Enabled
	out := channelDTO{
		Key:     channel.Key,
		BaseURL: channel.BaseURL,
		Enabled: &enabled,
	}
	if channel.Encryption != nil {
		out.Encryption = &encryptionDTO{
			Mode: channel.Encryption.Mode,
			Key:  channel.Encryption.Key,
			IV:   channel.Encryption.IV,
		}
	}
	return out
}

type ruleRequest struct {
	Name    string     `json:"name"`
	Channel channelDTO `json:"channel"`
}

type ruleResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Channel   channelDTO `json:"channel"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func ruleFromDomain(rule core.Rule) ruleResponse {
	return ruleResponse{
		ID:        rule.ID,
		Name:      rule.Name,
		Channel:   channelFromDomain(rule.Channel),
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type testDeliveryRequest struct {
	Channel channelDTO `json:"channel"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"received_at"`
}

func messageFromDomain(message core.Message) messageResponse {
	return messageResponse{
		ID:         message.ID,
		Sender:     message.Sender,
		Content:    message.Content,
		ReceivedAt: message.ReceivedAt,
	}
}

type jobResponse struct {
	ID            string         `json:"id"`
	MessageID     string         `json:"message_id"`
	RuleID        string         `json:"rule_id"`
	RuleName      string         `json:"rule_name,omitempty"`
	Status        core.JobStatus `json:"status"`
	Attempts      int            `json:"attempts"`
	LastAttemptAt *time.Time     `json:"last_attempt_at,omitempty"`
	LastError     *string        `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func jobFromDomain(job core.Job) jobResponse {
	return jobResponse{
		ID:            job.ID,
		MessageID:     job.MessageID,
		RuleID:        job.RuleID,
		Status:        job.Status,
		Attempts:      job.Attempts,
		LastAttemptAt: job.LastAttemptAt,
		LastError:     job.LastError,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}

func jobViewFromDomain(view core.JobView) jobResponse {
	out := jobFromDomain(view.Job)
	out.RuleName = view.RuleName
	return out
}

type settingsDTO struct {
	RetryOnFailure *bool `json:"retry_on_failure,omitempty"`
	MessageLimit   *int  `json:"message_limit,omitempty"`
}

// apply overlays the fields present in the request onto current.
func (s settingsDTO) apply(current core.Settings) core.Settings {
	if s.RetryOnFailure != nil {
		current.RetryOnFailure = *s.RetryOnFailure
	}
	if s.MessageLimit != nil {
		current.MessageLimit = *s.MessageLimit
	}
	return current
}

func settingsFromDomain(settings core.Settings) settingsDTO {
	retry := settings.RetryOnFailure
	limit := settings.MessageLimit
	return settingsDTO{RetryOnFailure: &retry, MessageLimit: &limit}
}

type logResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type importResponse struct {
	Strategy         core.ImportStrategy `json:"strategy"`
	RulesImported    int                 `json:"rules_imported"`
	MessagesImported int                 `json:"messages_imported"`
}

type countResponse struct {
	Count int `json:"count"`
}
