package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"
)

func newMessageRecord(message core.Message, now time.Time) *messageRecord {
	return &messageRecord{
		ID:         strings.TrimSpace(message.ID),
		Sender:     strings.TrimSpace(message.Sender),
		Content:    message.Content,
		ReceivedAt: message.ReceivedAt.UTC(),
		CreatedAt:  now,
	}
}

func (r *messageRecord) toDomain() core.Message {
	if r == nil {
		return core.Message{}
	}
	return core.Message{
		ID:         r.ID,
		Sender:     r.Sender,
		Content:    r.Content,
		ReceivedAt: r.ReceivedAt.UTC(),
	}
}

func newRuleRecord(rule core.Rule) *ruleRecord {
	record := &ruleRecord{
		ID:         strings.TrimSpace(rule.ID),
		Name:       strings.TrimSpace(rule.Name),
		ChannelKey: strings.TrimSpace(rule.Channel.Key),
		BaseURL:    strings.TrimSpace(rule.Channel.BaseURL),
		Enabled:    rule.Channel.Enabled,
		CreatedAt:  rule.CreatedAt.UTC(),
		UpdatedAt:  rule.UpdatedAt.UTC(),
	}
	if enc := rule.Channel.Encryption; enc != nil {
		record.EncryptionMode = strings.TrimSpace(enc.Mode)
		record.EncryptionKey = enc.Key
		record.EncryptionIV = enc.IV
	}
	return record
}

func (r *ruleRecord) toDomain() core.Rule {
	if r == nil {
		return core.Rule{}
	}
	rule := core.Rule{
		ID:   r.ID,
		Name: r.Name,
		Channel: core.ChannelConfig{
			Key:     r.ChannelKey,
			BaseURL: r.BaseURL,
			Enabled: r.Enabled,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	// An empty mode column means no encryption block was configured.
	if r.EncryptionMode != "" || r.EncryptionKey != "" || r.EncryptionIV != "" {
		rule.Channel.Encryption = &core.EncryptionConfig{
			Mode: r.EncryptionMode,
			Key:  r.EncryptionKey,
			IV:   r.EncryptionIV,
		}
	}
	return rule
}

func newJobRecord(job core.Job) *jobRecord {
	record := &jobRecord{
		ID:        strings.TrimSpace(job.ID),
		MessageID: strings.TrimSpace(job.MessageID),
		RuleID:    strings.TrimSpace(job.RuleID),
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		CreatedAt: job.CreatedAt.UTC(),
		UpdatedAt: job.UpdatedAt.UTC(),
	}
	if job.LastAttemptAt != nil {
		value := job.LastAttemptAt.UTC()
		record.LastAttemptAt = &value
	}
	if job.LastError != nil {
		value := *job.LastError
		record.LastError = &value
	}
	return record
}

func (r *jobRecord) toDomain() core.Job {
	if r == nil {
		return core.Job{}
	}
	job := core.Job{
		ID:        r.ID,
		MessageID: r.MessageID,
		RuleID:    r.RuleID,
		Status:    core.JobStatus(r.Status),
		Attempts:  r.Attempts,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.LastAttemptAt != nil {
		value := r.LastAttemptAt.UTC()
		job.LastAttemptAt = &value
	}
	if r.LastError != nil {
		value := *r.LastError
		job.LastError = &value
	}
	return job
}

func (r *logRecord) toDomain() core.LogEntry {
	if r == nil {
		return core.LogEntry{}
	}
	return core.LogEntry{
		ID:        r.ID,
		Message:   r.Message,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
