package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type messageRecord struct {
	bun.BaseModel `bun:"table:forwarder_messages,alias:fm"`

	ID         string    `bun:"id,pk"`
	Sender     string    `bun:"sender,notnull"`
	Content    string    `bun:"content,notnull"`
	ReceivedAt time.Time `bun:"received_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type ruleRecord struct {
	bun.BaseModel `bun:"table:forwarder_rules,alias:fr"`

	ID             string    `bun:"id,pk"`
	Name           string    `bun:"name,notnull"`
	ChannelKey     string    `bun:"channel_key,notnull"`
	BaseURL        string    `bun:"base_url,notnull"`
	Enabled        bool      `bun:"enabled,notnull"`
	EncryptionMode string    `bun:"encryption_mode,notnull"`
	EncryptionKey  string    `bun:"encryption_key,notnull"`
	EncryptionIV   string    `bun:"encryption_iv,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type jobRecord struct {
	bun.BaseModel `bun:"table:forwarder_jobs,alias:fj"`

	ID            string     `bun:"id,pk"`
	MessageID     string     `bun:"message_id,notnull"`
	RuleID        string     `bun:"rule_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastAttemptAt *time.Time `bun:"last_attempt_at,nullzero"`
	LastError     *string    `bun:"last_error"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type logRecord struct {
	bun.BaseModel `bun:"table:forwarder_logs,alias:fl"`

	ID        string    `bun:"id,pk"`
	Message   string    `bun:"message,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type settingsRecord struct {
	bun.BaseModel `bun:"table:forwarder_settings,alias:fs"`

	ID             string    `bun:"id,pk"`
	RetryOnFailure bool      `bun:"retry_on_failure,notnull"`
	MessageLimit   int       `bun:"message_limit,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *messageRecord) recordID() string      { return r.ID }
func (r *messageRecord) setRecordID(id string) { r.ID = id }
func (r *ruleRecord) recordID() string         { return r.ID }
func (r *ruleRecord) setRecordID(id string)    { r.ID = id }
func (r *jobRecord) recordID() string          { return r.ID }
func (r *jobRecord) setRecordID(id string)     { r.ID = id }
func (r *logRecord) recordID() string          { return r.ID }
func (r *logRecord) setRecordID(id string)     { r.ID = id }
