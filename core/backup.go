package core

import (
	"fmt"
	"strings"
	"time"
)

const BackupVersion = 1

// BackupDocument is the versioned export shape. Field names are part of the
// on-disk format.
type BackupDocument struct {
	Version         int             `json:"version"`
	ExportTimestamp int64           `json:"exportTimestamp"`
	Rules           []BackupRule    `json:"rules"`
	Messages        []BackupMessage `json:"messages"`
}

type BackupRule struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Key        string            `json:"key"`
	ServerURL  string            `json:"serverUrl,omitempty"`
	Enabled    bool              `json:"isEnabled"`
	Encryption *BackupEncryption `json:"encryption,omitempty"`
}

type BackupEncryption struct {
	Mode string `json:"mode"`
	Key  string `json:"key"`
	IV   string `json:"iv,omitempty"`
}

type BackupMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type ImportResult struct {
	Strategy         ImportStrategy
	RulesImported    int
	MessagesImported int
}

func (d BackupDocument) Validate() error {
	if d.Version != BackupVersion {
		return validationError("version", fmt.Sprintf("unsupported backup version %d", d.Version))
	}
	for i, rule := range d.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return validationError(fmt.Sprintf("rules[%d].name", i), "rule name is required")
		}
	}
	for i, message := range d.Messages {
		if strings.TrimSpace(message.Sender) == "" {
			return validationError(fmt.Sprintf("messages[%d].sender", i), "message sender is required")
		}
	}
	return nil
}

func NewBackupDocument(rules []Rule, messages []Message, exportedAt time.Time) BackupDocument {
	doc := BackupDocument{
		Version:         BackupVersion,
		ExportTimestamp: exportedAt.UnixMilli(),
		Rules:           make([]BackupRule, 0, len(rules)),
		Messages:        make([]BackupMessage, 0, len(messages)),
	}
	for _, rule := range rules {
		doc.Rules = append(doc.Rules, backupRuleFromDomain(rule))
	}
	for _, message := range messages {
		doc.Messages = append(doc.Messages, BackupMessage{
			ID:        message.ID,
			Sender:    message.Sender,
			Content:   message.Content,
			Timestamp: message.ReceivedAt.UnixMilli(),
		})
	}
	return doc
}

func backupRuleFromDomain(rule Rule) BackupRule {
	out := BackupRule{
		ID:        rule.ID,
		Name:      rule.Name,
		Key:       rule.Channel.Key,
		ServerURL: rule.Channel.BaseURL,
		Enabled:   rule.Channel.Enabled,
	}
	if enc := rule.Channel.Encryption; enc != nil {
		out.Encryption = &BackupEncryption{Mode: enc.Mode, Key: enc.Key, IV: enc.IV}
	}
	return out
}

// ToRule drops the exported id; imports always mint fresh ids.
func (r BackupRule) ToRule() Rule {
	rule := Rule{
		Name: strings.TrimSpace(r.Name),
		Channel: ChannelConfig{
			Key:     strings.TrimSpace(r.Key),
			BaseURL: strings.TrimSpace(r.ServerURL),
			Enabled: r.Enabled,
		},
	}
	if r.Encryption != nil {
		rule.Channel.Encryption = &EncryptionConfig{
			Mode: strings.TrimSpace(r.Encryption.Mode),
			Key:  r.Encryption.Key,
			IV:   r.Encryption.IV,
		}
	}
	return rule
}

func (m BackupMessage) ToMessage() Message {
	return Message{
		Sender:     strings.TrimSpace(m.Sender),
		Content:    m.Content,
		ReceivedAt: time.UnixMilli(m.Timestamp).UTC(),
	}
}
