package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-forwarder/core"
	"github.com/uptrace/bun"
)

const settingsRowID = "default"

// SettingsStore keeps the single settings row keyed by settingsRowID.
type SettingsStore struct {
	db *bun.DB
}

func NewSettingsStore(db *bun.DB) (*SettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &SettingsStore{db: db}, nil
}

func (s *SettingsStore) Load(ctx context.Context, defaults core.Settings) (core.Settings, error) {
	if s == nil || s.db == nil {
		return core.Settings{}, fmt.Errorf("sqlstore: settings store is not configured")
	}
	record := &settingsRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", settingsRowID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaults, nil
		}
		return core.Settings{}, err
	}
	return core.Settings{
		RetryOnFailure: record.RetryOnFailure,
		MessageLimit:   record.MessageLimit,
	}, nil
}

func (s *SettingsStore) Save(ctx context.Context, settings core.Settings) (core.Settings, error) {
	if s == nil || s.db == nil {
		return core.Settings{}, fmt.Errorf("sqlstore: settings store is not configured")
	}
	record := &settingsRecord{
		ID:             settingsRowID,
		RetryOnFailure: settings.RetryOnFailure,
		MessageLimit:   settings.MessageLimit,
		UpdatedAt:      time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("retry_on_failure = EXCLUDED.retry_on_failure").
		Set("message_limit = EXCLUDED.message_limit").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.Settings{}, err
	}
	return settings, nil
}
