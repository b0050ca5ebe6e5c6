package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*messageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	return &MessageStore{db: db, repo: repo}, nil
}

func (s *MessageStore) Insert(ctx context.Context, message core.Message) (core.Message, error) {
	if s == nil || s.repo == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	if strings.TrimSpace(message.Sender) == "" {
		return core.Message{}, fmt.Errorf("sqlstore: message sender is required")
	}
	now := time.Now().UTC()
	if strings.TrimSpace(message.ID) == "" {
		message.ID = newID()
	}
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = now
	}
	created, err := s.repo.Create(ctx, newMessageRecord(message, now))
	if err != nil {
		return core.Message{}, err
	}
	return created.toDomain(), nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Message{}, fmt.Errorf("%w: id %q", core.ErrMessageNotFound, id)
		}
		return core.Message{}, err
	}
	return record.toDomain(), nil
}

func (s *MessageStore) List(ctx context.Context, limit int) ([]core.Message, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	var records []*messageRecord
	query := s.db.NewSelect().
		Model(&records).
		OrderExpr("received_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// EnforceLimit removes the oldest rows beyond limit in a single statement.
func (s *MessageStore) EnforceLimit(ctx context.Context, limit int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: message store is not configured")
	}
	if limit <= 0 {
		return 0, nil
	}
	total, err := s.db.NewSelect().Model((*messageRecord)(nil)).Count(ctx)
	if err != nil {
		return 0, err
	}
	excess := total - limit
	if excess <= 0 {
		return 0, nil
	}
	res, err := s.db.NewRaw(
		"DELETE FROM forwarder_messages WHERE id IN (SELECT id FROM forwarder_messages ORDER BY received_at ASC, id ASC LIMIT ?)",
		excess,
	).Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *MessageStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: message store is not configured")
	}
	return s.db.NewSelect().Model((*messageRecord)(nil)).Count(ctx)
}

func (s *MessageStore) DeleteAll(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	_, err := s.db.NewDelete().Model((*messageRecord)(nil)).Where("1 = 1").Exec(ctx)
	return err
}
