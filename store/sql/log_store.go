package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LogStore struct {
	db   *bun.DB
	repo repository.Repository[*logRecord]
}

func NewLogStore(db *bun.DB) (*LogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*logRecord](db, logHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid log repository wiring: %w", err)
		}
	}
	return &LogStore{db: db, repo: repo}, nil
}

func (s *LogStore) Append(ctx context.Context, entry core.LogEntry) (core.LogEntry, error) {
	if s == nil || s.repo == nil {
		return core.LogEntry{}, fmt.Errorf("sqlstore: log store is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	created, err := s.repo.Create(ctx, &logRecord{
		ID:        entry.ID,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return core.LogEntry{}, err
	}
	return created.toDomain(), nil
}

// List returns the newest entries first.
func (s *LogStore) List(ctx context.Context, limit int) ([]core.LogEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: log store is not configured")
	}
	var records []*logRecord
	query := s.db.NewSelect().
		Model(&records).
		OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.LogEntry, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *LogStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: log store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*logRecord)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return err
}
