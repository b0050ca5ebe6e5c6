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

type RuleStore struct {
	db   *bun.DB
	repo repository.Repository[*ruleRecord]
}

func NewRuleStore(db *bun.DB) (*RuleStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*ruleRecord](db, ruleHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rule repository wiring: %w", err)
		}
	}
	return &RuleStore{db: db, repo: repo}, nil
}

func (s *RuleStore) Create(ctx context.Context, rule core.Rule) (core.Rule, error) {
	if s == nil || s.repo == nil {
		return core.Rule{}, fmt.Errorf("sqlstore: rule store is not configured")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return core.Rule{}, fmt.Errorf("sqlstore: rule name is required")
	}
	now := time.Now().UTC()
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = newID()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	created, err := s.repo.Create(ctx, newRuleRecord(rule))
	if err != nil {
		return core.Rule{}, err
	}
	return created.toDomain(), nil
}

func (s *RuleStore) Update(ctx context.Context, rule core.Rule) (core.Rule, error) {
	if s == nil || s.db == nil {
		return core.Rule{}, fmt.Errorf("sqlstore: rule store is not configured")
	}
	rule.ID = strings.TrimSpace(rule.ID)
	if rule.ID == "" {
		return core.Rule{}, fmt.Errorf("sqlstore: rule id is required")
	}
	current, err := s.Get(ctx, rule.ID)
	if err != nil {
		return core.Rule{}, err
	}
	rule.CreatedAt = current.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	record := newRuleRecord(rule)
	if _, err := s.repo.Update(ctx, record, repository.UpdateByID(rule.ID)); err != nil {
		return core.Rule{}, err
	}
	return s.Get(ctx, rule.ID)
}

func (s *RuleStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rule store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*ruleRecord)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: id %q", core.ErrRuleNotFound, id)
	}
	return nil
}

func (s *RuleStore) Get(ctx context.Context, id string) (core.Rule, error) {
	if s == nil || s.db == nil {
		return core.Rule{}, fmt.Errorf("sqlstore: rule store is not configured")
	}
	record := &ruleRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Rule{}, fmt.Errorf("%w: id %q", core.ErrRuleNotFound, id)
		}
		return core.Rule{}, err
	}
	return record.toDomain(), nil
}

func (s *RuleStore) List(ctx context.Context) ([]core.Rule, error) {
	return s.list(ctx, false)
}

func (s *RuleStore) ListEnabled(ctx context.Context) ([]core.Rule, error) {
	return s.list(ctx, true)
}

func (s *RuleStore) DeleteAll(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rule store is not configured")
	}
	_, err := s.db.NewDelete().Model((*ruleRecord)(nil)).Where("1 = 1").Exec(ctx)
	return err
}

func (s *RuleStore) list(ctx context.Context, enabledOnly bool) ([]core.Rule, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: rule store is not configured")
	}
	var records []*ruleRecord
	query := s.db.NewSelect().Model(&records)
	if enabledOnly {
		query = query.Where("?TableAlias.enabled = ?", true)
	}
	if err := query.OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Rule, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
