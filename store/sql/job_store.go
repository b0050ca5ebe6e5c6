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

type JobStore struct {
	db   *bun.DB
	repo repository.Repository[*jobRecord]
}

func NewJobStore(db *bun.DB) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*jobRecord](db, jobHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid job repository wiring: %w", err)
		}
	}
	return &JobStore{db: db, repo: repo}, nil
}

func (s *JobStore) Create(ctx context.Context, job core.Job) (core.Job, error) {
	if s == nil || s.repo == nil {
		return core.Job{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	if strings.TrimSpace(job.MessageID) == "" || strings.TrimSpace(job.RuleID) == "" {
		return core.Job{}, fmt.Errorf("sqlstore: message id and rule id are required")
	}
	now := time.Now().UTC()
	if strings.TrimSpace(job.ID) == "" {
		job.ID = newID()
	}
	if job.Status == "" {
		job.Status = core.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	created, err := s.repo.Create(ctx, newJobRecord(job))
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Job{}, fmt.Errorf("%w: message %q rule %q", core.ErrDuplicateJob, job.MessageID, job.RuleID)
		}
		return core.Job{}, err
	}
	return created.toDomain(), nil
}

func (s *JobStore) Get(ctx context.Context, id string) (core.Job, error) {
	if s == nil || s.db == nil {
		return core.Job{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	record := &jobRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Job{}, fmt.Errorf("%w: id %q", core.ErrJobNotFound, id)
		}
		return core.Job{}, err
	}
	return record.toDomain(), nil
}

// Transition issues UPDATE ... WHERE id = ? AND status IN (...), plus
// AND attempts = ? when the caller pins the attempt counter. A miss is
// resolved into not-found or a state conflict by re-reading the row.
func (s *JobStore) Transition(ctx context.Context, transition core.JobTransition) (core.Job, error) {
	if s == nil || s.db == nil {
		return core.Job{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	id := strings.TrimSpace(transition.JobID)
	if id == "" {
		return core.Job{}, fmt.Errorf("sqlstore: job id is required")
	}

	query := s.db.NewUpdate().
		Model((*jobRecord)(nil)).
		Set("status = ?", string(transition.To)).
		Set("updated_at = ?", time.Now().UTC())
	switch {
	case transition.ResetAttempts && transition.IncrementAttempts:
		query = query.Set("attempts = 1")
	case transition.ResetAttempts:
		query = query.Set("attempts = 0")
	case transition.IncrementAttempts:
		query = query.Set("attempts = attempts + 1")
	}
	if transition.LastError != nil {
		query = query.Set("last_error = ?", *transition.LastError)
	} else if transition.ClearError {
		query = query.Set("last_error = NULL")
	}
	if transition.AttemptedAt != nil {
		query = query.Set("last_attempt_at = ?", transition.AttemptedAt.UTC())
	}
	query = query.Where("id = ?", id)
	if len(transition.From) > 0 {
		from := make([]string, 0, len(transition.From))
		for _, status := range transition.From {
			from = append(from, string(status))
		}
		query = query.Where("status IN (?)", bun.In(from))
	}
	if transition.ExpectAttempts != nil {
		query = query.Where("attempts = ?", *transition.ExpectAttempts)
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return core.Job{}, err
	}
	affected, _ := res.RowsAffected()
	current, err := s.Get(ctx, id)
	if err != nil {
		return core.Job{}, err
	}
	if affected == 0 {
		return core.Job{}, fmt.Errorf("%w: job %q is %s", core.ErrJobStateConflict, id, current.Status)
	}
	return current, nil
}

func (s *JobStore) ListByMessage(ctx context.Context, messageID string) ([]core.JobView, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	var records []*jobRecord
	if err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.message_id = ?", strings.TrimSpace(messageID)).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []core.JobView{}, nil
	}

	ruleIDs := make([]string, 0, len(records))
	for _, record := range records {
		ruleIDs = append(ruleIDs, record.RuleID)
	}
	var rules []*ruleRecord
	if err := s.db.NewSelect().
		Model(&rules).
		Column("id", "name").
		Where("?TableAlias.id IN (?)", bun.In(ruleIDs)).
		Scan(ctx); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rules))
	for _, rule := range rules {
		names[rule.ID] = rule.Name
	}

	out := make([]core.JobView, 0, len(records))
	for _, record := range records {
		out = append(out, core.JobView{Job: record.toDomain(), RuleName: names[record.RuleID]})
	}
	return out, nil
}

func (s *JobStore) ListByStatus(ctx context.Context, status core.JobStatus, limit int) ([]core.Job, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	var records []*jobRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(status)).
		OrderExpr("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Job, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *JobStore) CancelAllRetrying(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: job store is not configured")
	}
	res, err := s.db.NewUpdate().
		Model((*jobRecord)(nil)).
		Set("status = ?", string(core.JobStatusCancelled)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("status = ?", string(core.JobStatusFailedRetry)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "unique") || strings.Contains(text, "duplicate")
}
