package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// The memory stores back the service when no repository factory is wired and
// are used throughout the core tests.

type MemoryMessageStore struct {
	mu       sync.Mutex
	messages map[string]Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: map[string]Message{}}
}

func (s *MemoryMessageStore) Insert(_ context.Context, message Message) (Message, error) {
	if strings.TrimSpace(message.Sender) == "" {
		return Message{}, fmt.Errorf("core: message sender is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(message.ID) == "" {
		message.ID = uuid.NewString()
	}
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = time.Now().UTC()
	}
	s.messages[message.ID] = message
	return message, nil
}

func (s *MemoryMessageStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.messages[strings.TrimSpace(id)]
	if !ok {
		return Message{}, fmt.Errorf("%w: id %q", ErrMessageNotFound, id)
	}
	return message, nil
}

func (s *MemoryMessageStore) List(_ context.Context, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedLocked()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryMessageStore) EnforceLimit(_ context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ordered := s.sortedLocked()
	if len(ordered) <= limit {
		return 0, nil
	}
	removed := 0
	for _, message := range ordered[limit:] {
		delete(s.messages, message.ID)
		removed++
	}
	return removed, nil
}

func (s *MemoryMessageStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), nil
}

func (s *MemoryMessageStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = map[string]Message{}
	return nil
}

// sortedLocked orders newest first.
func (s *MemoryMessageStore) sortedLocked() []Message {
	out := make([]Message, 0, len(s.messages))
	for _, message := range s.messages {
		out = append(out, message)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out
}

type MemoryRuleStore struct {
	mu    sync.Mutex
	rules map[string]Rule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: map[string]Rule{}}
}

func (s *MemoryRuleStore) Create(_ context.Context, rule Rule) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	s.rules[rule.ID] = cloneRule(rule)
	return cloneRule(rule), nil
}

func (s *MemoryRuleStore) Update(_ context.Context, rule Rule) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok {
		return Rule{}, fmt.Errorf("%w: id %q", ErrRuleNotFound, rule.ID)
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	s.rules[rule.ID] = cloneRule(rule)
	return cloneRule(rule), nil
}

func (s *MemoryRuleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("%w: id %q", ErrRuleNotFound, id)
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryRuleStore) Get(_ context.Context, id string) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[strings.TrimSpace(id)]
	if !ok {
		return Rule{}, fmt.Errorf("%w: id %q", ErrRuleNotFound, id)
	}
	return cloneRule(rule), nil
}

func (s *MemoryRuleStore) List(context.Context) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(false), nil
}

func (s *MemoryRuleStore) ListEnabled(context.Context) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(true), nil
}

func (s *MemoryRuleStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = map[string]Rule{}
	return nil
}

func (s *MemoryRuleStore) listLocked(enabledOnly bool) []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if enabledOnly && !rule.Channel.Enabled {
			continue
		}
		out = append(out, cloneRule(rule))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneRule(rule Rule) Rule {
	if rule.Channel.Encryption != nil {
		enc := *rule.Channel.Encryption
		rule.Channel.Encryption = &enc
	}
	return rule
}

type MemoryJobStore struct {
	mu    sync.Mutex
	jobs  map[string]Job
	pairs map[string]string
	rules RuleStore
}

// NewMemoryJobStore builds a job store. The rule store is optional and only
// used to resolve rule names for ListByMessage.
func NewMemoryJobStore(rules RuleStore) *MemoryJobStore {
	return &MemoryJobStore{
		jobs:  map[string]Job{},
		pairs: map[string]string{},
		rules: rules,
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job Job) (Job, error) {
	if strings.TrimSpace(job.MessageID) == "" || strings.TrimSpace(job.RuleID) == "" {
		return Job{}, fmt.Errorf("core: message id and rule id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := job.MessageID + "\x00" + job.RuleID
	if _, exists := s.pairs[pair]; exists {
		return Job{}, fmt.Errorf("%w: message %q rule %q", ErrDuplicateJob, job.MessageID, job.RuleID)
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(job)
	s.pairs[pair] = job.ID
	return cloneJob(job), nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.TrimSpace(id)]
	if !ok {
		return Job{}, fmt.Errorf("%w: id %q", ErrJobNotFound, id)
	}
	return cloneJob(job), nil
}

func (s *MemoryJobStore) Transition(_ context.Context, transition JobTransition) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.TrimSpace(transition.JobID)]
	if !ok {
		return Job{}, fmt.Errorf("%w: id %q", ErrJobNotFound, transition.JobID)
	}
	if len(transition.From) > 0 && !slices.Contains(transition.From, job.Status) {
		return Job{}, fmt.Errorf("%w: job %q is %s", ErrJobStateConflict, job.ID, job.Status)
	}
	if transition.ExpectAttempts != nil && job.Attempts != *transition.ExpectAttempts {
		return Job{}, fmt.Errorf("%w: job %q is at attempt %d, expected %d", ErrJobStateConflict, job.ID, job.Attempts, *transition.ExpectAttempts)
	}
	applyJobTransition(&job, transition, time.Now().UTC())
	s.jobs[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func (s *MemoryJobStore) ListByMessage(ctx context.Context, messageID string) ([]JobView, error) {
	s.mu.Lock()
	jobs := make([]Job, 0)
	for _, job := range s.jobs {
		if job.MessageID == messageID {
			jobs = append(jobs, cloneJob(job))
		}
	}
	s.mu.Unlock()
	sortJobs(jobs)

	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		view := JobView{Job: job}
		if s.rules != nil {
			if rule, err := s.rules.Get(ctx, job.RuleID); err == nil {
				view.RuleName = rule.Name
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *MemoryJobStore) ListByStatus(_ context.Context, status JobStatus, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0)
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, cloneJob(job))
		}
	}
	sortJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryJobStore) CancelAllRetrying(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for id, job := range s.jobs {
		if job.Status != JobStatusFailedRetry {
			continue
		}
		job.Status = JobStatusCancelled
		job.UpdatedAt = now
		s.jobs[id] = job
		count++
	}
	return count, nil
}

func applyJobTransition(job *Job, transition JobTransition, now time.Time) {
	job.Status = transition.To
	if transition.ResetAttempts {
		job.Attempts = 0
	}
	if transition.IncrementAttempts {
		job.Attempts++
	}
	if transition.ClearError {
		job.LastError = nil
	}
	if transition.LastError != nil {
		value := *transition.LastError
		job.LastError = &value
	}
	if transition.AttemptedAt != nil {
		value := *transition.AttemptedAt
		job.LastAttemptAt = &value
	}
	job.UpdatedAt = now
}

func sortJobs(jobs []Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}

func cloneJob(job Job) Job {
	if job.LastError != nil {
		value := *job.LastError
		job.LastError = &value
	}
	if job.LastAttemptAt != nil {
		value := *job.LastAttemptAt
		job.LastAttemptAt = &value
	}
	return job
}

type MemoryLogStore struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

func (s *MemoryLogStore) Append(_ context.Context, entry LogEntry) (LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

// List returns the newest entries first.
func (s *MemoryLogStore) List(_ context.Context, limit int) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryLogStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

type MemorySettingsStore struct {
	mu       sync.Mutex
	settings *Settings
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{}
}

func (s *MemorySettingsStore) Load(_ context.Context, defaults Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return defaults, nil
	}
	return *s.settings, nil
}

func (s *MemorySettingsStore) Save(_ context.Context, settings Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := settings
	s.settings = &copied
	return settings, nil
}

var (
	_ MessageStore  = (*MemoryMessageStore)(nil)
	_ RuleStore     = (*MemoryRuleStore)(nil)
	_ JobStore      = (*MemoryJobStore)(nil)
	_ LogStore      = (*MemoryLogStore)(nil)
	_ SettingsStore = (*MemorySettingsStore)(nil)
)
