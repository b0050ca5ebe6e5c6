package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-forwarder/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const ruleCacheKeyPrefix = "go-forwarder::rules::v1"

// CachedRuleStore serves rule reads from a repository cache. Every write
// through the store evicts the affected keys after the base write commits.
type CachedRuleStore struct {
	base  core.RuleStore
	cache repositorycache.CacheService
}

func NewCachedRuleStore(base core.RuleStore, cacheService repositorycache.CacheService) (*CachedRuleStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rule store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rule cache service is required")
	}
	return &CachedRuleStore{base: base, cache: cacheService}, nil
}

// RuleCacheKey returns go-forwarder::rules::v1::id::<rule_id> for single-rule
// reads with the id URL-path escaped.
func RuleCacheKey(id string) string {
	return strings.Join([]string{ruleCacheKeyPrefix, "id", url.PathEscape(strings.TrimSpace(id))}, "::")
}

func enabledRulesCacheKey() string {
	return ruleCacheKeyPrefix + "::enabled"
}

func allRulesCacheKey() string {
	return ruleCacheKeyPrefix + "::all"
}

func (s *CachedRuleStore) Create(ctx context.Context, rule core.Rule) (core.Rule, error) {
	if err := s.ready(); err != nil {
		return core.Rule{}, err
	}
	created, err := s.base.Create(ctx, rule)
	if err != nil {
		return core.Rule{}, err
	}
	if err := s.evictLists(ctx); err != nil {
		return core.Rule{}, err
	}
	return created, nil
}

func (s *CachedRuleStore) Update(ctx context.Context, rule core.Rule) (core.Rule, error) {
	if err := s.ready(); err != nil {
		return core.Rule{}, err
	}
	updated, err := s.base.Update(ctx, rule)
	if err != nil {
		return core.Rule{}, err
	}
	if err := s.evict(ctx, rule.ID); err != nil {
		return core.Rule{}, err
	}
	return updated, nil
}

func (s *CachedRuleStore) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.evict(ctx, id)
}

func (s *CachedRuleStore) Get(ctx context.Context, id string) (core.Rule, error) {
	if err := s.ready(); err != nil {
		return core.Rule{}, err
	}
	rule, err := repositorycache.GetOrFetch(ctx, s.cache, RuleCacheKey(id), func(ctx context.Context) (core.Rule, error) {
		return s.base.Get(ctx, id)
	})
	if err != nil {
		return core.Rule{}, err
	}
	return cloneRule(rule), nil
}

func (s *CachedRuleStore) List(ctx context.Context) ([]core.Rule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := repositorycache.GetOrFetch(ctx, s.cache, allRulesCacheKey(), s.base.List)
	if err != nil {
		return nil, err
	}
	return cloneRules(rules), nil
}

func (s *CachedRuleStore) ListEnabled(ctx context.Context) ([]core.Rule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := repositorycache.GetOrFetch(ctx, s.cache, enabledRulesCacheKey(), s.base.ListEnabled)
	if err != nil {
		return nil, err
	}
	return cloneRules(rules), nil
}

func (s *CachedRuleStore) DeleteAll(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	existing, err := s.base.List(ctx)
	if err != nil {
		return err
	}
	if err := s.base.DeleteAll(ctx); err != nil {
		return err
	}
	for _, rule := range existing {
		if err := s.cache.Delete(ctx, RuleCacheKey(rule.ID)); err != nil {
			return err
		}
	}
	return s.evictLists(ctx)
}

func (s *CachedRuleStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rule store is not configured")
	}
	return nil
}

func (s *CachedRuleStore) evict(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, RuleCacheKey(id)); err != nil {
		return err
	}
	return s.evictLists(ctx)
}

func (s *CachedRuleStore) evictLists(ctx context.Context) error {
	if err := s.cache.Delete(ctx, enabledRulesCacheKey()); err != nil {
		return err
	}
	return s.cache.Delete(ctx, allRulesCacheKey())
}

func cloneRule(rule core.Rule) core.Rule {
	cloned := rule
	if rule.Channel.Encryption != nil {
		encryption := *rule.Channel.Encryption
		cloned.Channel.Encryption = &encryption
	}
	return cloned
}

func cloneRules(rules []core.Rule) []core.Rule {
	out := make([]core.Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, cloneRule(rule))
	}
	return out
}

var _ core.RuleStore = (*CachedRuleStore)(nil)
