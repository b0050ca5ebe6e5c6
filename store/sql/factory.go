package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-forwarder/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithRuleCache fronts the rule store with a repository cache.
func WithRuleCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.ruleCache = cacheService
	}
}

type RepositoryFactory struct {
	db        *bun.DB
	ruleCache repositorycache.CacheService

	messageStore  *MessageStore
	ruleStore     core.RuleStore
	jobStore      *JobStore
	logStore      *LogStore
	settingsStore *SettingsStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.messageStore != nil && f.jobStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) MessageStore() core.MessageStore {
	if f == nil || f.messageStore == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) RuleStore() core.RuleStore {
	if f == nil {
		return nil
	}
	return f.ruleStore
}

func (f *RepositoryFactory) JobStore() core.JobStore {
	if f == nil || f.jobStore == nil {
		return nil
	}
	return f.jobStore
}

func (f *RepositoryFactory) LogStore() core.LogStore {
	if f == nil || f.logStore == nil {
		return nil
	}
	return f.logStore
}

func (f *RepositoryFactory) SettingsStore() core.SettingsStore {
	if f == nil || f.settingsStore == nil {
		return nil
	}
	return f.settingsStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	messageStore, err := NewMessageStore(f.db)
	if err != nil {
		return err
	}
	ruleStore, err := NewRuleStore(f.db)
	if err != nil {
		return err
	}
	jobStore, err := NewJobStore(f.db)
	if err != nil {
		return err
	}
	logStore, err := NewLogStore(f.db)
	if err != nil {
		return err
	}
	settingsStore, err := NewSettingsStore(f.db)
	if err != nil {
		return err
	}

	f.messageStore = messageStore
	f.ruleStore = ruleStore
	if f.ruleCache != nil {
		cached, err := NewCachedRuleStore(ruleStore, f.ruleCache)
		if err != nil {
			return err
		}
		f.ruleStore = cached
	}
	f.jobStore = jobStore
	f.logStore = logStore
	f.settingsStore = settingsStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
