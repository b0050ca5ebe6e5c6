package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	forwarder "github.com/goliatone/go-forwarder"
	"github.com/goliatone/go-forwarder/core"
	forwardermigrations "github.com/goliatone/go-forwarder/migrations"
	sqlstore "github.com/goliatone/go-forwarder/store/sql"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const ruleCacheTTL = 5 * time.Minute

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-forwarder"
}

// configProvider layers the config file under FORWARDER_* environment
// values. Without --config the default file is read when present.
func configProvider(opts *RootOptions) *core.CfgxConfigProvider {
	path := strings.TrimSpace(opts.ConfigPath)
	optional := path == ""
	if optional {
		path = defaultConfigFile
	}
	return core.NewCfgxConfigProvider(nil).
		WithFile(path, optional).
		WithEnv(core.DefaultEnvPrefix)
}

func loadConfig(ctx context.Context, opts *RootOptions) (core.Config, *core.CfgxConfigProvider, error) {
	provider := configProvider(opts)
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return core.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, provider, nil
}

func newPersistenceClient(cfg persistenceConfig, sqlDB *sql.DB) (*persistence.Client, error) {
	if cfg.driver == DriverPostgres {
		return persistence.New(cfg, sqlDB, pgdialect.New())
	}
	return persistence.New(cfg, sqlDB, sqlitedialect.New())
}

// openPersistence opens the database and registers the embedded migrations
// for the selected dialect. Migrations run only when migrate is set.
func openPersistence(ctx context.Context, opts *RootOptions, migrate bool) (*persistence.Client, error) {
	sqlDB, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	if opts.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := newPersistenceClient(persistenceConfig{
		driver: opts.Driver,
		server: opts.DSN,
		debug:  opts.Verbose,
	}, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("new persistence client: %w", err)
	}

	dialect, err := forwardermigrations.DialectForDriver(opts.Driver)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	_, err = forwardermigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, forwardermigrations.WithDialects(dialect))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if migrate {
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return client, nil
}

// runtime bundles the service with the resources it owns.
type runtime struct {
	config  core.Config
	service *forwarder.Service
	client  *persistence.Client
	logger  *glog.BaseLogger
}

func (r *runtime) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var err error
	if r.service != nil {
		err = r.service.Close(ctx)
	}
	if r.client != nil {
		if closeErr := r.client.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// runtimeOption contributes service options that need the opened database.
type runtimeOption func(ctx context.Context, client *persistence.Client) (forwarder.Option, error)

func openRuntime(ctx context.Context, opts *RootOptions, logger *glog.BaseLogger, migrate bool, extra ...runtimeOption) (*runtime, error) {
	cfg, provider, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	client, err := openPersistence(ctx, opts, migrate)
	if err != nil {
		return nil, err
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = ruleCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("new rule cache: %w", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithRuleCache(cacheService))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("new repository factory: %w", err)
	}

	options := []forwarder.Option{
		forwarder.WithLogger(logger),
		forwarder.WithConfigProvider(provider),
		forwarder.WithPersistenceClient(client),
		forwarder.WithRepositoryFactory(factory),
		forwarder.WithLoggerProvider(logger),
	}
	for _, build := range extra {
		if build == nil {
			continue
		}
		option, err := build(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		options = append(options, option)
	}

	svc, err := forwarder.NewService(cfg, options...)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("new service: %w", err)
	}
	return &runtime{config: svc.Config(), service: svc, client: client, logger: logger}, nil
}
