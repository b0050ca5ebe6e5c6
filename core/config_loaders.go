package core

import (
	"context"
	"strings"

	"github.com/goliatone/go-config/config"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultEnvPrefix    = "FORWARDER_"
	DefaultEnvDelimiter = "__"
)

// CfgxConfigProvider loads Config through a go-config container. Layers are
// merged by priority: the raw loader, then the config file, then prefixed
// environment variables. Values decode onto the defaults handed to Load.
type CfgxConfigProvider struct {
	Loader       RawConfigLoader
	Path         string
	OptionalFile bool
	EnvPrefix    string
	Logger       Logger
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// WithFile adds a YAML, JSON or TOML file layer. An optional file that does
// not exist is skipped.
func (p *CfgxConfigProvider) WithFile(path string, optional bool) *CfgxConfigProvider {
	p.Path = strings.TrimSpace(path)
	p.OptionalFile = optional
	return p
}

// WithEnv adds an environment layer. A double underscore separates nesting
// levels: FORWARDER_RETRY__WORKERS sets retry.workers.
func (p *CfgxConfigProvider) WithEnv(prefix string) *CfgxConfigProvider {
	p.EnvPrefix = prefix
	return p
}

func (p *CfgxConfigProvider) WithLogger(logger Logger) *CfgxConfigProvider {
	p.Logger = logger
	return p
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	builders, err := p.providers(ctx)
	if err != nil {
		return Config{}, err
	}

	// Solvers and trimming stay off: title prefixes carry meaningful
	// whitespace and message templates may contain "${" or "{{".
	container := config.New(defaults).
		WithConfigPath("").
		WithDefaultTransformers(false).
		WithSolvers().
		WithProvider(builders...).
		WithLogger(glog.Ensure(p.Logger))

	if err := container.Load(ctx); err != nil {
		return Config{}, err
	}
	return container.Raw(), nil
}

func (p *CfgxConfigProvider) providers(ctx context.Context) ([]config.ProviderBuilder[Config], error) {
	builders := make([]config.ProviderBuilder[Config], 0, 3)
	if p.Loader != nil {
		raw, err := p.Loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			builders = append(builders, config.DefaultValuesProvider[Config](raw))
		}
	}
	if p.Path != "" {
		file := config.FileProvider[Config](p.Path)
		if p.OptionalFile {
			file = config.OptionalProvider(file)
		}
		builders = append(builders, file)
	}
	if p.EnvPrefix != "" {
		builders = append(builders, config.EnvProvider[Config](p.EnvPrefix, DefaultEnvDelimiter))
	}
	return builders, nil
}
