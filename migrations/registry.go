// Package migrations exposes the embedded forwarder schema per SQL dialect and
// hands it to a persistence client for registration.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	forwarder "github.com/goliatone/go-forwarder"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const schemaRoot = "data/sql/migrations"

// Source is one dialect's migration directory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Registration reports what Register handed to the callback.
type Registration struct {
	Label    string
	Dialects []string
	Sources  []Source
}

// RegisterFunc receives one filesystem per selected dialect.
type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Registration)

func WithLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.Label = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		if next := normalize(dialects); len(next) > 0 {
			r.Dialects = next
		}
	}
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no schema for driver %q", driver)
	}
}

// Sources resolves the postgres schema at the root of the migration tree and
// the sqlite schema under its sqlite/ subdirectory.
func Sources(root ...fs.FS) ([]Source, error) {
	fsys := forwarder.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		fsys = root[0]
	}

	base, err := fs.Sub(fsys, schemaRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", schemaRoot, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: schemaRoot, FS: base},
		{Dialect: DialectSQLite, Path: schemaRoot + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
		}
	}
	return sources, nil
}

// Register calls registerFn once for every selected dialect. All dialects are
// selected unless WithDialects narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		Label:    "go-forwarder",
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources()
	if err != nil {
		return reg, err
	}
	for _, source := range sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.Label, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", source.Dialect, err)
		}
		reg.Sources = append(reg.Sources, source)
	}
	if len(reg.Sources) == 0 {
		return reg, fmt.Errorf("migrations: no schema for dialects %v", reg.Dialects)
	}
	return reg, nil
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
