package gojob

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-job/queue/adapters/postgres"
)

const (
	QueueTable       = "forwarder_queue_messages"
	QueueDLQTable    = "forwarder_queue_dlq"
	QueueStatusTable = "forwarder_queue_status"

	// DefaultVisibilityTimeout covers one webhook round trip plus the store
	// writes around it.
	DefaultVisibilityTimeout = 2 * time.Minute
)

// QueueDialect maps a database/sql driver name onto the queue SQL dialect.
// Anything that is not postgres is treated as sqlite.
func QueueDialect(driver string) postgres.Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "postgresql":
		return postgres.DialectPostgres
	default:
		return postgres.DialectSQLite
	}
}

type QueueOption func(*[]postgres.Option)

func WithVisibilityTimeout(timeout time.Duration) QueueOption {
	return func(opts *[]postgres.Option) {
		*opts = append(*opts, postgres.WithVisibilityTimeout(timeout))
	}
}

func WithQueueClock(now func() time.Time) QueueOption {
	return func(opts *[]postgres.Option) {
		*opts = append(*opts, postgres.WithClock(now))
	}
}

// NewSQLQueue opens the durable delivery queue on db, creating its tables
// when missing. The returned adapter enqueues, schedules and dequeues.
func NewSQLQueue(ctx context.Context, db *sql.DB, driver string, opts ...QueueOption) (*postgres.Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("gojob: queue database is required")
	}
	storageOpts := []postgres.Option{
		postgres.WithDialect(QueueDialect(driver)),
		postgres.WithTableName(QueueTable),
		postgres.WithDLQTableName(QueueDLQTable),
		postgres.WithStatusTableName(QueueStatusTable),
		postgres.WithVisibilityTimeout(DefaultVisibilityTimeout),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&storageOpts)
		}
	}
	storage := postgres.NewStorage(db, storageOpts...)
	if err := storage.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("gojob: migrate queue tables: %w", err)
	}
	return postgres.NewAdapter(storage), nil
}
