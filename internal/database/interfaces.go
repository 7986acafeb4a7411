package database

import (
	"context"
	"database/sql"
)

// Service owns the activity journal database: its connection pool, schema
// and maintenance. The journal repository only ever sees DB().
type Service interface {
	Connect(ctx context.Context, config *Config) error
	Close() error
	Health(ctx context.Context) error

	DB() *sql.DB

	Migrate(ctx context.Context) error
	GetMigrationVersion(ctx context.Context) (int64, error)

	Optimize(ctx context.Context) error
}

// MigrationManager applies and inspects the journal schema
type MigrationManager interface {
	RunMigrations(ctx context.Context) error
	GetCurrentVersion(ctx context.Context) (int64, error)
	ValidateMigrations() error
}
