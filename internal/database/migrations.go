package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"

	"appscanner/internal/infrastructure/logging"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// journalMigrations holds the activity journal schema, rooted at the SQL files
func journalMigrations() (fs.FS, error) {
	return fs.Sub(embedMigrations, "migrations")
}

// MigrationRunner applies the embedded journal schema with a goose provider.
// Each runner owns its provider, so runners on different databases never share state.
type MigrationRunner struct {
	db     *sql.DB
	logger logging.Logger
}

var _ MigrationManager = (*MigrationRunner)(nil)

// NewMigrationRunner creates a runner for db
func NewMigrationRunner(db *sql.DB, logger logging.Logger) *MigrationRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MigrationRunner{db: db, logger: logger}
}

func (mr *MigrationRunner) provider() (*goose.Provider, error) {
	if mr.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	fsys, err := journalMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, mr.db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// RunMigrations applies every pending migration
func (mr *MigrationRunner) RunMigrations(ctx context.Context) error {
	provider, err := mr.provider()
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, result := range results {
		mr.logger.Debug("Applied migration",
			"version", result.Source.Version,
			"file", path.Base(result.Source.Path),
			"duration_ms", result.Duration.Milliseconds())
	}

	if version, err := provider.GetDBVersion(ctx); err == nil {
		mr.logger.Info("Activity journal schema ready", "version", version, "applied", len(results))
	}
	return nil
}

// GetCurrentVersion returns the newest applied migration version
func (mr *MigrationRunner) GetCurrentVersion(ctx context.Context) (int64, error) {
	provider, err := mr.provider()
	if err != nil {
		return 0, err
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// ValidateMigrations checks the embedded files without touching a database:
// at least one file, each with a numeric version prefix, no version twice.
func (mr *MigrationRunner) ValidateMigrations() error {
	fsys, err := journalMigrations()
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found in embedded filesystem")
	}

	versions := make(map[int64]string, len(names))
	for _, name := range names {
		version, err := goose.NumericComponent(name)
		if err != nil {
			return fmt.Errorf("invalid migration file %s: %w", name, err)
		}
		if other, dup := versions[version]; dup {
			return fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		versions[version] = name
	}

	mr.logger.Debug("Embedded migrations are valid", "count", len(names))
	return nil
}
