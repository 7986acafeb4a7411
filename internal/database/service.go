package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	dberrors "appscanner/internal/infrastructure/errors"
	"appscanner/internal/infrastructure/logging"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteService implements Service for SQLite.
//
// Lifecycle: NewSQLiteService, Connect, optionally Migrate, hand DB() to
// repositories, then Close.
type SQLiteService struct {
	db              *sql.DB
	migrationRunner MigrationManager
	logger          logging.Logger
}

var _ Service = (*SQLiteService)(nil)

// NewSQLiteService creates a new SQLite database service
func NewSQLiteService(logger logging.Logger) *SQLiteService {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SQLiteService{
		logger: logger,
	}
}

// Open connects with config and applies migrations when AutoMigrate is set
func Open(ctx context.Context, config *Config, logger logging.Logger) (*SQLiteService, error) {
	if err := config.Validate(); err != nil {
		return nil, dberrors.ValidationError("Open", "config", config.Path, err.Error())
	}

	service := NewSQLiteService(logger)
	if err := service.Connect(ctx, config); err != nil {
		return nil, err
	}

	if config.AutoMigrate {
		if err := service.Migrate(ctx); err != nil {
			service.Close()
			return nil, err
		}
	}
	return service, nil
}

// Connect establishes a connection to the SQLite database
func (s *SQLiteService) Connect(ctx context.Context, config *Config) error {
	// never leak a previous connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close existing database connection", "error", err)
		}
		s.db = nil
		s.migrationRunner = nil
	}

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return dberrors.ConnectionError("Connect", fmt.Sprintf("failed to open database: %v", err))
	}

	s.configureConnectionPool(db, config)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dberrors.ConnectionError("Connect", fmt.Sprintf("failed to ping database: %v", err))
	}

	s.db = db
	s.migrationRunner = NewMigrationRunner(db, s.logger)

	s.logger.Info("Connected to SQLite database", "path", config.Path)
	return nil
}

// Close closes the database connection
func (s *SQLiteService) Close() error {
	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return dberrors.ConnectionError("Close", fmt.Sprintf("failed to close database: %v", err))
	}

	s.db = nil
	s.migrationRunner = nil

	s.logger.Debug("Closed SQLite database connection")
	return nil
}

// Migrate validates and runs the embedded migrations
func (s *SQLiteService) Migrate(ctx context.Context) error {
	if s.db == nil {
		return dberrors.ConnectionError("Migrate", "database not connected")
	}

	if s.migrationRunner == nil {
		return dberrors.ValidationError("Migrate", "migrationRunner", "nil", "migration runner not initialized")
	}

	if err := s.migrationRunner.ValidateMigrations(); err != nil {
		return dberrors.WrapWithContext("Migrate", err, map[string]string{
			"phase": "validation",
		})
	}

	if err := s.migrationRunner.RunMigrations(ctx); err != nil {
		return dberrors.WrapWithContext("Migrate", err, map[string]string{
			"phase": "execution",
		})
	}

	return nil
}

// Health pings the database and runs a trivial query
func (s *SQLiteService) Health(ctx context.Context) error {
	if s.db == nil {
		return dberrors.ConnectionError("Health", "database not connected")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return dberrors.WrapWithContext("Health", err, map[string]string{
			"phase": "ping",
		})
	}

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return dberrors.WrapWithContext("Health", err, map[string]string{
			"phase": "query",
		})
	}

	if result != 1 {
		return dberrors.ValidationError("Health", "query_result", fmt.Sprintf("%d", result), "expected result 1")
	}

	return nil
}

// DB returns the underlying database connection for use by repositories
func (s *SQLiteService) DB() *sql.DB {
	return s.db
}

// GetMigrationVersion returns the current migration version
func (s *SQLiteService) GetMigrationVersion(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, dberrors.ConnectionError("GetMigrationVersion", "database not connected")
	}
	if s.migrationRunner == nil {
		return 0, dberrors.ValidationError("GetMigrationVersion", "migrationRunner", "nil", "migration runner not initialized")
	}

	version, err := s.migrationRunner.GetCurrentVersion(ctx)
	if err != nil {
		return 0, dberrors.Wrap("GetMigrationVersion", err)
	}
	return version, nil
}

// Optimize runs ANALYZE and VACUUM
func (s *SQLiteService) Optimize(ctx context.Context) error {
	if s.db == nil {
		return dberrors.ConnectionError("Optimize", "database not connected")
	}

	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return dberrors.WrapWithContext("Optimize", err, map[string]string{
			"phase": "analyze",
		})
	}

	// no-op outside WAL mode
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("wal_checkpoint failed", "error", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return dberrors.WrapWithContext("Optimize", err, map[string]string{
			"phase": "vacuum",
		})
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		s.logger.Warn("PRAGMA optimize failed", "error", err)
	}

	s.logger.Info("Database optimization completed")
	return nil
}

// configureConnectionPool limits SQLite to one connection unless WAL is on
func (s *SQLiteService) configureConnectionPool(db *sql.DB, config *Config) {
	switch {
	case config.ForceSingleConnection || config.IsInMemory():
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		s.logger.Debug("Configured SQLite for single connection mode", "forced", config.ForceSingleConnection)
	case !strings.EqualFold(config.JournalMode, "WAL"):
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		s.logger.Debug("Configured SQLite for single connection mode (non-WAL journal mode)",
			"journalMode", config.JournalMode)
	default:
		// WAL allows concurrent readers; stay conservative anyway
		maxConns := min(max(config.MaxConnections, 1), 4)
		idleConns := max(min(config.MaxIdleConns, maxConns), 1)

		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(idleConns)
		s.logger.Debug("Configured SQLite for limited connection pool (WAL mode)",
			"maxOpenConns", maxConns, "maxIdleConns", idleConns)
	}

	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}
