package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"appscanner/internal/database"
	repoerrors "appscanner/internal/infrastructure/errors"
	"appscanner/internal/infrastructure/logging"
	"appscanner/internal/types"
)

const (
	// DefaultRecentLimit applies when a caller passes a non-positive limit
	DefaultRecentLimit = 50
	maxRecentLimit     = 1000
)

const (
	insertActivitySQL = `INSERT INTO bridge_activity (method, package_name, outcome, message, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	selectActivityColumns = `SELECT id, method, package_name, outcome, message, duration_ms, created_at FROM bridge_activity`
)

// SQLiteActivityRepository implements ActivityRepository on the journal database
type SQLiteActivityRepository struct {
	db          *sql.DB
	retryConfig *repoerrors.RetryConfig
	logger      logging.Logger
	now         func() time.Time
}

var _ ActivityRepository = (*SQLiteActivityRepository)(nil)

// NewSQLiteActivityRepository creates a repository over a connected database service
func NewSQLiteActivityRepository(dbService database.Service, logger logging.Logger) *SQLiteActivityRepository {
	return NewSQLiteActivityRepositoryWithConfig(dbService, nil, logger)
}

// NewSQLiteActivityRepositoryWithConfig creates a repository with a custom retry policy
func NewSQLiteActivityRepositoryWithConfig(dbService database.Service, retryConfig *repoerrors.RetryConfig, logger logging.Logger) *SQLiteActivityRepository {
	if retryConfig == nil {
		retryConfig = repoerrors.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &SQLiteActivityRepository{
		db:          dbService.DB(),
		retryConfig: retryConfig,
		logger:      logger,
		now:         time.Now,
	}
}

// Record inserts entry, retrying on lock contention
func (r *SQLiteActivityRepository) Record(ctx context.Context, entry types.ActivityEntry) error {
	if entry.Method == "" {
		err := repoerrors.ValidationError("Record", "method", "", "method is required")
		logging.LogError(r.logger, err, "Record", nil)
		return err
	}
	if entry.DurationMs < 0 {
		entry.DurationMs = 0
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	return repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		_, err := r.db.ExecContext(ctx, insertActivitySQL,
			entry.Method,
			entry.PackageName,
			string(entry.Outcome),
			entry.Message,
			entry.DurationMs,
			entry.CreatedAt.UTC(),
		)
		if err != nil {
			repoErr := repoerrors.WrapWithContext("Record", err, map[string]string{
				"method":  entry.Method,
				"outcome": string(entry.Outcome),
			})
			if repoerrors.IsRetryable(repoErr) {
				r.logger.Debug("Retryable error in Record", "error", err, "method", entry.Method)
			} else {
				logging.LogError(r.logger, repoErr, "Record", nil)
			}
			return repoErr
		}
		return nil
	}, "Record")
}

// Recent returns the newest entries first
func (r *SQLiteActivityRepository) Recent(ctx context.Context, limit int) ([]types.ActivityEntry, error) {
	return r.query(ctx, "Recent",
		selectActivityColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`,
		clampLimit(limit))
}

// ForPackage returns the newest entries for one package first
func (r *SQLiteActivityRepository) ForPackage(ctx context.Context, packageName string, limit int) ([]types.ActivityEntry, error) {
	if packageName == "" {
		return nil, repoerrors.ValidationError("ForPackage", "packageName", "", "package name is required")
	}
	return r.query(ctx, "ForPackage",
		selectActivityColumns+` WHERE package_name = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		packageName, clampLimit(limit))
}

func (r *SQLiteActivityRepository) query(ctx context.Context, op, query string, args ...any) ([]types.ActivityEntry, error) {
	var entries []types.ActivityEntry

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return repoerrors.Wrap(op, err)
		}
		defer rows.Close()

		entries = entries[:0]
		for rows.Next() {
			entry, err := scanActivity(rows)
			if err != nil {
				return repoerrors.Wrap(op, err)
			}
			entries = append(entries, entry)
		}
		if err := rows.Err(); err != nil {
			return repoerrors.Wrap(op, err)
		}
		return nil
	}, op)
	if err != nil {
		logging.LogError(r.logger, err, op, nil)
		return nil, err
	}

	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	return entries, nil
}

func scanActivity(rows *sql.Rows) (types.ActivityEntry, error) {
	var (
		entry   types.ActivityEntry
		outcome string
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.Method,
		&entry.PackageName,
		&outcome,
		&entry.Message,
		&entry.DurationMs,
		&entry.CreatedAt,
	); err != nil {
		return entry, fmt.Errorf("scan activity row: %w", err)
	}
	entry.Outcome = types.Outcome(outcome)
	entry.CreatedAt = entry.CreatedAt.Local()
	return entry, nil
}

// CountByOutcome tallies entries per outcome; outcomes never seen are absent
func (r *SQLiteActivityRepository) CountByOutcome(ctx context.Context) (map[types.Outcome]int64, error) {
	counts := make(map[types.Outcome]int64)

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		rows, err := r.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM bridge_activity GROUP BY outcome`)
		if err != nil {
			return repoerrors.Wrap("CountByOutcome", err)
		}
		defer rows.Close()

		clear(counts)
		for rows.Next() {
			var (
				outcome string
				n       int64
			)
			if err := rows.Scan(&outcome, &n); err != nil {
				return repoerrors.Wrap("CountByOutcome", err)
			}
			counts[types.Outcome(outcome)] = n
		}
		return rows.Err()
	}, "CountByOutcome")
	if err != nil {
		logging.LogError(r.logger, err, "CountByOutcome", nil)
		return nil, err
	}
	return counts, nil
}

// DeleteOlderThan removes entries created strictly before cutoff
func (r *SQLiteActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var deleted int64

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		result, err := r.db.ExecContext(ctx, `DELETE FROM bridge_activity WHERE created_at < ?`, cutoff.UTC())
		if err != nil {
			return repoerrors.WrapWithContext("DeleteOlderThan", err, map[string]string{
				"cutoff": cutoff.Format(time.RFC3339),
			})
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return repoerrors.Wrap("DeleteOlderThan", err)
		}
		return nil
	}, "DeleteOlderThan")
	if err != nil {
		logging.LogError(r.logger, err, "DeleteOlderThan", nil)
		return 0, err
	}

	logging.LogOperation(r.logger, "DeleteOlderThan", time.Since(start), map[string]interface{}{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	})
	return deleted, nil
}

// Prune applies a retention window in days; zero or less keeps everything
func (r *SQLiteActivityRepository) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	return r.DeleteOlderThan(ctx, r.now().AddDate(0, 0, -retentionDays))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return min(limit, maxRecentLimit)
}
