package repository

import (
	"context"
	"time"

	"appscanner/internal/types"
)

// ActivityRepository persists the bridge activity journal
type ActivityRepository interface {
	// Record appends one handled channel call
	Record(ctx context.Context, entry types.ActivityEntry) error

	// Recent returns up to limit entries, newest first
	Recent(ctx context.Context, limit int) ([]types.ActivityEntry, error)
	// ForPackage returns up to limit entries touching packageName, newest first
	ForPackage(ctx context.Context, packageName string, limit int) ([]types.ActivityEntry, error)
	// CountByOutcome tallies every recorded entry by outcome
	CountByOutcome(ctx context.Context) (map[types.Outcome]int64, error)

	// DeleteOlderThan prunes entries created before cutoff and reports how many went
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
