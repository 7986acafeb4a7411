package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"appscanner/internal/database"
	repoerrors "appscanner/internal/infrastructure/errors"
	"appscanner/internal/testutils"
	"appscanner/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteActivityRepository {
	t.Helper()
	service, err := database.Open(context.Background(), database.TestConfig(), &testutils.RecordingLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })

	return NewSQLiteActivityRepository(service, &testutils.RecordingLogger{})
}

func entryAt(method, pkg string, outcome types.Outcome, at time.Time) types.ActivityEntry {
	return types.ActivityEntry{
		Method:      method,
		PackageName: pkg,
		Outcome:     outcome,
		DurationMs:  12,
		CreatedAt:   at,
	}
}

func TestActivityRepository_RecordAndRecent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", types.OutcomeOK, base)))
	require.NoError(t, repo.Record(ctx, entryAt("getAppDetails", "com.example.a", types.OutcomeEmpty, base.Add(time.Minute))))

	failed := entryAt("uninstallApp", "com.example.b", types.OutcomeError, base.Add(2*time.Minute))
	failed.Message = "Failed to uninstall app: main loop stopped"
	require.NoError(t, repo.Record(ctx, failed))

	entries, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "uninstallApp", entries[0].Method)
	assert.Equal(t, "com.example.b", entries[0].PackageName)
	assert.Equal(t, types.OutcomeError, entries[0].Outcome)
	assert.Equal(t, "Failed to uninstall app: main loop stopped", entries[0].Message)
	assert.Equal(t, int64(12), entries[0].DurationMs)
	assert.True(t, entries[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	assert.NotZero(t, entries[0].ID)

	assert.Equal(t, "getAppDetails", entries[1].Method)
	assert.Equal(t, "getInstalledApps", entries[2].Method)
}

func TestActivityRepository_RecentLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", types.OutcomeOK, base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestActivityRepository_RecentEmpty(t *testing.T) {
	repo := newTestRepository(t)

	entries, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestActivityRepository_RecordDefaults(t *testing.T) {
	repo := newTestRepository(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, types.ActivityEntry{
		Method:     "launchApp",
		Outcome:    types.OutcomeNotImplemented,
		DurationMs: -4,
	}))

	entries, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].CreatedAt.Equal(fixed))
	assert.Zero(t, entries[0].DurationMs)
	assert.Empty(t, entries[0].PackageName)
}

func TestActivityRepository_RecordValidation(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Record(context.Background(), types.ActivityEntry{Outcome: types.OutcomeOK})
	require.Error(t, err)
	assert.Equal(t, repoerrors.ErrCodeValidation.String(), err.(*repoerrors.BridgeError).GetCode())
}

func TestActivityRepository_RecordRejectsUnknownOutcome(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Record(context.Background(), types.ActivityEntry{Method: "getInstalledApps", Outcome: "exploded"})
	require.Error(t, err)
	assert.False(t, repoerrors.IsRetryable(err))
}

func TestActivityRepository_ForPackage(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Record(ctx, entryAt("getAppDetails", "com.example.a", types.OutcomeOK, base)))
	require.NoError(t, repo.Record(ctx, entryAt("getAppDetails", "com.example.b", types.OutcomeOK, base.Add(time.Second))))
	require.NoError(t, repo.Record(ctx, entryAt("uninstallApp", "com.example.a", types.OutcomeOK, base.Add(2*time.Second))))

	entries, err := repo.ForPackage(ctx, "com.example.a", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "uninstallApp", entries[0].Method)
	assert.Equal(t, "getAppDetails", entries[1].Method)

	_, err = repo.ForPackage(ctx, "", 10)
	assert.Error(t, err)
}

func TestActivityRepository_CountByOutcome(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	for _, outcome := range []types.Outcome{types.OutcomeOK, types.OutcomeOK, types.OutcomeError, types.OutcomeNotImplemented} {
		require.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", outcome, now)))
	}

	counts, err := repo.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[types.Outcome]int64{
		types.OutcomeOK:             2,
		types.OutcomeError:          1,
		types.OutcomeNotImplemented: 1,
	}, counts)
}

func TestActivityRepository_DeleteOlderThanAndPrune(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", types.OutcomeOK, now.AddDate(0, 0, -40))))
	require.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", types.OutcomeOK, now.AddDate(0, 0, -10))))
	require.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", types.OutcomeOK, now.Add(-time.Hour))))

	deleted, err := repo.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = repo.Prune(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].CreatedAt.Equal(now.Add(-time.Hour)))
}

func TestActivityRepository_ConcurrentRecord(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Record(ctx, entryAt("getInstalledApps", "", types.OutcomeOK, time.Now())))
		}()
	}
	wg.Wait()

	counts, err := repo.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(25), counts[types.OutcomeOK])
}

func TestActivityRepository_ClosedDatabase(t *testing.T) {
	service, err := database.Open(context.Background(), database.TestConfig(), nil)
	require.NoError(t, err)
	logger := &testutils.RecordingLogger{}
	repo := NewSQLiteActivityRepository(service, logger)
	require.NoError(t, service.Close())

	_, err = repo.Recent(context.Background(), 5)
	require.Error(t, err)
	assert.NotEmpty(t, logger.Calls("ERROR"))
}
