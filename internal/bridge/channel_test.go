package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"appscanner/internal/platform/platformtest"
	"appscanner/internal/testutils"
	"appscanner/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJournal struct {
	mu      sync.Mutex
	entries []types.ActivityEntry
	err     error
}

func (j *recordingJournal) Record(ctx context.Context, entry types.ActivityEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return j.err
}

func (j *recordingJournal) last(t *testing.T) types.ActivityEntry {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	require.NotEmpty(t, j.entries)
	return j.entries[len(j.entries)-1]
}

type panickingOps struct{}

func (panickingOps) ListInstalledApplications(ctx context.Context) ([]types.InstalledApplication, error) {
	panic("host binder died")
}

func (panickingOps) GetApplicationDetail(ctx context.Context, packageName string) (*types.ApplicationDetail, error) {
	panic("host binder died")
}

func (panickingOps) RequestUninstall(ctx context.Context, packageName string) (bool, error) {
	panic("host binder died")
}

func newTestChannel(t *testing.T, host *platformtest.FakeHost) (*Channel, *recordingJournal) {
	t.Helper()
	inv, _, logger := newTestInventory(t, host, Options{})
	journal := &recordingJournal{}
	return NewChannel(inv, journal, logger), journal
}

func sampleHost() *platformtest.FakeHost {
	return &platformtest.FakeHost{Packages: []platformtest.FakePackage{
		platformtest.UserApp("com.example.notes", "Notes"),
		platformtest.UserApp("com.example.maps", "Maps"),
	}}
}

func TestChannel_GetInstalledApps(t *testing.T) {
	ch, journal := newTestChannel(t, sampleHost())

	reply := ch.Handle(context.Background(), MethodCall{Method: MethodGetInstalledApps})
	require.False(t, reply.IsError())

	list, ok := reply.Value.([]map[string]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "com.example.notes", list[0]["packageName"])
	assert.Equal(t, "Notes", list[0]["appName"])
	assert.Equal(t, "/data/app/com.example.notes/base.apk", list[0]["apkPath"])
	assert.NotNil(t, list[0]["icon"])

	entry := journal.last(t)
	assert.Equal(t, MethodGetInstalledApps, entry.Method)
	assert.Equal(t, types.OutcomeOK, entry.Outcome)
}

func TestChannel_GetInstalledAppsFailure(t *testing.T) {
	ch, journal := newTestChannel(t, &platformtest.FakeHost{ListErr: errors.New("device offline")})

	reply := ch.Handle(context.Background(), MethodCall{Method: MethodGetInstalledApps})
	require.True(t, reply.IsError())
	assert.Equal(t, "ERROR", reply.Error.Code)
	assert.Equal(t, "Failed to get installed apps: device offline", reply.Error.Message)
	assert.Nil(t, reply.Error.Details)
	assert.Nil(t, reply.Value)

	entry := journal.last(t)
	assert.Equal(t, types.OutcomeError, entry.Outcome)
	assert.Equal(t, reply.Error.Message, entry.Message)
}

func TestChannel_GetInstalledAppsEmpty(t *testing.T) {
	ch, journal := newTestChannel(t, &platformtest.FakeHost{})

	reply := ch.Handle(context.Background(), MethodCall{Method: MethodGetInstalledApps})
	require.False(t, reply.IsError())
	assert.Equal(t, []map[string]any{}, reply.Value)
	assert.Equal(t, types.OutcomeEmpty, journal.last(t).Outcome)
}

func TestChannel_GetAppDetails(t *testing.T) {
	ch, journal := newTestChannel(t, sampleHost())

	reply := ch.Handle(context.Background(), MethodCall{
		Method:    MethodGetAppDetails,
		Arguments: map[string]any{"packageName": "com.example.maps"},
	})
	require.False(t, reply.IsError())

	detail, ok := reply.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "com.example.maps", detail["packageName"])
	assert.Equal(t, "Maps", detail["appName"])
	assert.Equal(t, "1.0.0", detail["versionName"])
	assert.Equal(t, int64(1), detail["versionCode"])
	assert.Equal(t, int64(1<<20), detail["apkSize"])
	assert.Equal(t, false, detail["isSystemApp"])
	assert.Equal(t, true, detail["isEnabled"])
	assert.Equal(t, 34, detail["targetSdkVersion"])
	assert.Equal(t, 24, detail["minSdkVersion"])

	entry := journal.last(t)
	assert.Equal(t, "com.example.maps", entry.PackageName)
	assert.Equal(t, types.OutcomeOK, entry.Outcome)
}

func TestChannel_GetAppDetailsUnknownIsEmptyMap(t *testing.T) {
	ch, journal := newTestChannel(t, sampleHost())

	reply := ch.Handle(context.Background(), MethodCall{
		Method:    MethodGetAppDetails,
		Arguments: map[string]any{"packageName": "com.nonexistent.pkg"},
	})
	require.False(t, reply.IsError())
	assert.Equal(t, map[string]any{}, reply.Value)
	assert.Equal(t, types.OutcomeEmpty, journal.last(t).Outcome)
}

func TestChannel_PackageNameRequired(t *testing.T) {
	cases := map[string]map[string]any{
		"absent":     nil,
		"empty":      {"packageName": ""},
		"non-string": {"packageName": 42},
		"nil value":  {"packageName": nil},
	}

	for _, method := range []string{MethodGetAppDetails, MethodUninstallApp} {
		for name, args := range cases {
			t.Run(method+"/"+name, func(t *testing.T) {
				host := sampleHost()
				ch, journal := newTestChannel(t, host)

				reply := ch.Handle(context.Background(), MethodCall{Method: method, Arguments: args})
				require.True(t, reply.IsError())
				assert.Equal(t, "ERROR", reply.Error.Code)
				assert.Equal(t, "Package name is required", reply.Error.Message)
				assert.Nil(t, reply.Error.Details)
				assert.Zero(t, host.CallCount("Package"))
				assert.Zero(t, host.CallCount("StartUninstall"))
				assert.Equal(t, types.OutcomeError, journal.last(t).Outcome)
			})
		}
	}
}

func TestChannel_UninstallApp(t *testing.T) {
	host := sampleHost()
	inv, loop, logger := newTestInventory(t, host, Options{})
	ch := NewChannel(inv, nil, logger)

	reply := ch.Handle(context.Background(), MethodCall{
		Method:    MethodUninstallApp,
		Arguments: map[string]any{"packageName": "com.example.notes"},
	})
	require.False(t, reply.IsError())
	assert.Equal(t, true, reply.Value)

	require.NoError(t, loop.Invoke(func() {}))
	assert.Equal(t, []string{"com.example.notes"}, host.UninstallRequests())
}

func TestChannel_UninstallAppStoppedLoop(t *testing.T) {
	inv, loop, logger := newTestInventory(t, sampleHost(), Options{})
	loop.Stop()
	ch := NewChannel(inv, nil, logger)

	reply := ch.Handle(context.Background(), MethodCall{
		Method:    MethodUninstallApp,
		Arguments: map[string]any{"packageName": "com.example.notes"},
	})
	require.True(t, reply.IsError())
	assert.Equal(t, "Failed to uninstall app: main loop stopped", reply.Error.Message)
}

func TestChannel_UnknownMethodNotImplemented(t *testing.T) {
	ch, journal := newTestChannel(t, sampleHost())

	reply := ch.Handle(context.Background(), MethodCall{Method: "launchApp"})
	assert.True(t, reply.NotImplemented)
	assert.False(t, reply.IsError())
	assert.Nil(t, reply.Value)

	entry := journal.last(t)
	assert.Equal(t, "launchApp", entry.Method)
	assert.Equal(t, types.OutcomeNotImplemented, entry.Outcome)
}

func TestChannel_RecoversHandlerPanic(t *testing.T) {
	logger := &testutils.RecordingLogger{}
	journal := &recordingJournal{}
	ch := NewChannel(panickingOps{}, journal, logger)

	reply := ch.Handle(context.Background(), MethodCall{Method: MethodGetInstalledApps})
	require.True(t, reply.IsError())
	assert.Equal(t, "Failed to get installed apps: host binder died", reply.Error.Message)

	reply = ch.Handle(context.Background(), MethodCall{
		Method:    MethodUninstallApp,
		Arguments: map[string]any{"packageName": "com.example.notes"},
	})
	require.True(t, reply.IsError())
	assert.Equal(t, "Failed to uninstall app: host binder died", reply.Error.Message)

	assert.Len(t, logger.Calls("ERROR"), 2)
	assert.Equal(t, types.OutcomeError, journal.last(t).Outcome)
}

func TestChannel_JournalFailureDoesNotChangeReply(t *testing.T) {
	inv, _, logger := newTestInventory(t, sampleHost(), Options{})
	journal := &recordingJournal{err: errors.New("database is locked")}
	ch := NewChannel(inv, journal, logger)

	reply := ch.Handle(context.Background(), MethodCall{Method: MethodGetInstalledApps})
	require.False(t, reply.IsError())
	assert.Len(t, reply.Value, 2)

	warns := logger.Calls("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "Activity journal write failed", warns[0].Msg)
}

func TestReply_JSONShape(t *testing.T) {
	raw, err := json.Marshal(Failure("Package name is required"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"ERROR","message":"Package name is required","details":null}}`, string(raw))

	raw, err = json.Marshal(NotImplementedReply())
	require.NoError(t, err)
	assert.JSONEq(t, `{"notImplemented":true}`, string(raw))

	raw, err = json.Marshal(Success(true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":true}`, string(raw))
}
