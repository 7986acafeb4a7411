package bridge

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"appscanner/internal/icon"
	bridgeerrors "appscanner/internal/infrastructure/errors"
	"appscanner/internal/platform"
	"appscanner/internal/platform/platformtest"
	"appscanner/internal/testutils"
	"appscanner/internal/types"
	"appscanner/internal/uithread"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInventory(t *testing.T, host *platformtest.FakeHost, opts Options) (*Inventory, *uithread.Loop, *testutils.RecordingLogger) {
	t.Helper()
	logger := &testutils.RecordingLogger{}
	loop := uithread.NewLoop(logger)
	t.Cleanup(loop.Stop)
	return NewInventory(host, loop, logger, opts), loop, logger
}

func TestListInstalledApplications_ReturnsEverySummary(t *testing.T) {
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{
		platformtest.UserApp("com.example.notes", "Notes"),
		platformtest.UserApp("com.example.maps", "Maps"),
	}}
	inv, _, _ := newTestInventory(t, host, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, "com.example.notes", apps[0].PackageName)
	assert.Equal(t, "Notes", apps[0].AppName)
	assert.Equal(t, "/data/app/com.example.notes/base.apk", apps[0].ApkPath)
	assert.Equal(t, "com.example.maps", apps[1].PackageName)

	for _, app := range apps {
		require.NotNil(t, app.Icon)
		img, err := icon.Decode(app.Icon)
		require.NoError(t, err)
		assert.False(t, img.Bounds().Empty())
	}
}

func TestListInstalledApplications_NoDuplicateIdentifiers(t *testing.T) {
	host := &platformtest.FakeHost{
		Duplicates: true,
		Packages: []platformtest.FakePackage{
			platformtest.UserApp("com.example.a", "A"),
			platformtest.UserApp("com.example.b", "B"),
		},
	}
	inv, _, _ := newTestInventory(t, host, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, app := range apps {
		assert.False(t, seen[app.PackageName], "duplicate %s", app.PackageName)
		seen[app.PackageName] = true
	}
	assert.Len(t, apps, 2)
	assert.Equal(t, 2, host.CallCount("Presentation"))
}

func TestListInstalledApplications_SkipsInaccessiblePackages(t *testing.T) {
	broken := platformtest.UserApp("com.example.hidden", "Hidden")
	broken.LabelErr = errors.New("label resource missing")

	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{
		platformtest.UserApp("com.example.visible", "Visible"),
		broken,
	}}
	inv, _, logger := newTestInventory(t, host, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "com.example.visible", apps[0].PackageName)

	var skipped bool
	for _, call := range logger.Calls("DEBUG") {
		if call.Msg == "Skipping inaccessible package" {
			skipped = true
			assert.Equal(t, "com.example.hidden", testutils.FieldsToMap(t, call.Fields)["package"])
		}
	}
	assert.True(t, skipped)
}

func TestListInstalledApplications_IconFailureLeavesIconNil(t *testing.T) {
	noIcon := platformtest.UserApp("com.example.plain", "Plain")
	noIcon.Icon = nil
	noIcon.IconErr = errors.New("no drawable")

	empty := platformtest.UserApp("com.example.empty", "Empty")
	empty.Icon = image.NewNRGBA(image.Rect(0, 0, 0, 0))

	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{noIcon, empty}}
	inv, _, _ := newTestInventory(t, host, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Nil(t, apps[0].Icon)
	assert.Nil(t, apps[1].Icon)
	assert.Equal(t, "Plain", apps[0].AppName)
}

func TestListInstalledApplications_EmptyLabelFallsBackToName(t *testing.T) {
	pkg := platformtest.UserApp("com.example.nolabel", "")
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
	inv, _, _ := newTestInventory(t, host, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "com.example.nolabel", apps[0].AppName)
}

func TestListInstalledApplications_HostQueryFailure(t *testing.T) {
	host := &platformtest.FakeHost{ListErr: errors.New("device offline")}
	inv, _, _ := newTestInventory(t, host, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	assert.Nil(t, apps)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsOperationFailure(err))
	assert.Contains(t, err.Error(), "device offline")
}

func TestListInstalledApplications_EmptyHost(t *testing.T) {
	inv, _, _ := newTestInventory(t, &platformtest.FakeHost{}, Options{})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
}

func TestListInstalledApplications_CancelledContext(t *testing.T) {
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{
		platformtest.UserApp("com.example.a", "A"),
	}}
	inv, _, _ := newTestInventory(t, host, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.ListInstalledApplications(ctx)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsOperationFailure(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListInstalledApplications_IconMaxSize(t *testing.T) {
	pkg := platformtest.UserApp("com.example.big", "Big")
	pkg.Icon = platformtest.SolidIcon(512, color.NRGBA{R: 0xff, A: 0xff})
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
	inv, _, _ := newTestInventory(t, host, Options{IconMaxSize: 64})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)

	img, err := icon.Decode(apps[0].Icon)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestGetApplicationDetail_EmptyNameSkipsHost(t *testing.T) {
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{
		platformtest.UserApp("com.example.a", "A"),
	}}
	inv, _, _ := newTestInventory(t, host, Options{})

	detail, err := inv.GetApplicationDetail(context.Background(), "")
	assert.Nil(t, detail)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsMissingArgument(err))
	assert.Zero(t, host.CallCount("Package"))
	assert.Zero(t, host.CallCount("Presentation"))
}

func TestGetApplicationDetail_UnknownPackageIsEmpty(t *testing.T) {
	inv, _, _ := newTestInventory(t, &platformtest.FakeHost{}, Options{})

	detail, err := inv.GetApplicationDetail(context.Background(), "com.nonexistent.pkg")
	assert.NoError(t, err)
	assert.Nil(t, detail)
}

func TestGetApplicationDetail_TracesFailureCode(t *testing.T) {
	pkg := platformtest.UserApp("com.example.flaky", "Flaky")
	pkg.SizeErr = errors.New("permission denied")
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
	inv, _, logger := newTestInventory(t, host, Options{})

	_, err := inv.GetApplicationDetail(context.Background(), "com.nonexistent.pkg")
	require.NoError(t, err)
	_, err = inv.GetApplicationDetail(context.Background(), "com.example.flaky")
	require.NoError(t, err)

	codes := map[string]string{}
	for _, call := range logger.Calls("DEBUG") {
		fields := testutils.FieldsToMap(t, call.Fields)
		if pkgName, ok := fields["package"].(string); ok && fields["error_code"] != nil {
			codes[pkgName] = call.Msg + " " + fields["error_code"].(string)
		}
	}
	assert.Equal(t, "Package not installed NOT_FOUND", codes["com.nonexistent.pkg"])
	assert.Equal(t, "Package detail unavailable PERMISSION", codes["com.example.flaky"])
}

func TestGetApplicationDetail_FullRecord(t *testing.T) {
	installed := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	pkg := platformtest.UserApp("com.android.chrome", "Chrome")
	pkg.Info.VersionName = "120.0.6099.144"
	pkg.Info.VersionCode = 609914433
	pkg.Info.FirstInstallTime = installed
	pkg.Info.Flags = platform.ApplicationFlags{System: true, UpdatedSystem: true}
	pkg.Info.TargetSdk = 34
	pkg.Info.MinSdk = 29
	pkg.Size = 123456789

	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
	inv, _, _ := newTestInventory(t, host, Options{})

	detail, err := inv.GetApplicationDetail(context.Background(), "com.android.chrome")
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, "com.android.chrome", detail.PackageName)
	assert.Equal(t, "Chrome", detail.AppName)
	assert.Equal(t, "/data/app/com.android.chrome/base.apk", detail.ApkPath)
	assert.Equal(t, "120.0.6099.144", detail.VersionName)
	assert.Equal(t, int64(609914433), detail.VersionCode)
	assert.Equal(t, "2024-03-09 14:05:07", detail.InstallDate)
	assert.Equal(t, int64(123456789), detail.ApkSize)
	assert.True(t, detail.IsSystemApp)
	assert.True(t, detail.IsUpdatedSystemApp)
	assert.True(t, detail.IsEnabled)
	assert.Equal(t, 34, detail.TargetSdkVersion)
	require.NotNil(t, detail.MinSdkVersion)
	assert.Equal(t, 29, *detail.MinSdkVersion)
	require.NotNil(t, detail.Icon)

	_, err = time.ParseInLocation(types.InstallDateLayout, detail.InstallDate, time.Local)
	assert.NoError(t, err)
}

func TestGetApplicationDetail_MinSdkOptional(t *testing.T) {
	pkg := platformtest.UserApp("com.example.legacy", "Legacy")
	pkg.Info.MinSdk = 0
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
	inv, _, _ := newTestInventory(t, host, Options{})

	detail, err := inv.GetApplicationDetail(context.Background(), "com.example.legacy")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Nil(t, detail.MinSdkVersion)
	_, present := detail.ToMap()["minSdkVersion"]
	assert.False(t, present)
}

func TestGetApplicationDetail_AnyFailureIsEmpty(t *testing.T) {
	cases := map[string]func(p *platformtest.FakePackage){
		"info":  func(p *platformtest.FakePackage) { p.InfoErr = errors.New("dumpsys failed") },
		"label": func(p *platformtest.FakePackage) { p.LabelErr = errors.New("no label") },
		"size":  func(p *platformtest.FakePackage) { p.SizeErr = errors.New("permission denied") },
	}

	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			pkg := platformtest.UserApp("com.example.flaky", "Flaky")
			breakIt(&pkg)
			host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
			inv, _, _ := newTestInventory(t, host, Options{})

			detail, err := inv.GetApplicationDetail(context.Background(), "com.example.flaky")
			assert.NoError(t, err)
			assert.Nil(t, detail)
		})
	}
}

func TestGetApplicationDetail_IconFailureKeepsRecord(t *testing.T) {
	pkg := platformtest.UserApp("com.example.noicon", "NoIcon")
	pkg.Icon = nil
	pkg.IconErr = errors.New("icon resource missing")
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{pkg}}
	inv, _, _ := newTestInventory(t, host, Options{})

	detail, err := inv.GetApplicationDetail(context.Background(), "com.example.noicon")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Nil(t, detail.Icon)
	assert.Equal(t, "NoIcon", detail.AppName)
}

func TestRequestUninstall_AcknowledgesAndDispatches(t *testing.T) {
	host := &platformtest.FakeHost{Packages: []platformtest.FakePackage{
		platformtest.UserApp("com.example.victim", "Victim"),
	}}

	dispatched := make(chan error, 1)
	inv, loop, _ := newTestInventory(t, host, Options{
		OnUninstall: func(name string, err error) {
			assert.Equal(t, "com.example.victim", name)
			dispatched <- err
		},
	})

	ok, err := inv.RequestUninstall(context.Background(), "com.example.victim")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, loop.Invoke(func() {}))
	assert.Equal(t, []string{"com.example.victim"}, host.UninstallRequests())
	assert.NoError(t, <-dispatched)
}

func TestRequestUninstall_EmptyName(t *testing.T) {
	host := &platformtest.FakeHost{}
	inv, loop, _ := newTestInventory(t, host, Options{})

	ok, err := inv.RequestUninstall(context.Background(), "")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsMissingArgument(err))

	require.NoError(t, loop.Invoke(func() {}))
	assert.Zero(t, host.CallCount("StartUninstall"))
}

func TestRequestUninstall_DispatchFailureIsOutOfBand(t *testing.T) {
	host := &platformtest.FakeHost{UninstallErr: errors.New("activity manager refused")}

	dispatched := make(chan error, 1)
	inv, loop, logger := newTestInventory(t, host, Options{
		OnUninstall: func(name string, err error) { dispatched <- err },
	})

	ok, err := inv.RequestUninstall(context.Background(), "com.example.stubborn")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, loop.Invoke(func() {}))
	assert.EqualError(t, <-dispatched, "activity manager refused")
	require.NotEmpty(t, logger.Calls("ERROR"))
	assert.Contains(t, logger.Calls("ERROR")[0].Msg, "activity manager refused")
}

func TestRequestUninstall_StoppedLoop(t *testing.T) {
	host := &platformtest.FakeHost{}
	inv, loop, _ := newTestInventory(t, host, Options{})
	loop.Stop()

	ok, err := inv.RequestUninstall(context.Background(), "com.example.late")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsOperationFailure(err))
	assert.ErrorIs(t, err, uithread.ErrStopped)
}

func TestRequestUninstall_DoesNotWaitForDispatch(t *testing.T) {
	host := &platformtest.FakeHost{}
	inv, loop, _ := newTestInventory(t, host, Options{})

	release := make(chan struct{})
	require.NoError(t, loop.Post(func() { <-release }))

	ok, err := inv.RequestUninstall(context.Background(), "com.example.queued")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, host.UninstallRequests())

	close(release)
	require.NoError(t, loop.Invoke(func() {}))
	assert.Equal(t, []string{"com.example.queued"}, host.UninstallRequests())
}

func TestListInstalledApplications_KeepsHostOrderWithWorkers(t *testing.T) {
	host := &platformtest.FakeHost{}
	var want []string
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("com.example.app%02d", i)
		pkg := platformtest.UserApp(name, fmt.Sprintf("App %d", i))
		if i%7 == 3 {
			pkg.LabelErr = errors.New("label unavailable")
		} else {
			want = append(want, name)
		}
		host.Packages = append(host.Packages, pkg)
	}
	inv, _, _ := newTestInventory(t, host, Options{Workers: 8})

	apps, err := inv.ListInstalledApplications(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(apps))
	for _, app := range apps {
		got = append(got, app.PackageName)
	}
	assert.Equal(t, want, got)
}
