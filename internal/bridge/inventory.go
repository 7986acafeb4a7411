// Package bridge answers the app_scanner channel: installed application
// enumeration, per-application detail and uninstall dispatch.
package bridge

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"appscanner/internal/icon"
	"appscanner/internal/infrastructure/errors"
	"appscanner/internal/infrastructure/logging"
	"appscanner/internal/platform"
	"appscanner/internal/types"

	"golang.org/x/sync/errgroup"
)

const (
	opListInstalled = "ListInstalledApplications"
	opGetDetail     = "GetApplicationDetail"
	opUninstall     = "RequestUninstall"

	defaultDispatchTimeout = 30 * time.Second
	defaultWorkers         = 4
)

// Dispatcher runs functions on the main execution context
type Dispatcher interface {
	Post(fn func()) error
}

// UninstallListener is called on the main execution context after the host
// uninstall dispatch for packageName returned. err is nil on success.
type UninstallListener func(packageName string, err error)

// Options tunes an Inventory
type Options struct {
	IconMaxSize     int           // longest icon edge in pixels, 0 keeps the intrinsic size
	DispatchTimeout time.Duration // bound on a single uninstall dispatch
	Workers         int           // concurrent per-package lookups during enumeration
	OnUninstall     UninstallListener
}

// Inventory implements the three bridge operations on top of a PackageHost.
// It holds no per-call state; every invocation queries the host fresh.
type Inventory struct {
	host            platform.PackageHost
	main            Dispatcher
	logger          logging.Logger
	iconMaxSize     int
	dispatchTimeout time.Duration
	workers         int
	onUninstall     UninstallListener
}

// NewInventory creates an Inventory; main receives uninstall dispatches
func NewInventory(host platform.PackageHost, main Dispatcher, logger logging.Logger, opts Options) *Inventory {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	return &Inventory{
		host:            host,
		main:            main,
		logger:          logger,
		iconMaxSize:     opts.IconMaxSize,
		dispatchTimeout: opts.DispatchTimeout,
		workers:         opts.Workers,
		onUninstall:     opts.OnUninstall,
	}
}

// ListInstalledApplications enumerates every installed package the host reports.
// Packages whose label cannot be resolved are left out of the result; an icon that
// fails to load or render leaves Icon nil. Only a failed host query is an error.
func (inv *Inventory) ListInstalledApplications(ctx context.Context) ([]types.InstalledApplication, error) {
	start := time.Now()

	refs, err := inv.host.InstalledPackages(ctx)
	if err != nil {
		return nil, errors.OperationFailure(opListInstalled, err)
	}

	seen := make(map[string]struct{}, len(refs))
	unique := make([]platform.PackageRef, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.Name]; dup {
			continue
		}
		seen[ref.Name] = struct{}{}
		unique = append(unique, ref)
	}

	// results keeps host order regardless of which lookup finishes first
	results := make([]*types.InstalledApplication, len(unique))
	var skipped atomic.Int64

	var g errgroup.Group
	g.SetLimit(inv.workers)
	for i, ref := range unique {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			app, err := inv.summarize(ctx, ref)
			if err != nil {
				skipped.Add(1)
				inv.logger.Debug("Skipping inaccessible package", "package", ref.Name, "error", err)
				return nil
			}
			results[i] = app
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.OperationFailure(opListInstalled, err)
	}

	apps := make([]types.InstalledApplication, 0, len(unique))
	for _, app := range results {
		if app != nil {
			apps = append(apps, *app)
		}
	}

	logging.LogOperation(inv.logger, opListInstalled, time.Since(start), map[string]interface{}{
		"reported": len(refs),
		"returned": len(apps),
		"skipped":  skipped.Load(),
	})
	return apps, nil
}

func (inv *Inventory) summarize(ctx context.Context, ref platform.PackageRef) (*types.InstalledApplication, error) {
	pres, err := inv.host.Presentation(ctx, ref)
	if err != nil {
		return nil, err
	}

	return &types.InstalledApplication{
		PackageName: ref.Name,
		AppName:     displayName(pres, ref.Name),
		Icon:        inv.iconBytes(ref.Name, pres),
		ApkPath:     ref.SourceDir,
	}, nil
}

// iconBytes never fails; a missing or broken icon is nil
func (inv *Inventory) iconBytes(name string, pres *platform.Presentation) []byte {
	if pres.IconErr != nil {
		inv.logger.Debug("Icon unavailable", "package", name, "error", pres.IconErr)
		return nil
	}
	if pres.Icon == nil {
		return nil
	}

	data, err := icon.EncodePNG(pres.Icon, inv.iconMaxSize)
	if err != nil {
		inv.logger.Debug("Icon render failed", "package", name, "error", err)
		return nil
	}
	return data
}

func displayName(pres *platform.Presentation, fallback string) string {
	if pres.Label != "" {
		return pres.Label
	}
	return fallback
}

// GetApplicationDetail resolves full metadata for packageName.
// It returns (nil, nil) when the package is unknown or any part of the lookup
// fails; the only error is MissingArgument for an empty name.
func (inv *Inventory) GetApplicationDetail(ctx context.Context, packageName string) (*types.ApplicationDetail, error) {
	if packageName == "" {
		return nil, errors.MissingArgument(opGetDetail, "packageName")
	}

	detail, err := inv.lookupDetail(ctx, packageName)
	if err != nil {
		tagged := detailError(err)
		msg := "Package detail unavailable"
		if errors.IsNotFound(tagged) {
			msg = "Package not installed"
		}
		inv.logger.Debug(msg, "package", packageName, "error", tagged, "error_code", tagged.GetCode())
		return nil, nil
	}
	return detail, nil
}

// detailError tags a failed lookup; an unknown package is NotFound, anything else is classified
func detailError(err error) *errors.BridgeError {
	if stderrors.Is(err, platform.ErrPackageNotFound) {
		return errors.New(opGetDetail, err, errors.ErrCodeNotFound)
	}
	return errors.New(opGetDetail, err, errors.ClassifyError(err))
}

func (inv *Inventory) lookupDetail(ctx context.Context, packageName string) (*types.ApplicationDetail, error) {
	info, err := inv.host.Package(ctx, packageName)
	if err != nil {
		return nil, err
	}

	pres, err := inv.host.Presentation(ctx, info.PackageRef)
	if err != nil {
		return nil, err
	}

	size, err := inv.host.ArtifactSize(ctx, info.SourceDir)
	if err != nil {
		return nil, err
	}

	detail := &types.ApplicationDetail{
		InstalledApplication: types.InstalledApplication{
			PackageName: packageName,
			AppName:     displayName(pres, packageName),
			Icon:        inv.iconBytes(packageName, pres),
			ApkPath:     info.SourceDir,
		},
		VersionName:        info.VersionName,
		VersionCode:        info.VersionCode,
		InstallDate:        info.FirstInstallTime.Local().Format(types.InstallDateLayout),
		ApkSize:            size,
		IsSystemApp:        info.Flags.System,
		IsUpdatedSystemApp: info.Flags.UpdatedSystem,
		IsEnabled:          info.Enabled,
		TargetSdkVersion:   info.TargetSdk,
	}
	if info.MinSdk > 0 {
		minSdk := info.MinSdk
		detail.MinSdkVersion = &minSdk
	}
	return detail, nil
}

// RequestUninstall posts the host uninstall dispatch onto the main execution
// context and returns true without waiting for it. Dispatch failures are only
// logged and reported to the UninstallListener; completion is never observed.
func (inv *Inventory) RequestUninstall(ctx context.Context, packageName string) (bool, error) {
	if packageName == "" {
		return false, errors.MissingArgument(opUninstall, "packageName")
	}
	if err := ctx.Err(); err != nil {
		return false, errors.OperationFailure(opUninstall, err)
	}

	err := inv.main.Post(func() {
		// the caller's context is gone by the time this runs
		dispatchCtx, cancel := context.WithTimeout(context.Background(), inv.dispatchTimeout)
		defer cancel()

		dispatchErr := inv.host.StartUninstall(dispatchCtx, packageName)
		if dispatchErr != nil {
			logging.LogError(inv.logger, dispatchErr, opUninstall, map[string]interface{}{"package": packageName})
		} else {
			inv.logger.Info("Uninstall dialog requested", "package", packageName)
		}
		if inv.onUninstall != nil {
			inv.onUninstall(packageName, dispatchErr)
		}
	})
	if err != nil {
		return false, errors.OperationFailure(opUninstall, err)
	}
	return true, nil
}
