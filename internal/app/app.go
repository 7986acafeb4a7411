package app

import (
	"context"
	"sync"
	"time"

	"appscanner/internal/bridge"
	"appscanner/internal/config"
	"appscanner/internal/database"
	"appscanner/internal/infrastructure/errors"
	"appscanner/internal/infrastructure/logging"
	"appscanner/internal/platform"
	"appscanner/internal/repository"
	"appscanner/internal/types"
	"appscanner/internal/uithread"
)

const (
	// UninstallEvent is emitted to the front-end once an uninstall request was dispatched
	UninstallEvent = bridge.ChannelName + ":uninstall"

	journalOpenTimeout = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
)

// EventEmitter delivers a named event to the front-end
type EventEmitter func(ctx context.Context, eventName string, optionalData ...interface{})

// Option customizes an App
type Option func(*App)

// WithHost replaces the adb package host
func WithHost(host platform.PackageHost) Option {
	return func(a *App) { a.host = host }
}

// WithEventEmitter sets the front-end event sink
func WithEventEmitter(emit EventEmitter) Option {
	return func(a *App) { a.emit = emit }
}

// App wires the bridge, its host, the main loop and the activity journal.
// It is bound to the Wails front-end and also drives the CLI.
type App struct {
	mu  sync.RWMutex
	ctx context.Context

	cfg       *config.Config
	logger    logging.Logger
	host      platform.PackageHost
	mainLoop  *uithread.Loop
	inventory *bridge.Inventory
	channel   *bridge.Channel
	emit      EventEmitter

	dbService database.Service
	journal   *repository.SQLiteActivityRepository
}

// NewApp creates an App; the journal is opened in Startup
func NewApp(cfg *config.Config, logger logging.Logger, opts ...Option) *App {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.host == nil {
		a.host = platform.NewAdbHost(cfg.HostConfig(), nil, logger)
	}

	a.mainLoop = uithread.NewLoop(logger)
	a.inventory = bridge.NewInventory(a.host, a.mainLoop, logger, bridge.Options{
		IconMaxSize:     cfg.Icons.MaxSize,
		DispatchTimeout: cfg.Adb.Timeout,
		Workers:         cfg.Adb.Workers,
		OnUninstall:     a.uninstallDispatched,
	})
	a.channel = bridge.NewChannel(a.inventory, nil, logger)
	return a
}

// Startup is called at application startup
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	if a.cfg.Journal.Enabled {
		if err := a.initializeJournal(ctx); err != nil {
			logging.LogError(a.logger, err, "startup", map[string]interface{}{"component": "journal"})
			a.logger.Warn("Continuing without activity journal")
		}
	}

	a.logger.Info("Application started", "environment", a.cfg.Environment, "journal", a.JournalEnabled())
}

// initializeJournal opens the journal database, checks it and prunes expired entries.
// The database layer logs at the journal's own level; the app logger stays unfiltered.
func (a *App) initializeJournal(ctx context.Context) error {
	dbConfig, err := a.cfg.DatabaseConfig()
	if err != nil {
		return errors.Wrap("startup", err)
	}
	journalLogger := logging.NewLevelLogger(a.logger, logging.ParseLevel(dbConfig.LogLevel))

	openCtx, cancel := context.WithTimeout(ctx, journalOpenTimeout)
	defer cancel()

	service, err := database.Open(openCtx, dbConfig, journalLogger)
	if err != nil {
		return err
	}

	if err := service.Health(openCtx); err != nil {
		service.Close()
		return err
	}

	version, err := service.GetMigrationVersion(openCtx)
	if err != nil {
		service.Close()
		return err
	}
	journalLogger.Info("Activity journal ready", "path", dbConfig.Path, "schema_version", version)

	errors.SetRetryLogger(errors.NewLoggerBridge(journalLogger))
	journal := repository.NewSQLiteActivityRepository(service, journalLogger)
	if dbConfig.EnableCleanup {
		a.pruneJournal(openCtx, service, journal, dbConfig.RetentionDays)
	}

	a.mu.Lock()
	a.dbService = service
	a.journal = journal
	a.channel = bridge.NewChannel(a.inventory, journal, a.logger)
	a.mu.Unlock()
	return nil
}

// pruneJournal drops expired entries and compacts the file when any were removed.
// Failures only cost disk space, so they are logged and startup continues.
func (a *App) pruneJournal(ctx context.Context, service database.Service, journal *repository.SQLiteActivityRepository, retentionDays int) {
	deleted, err := journal.Prune(ctx, retentionDays)
	if err != nil {
		a.logger.Warn("Activity journal cleanup failed", "error", err)
		return
	}
	if deleted == 0 {
		return
	}

	optimized := true
	if err := service.Optimize(ctx); err != nil {
		optimized = false
		a.logger.Warn("Activity journal optimize failed", "error", err)
	}
	a.logger.Info("Activity journal pruned", "deleted", deleted, "retention_days", retentionDays, "optimized", optimized)
}

// DomReady is called after front-end resources have been loaded
func (a *App) DomReady(ctx context.Context) {}

// BeforeClose is called when the application is about to quit
func (a *App) BeforeClose(ctx context.Context) (prevent bool) {
	return false
}

// Shutdown drains queued uninstall dispatches and closes the journal
func (a *App) Shutdown(ctx context.Context) {
	a.logger.Debug("Starting application shutdown sequence")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	a.mainLoop.Stop()

	if err := a.closeDatabaseConnection(shutdownCtx); err != nil {
		logging.LogError(a.logger, err, "shutdown", nil)
	}

	a.logger.Debug("Application shutdown completed")
}

// closeDatabaseConnection closes the journal database, giving up when ctx ends
func (a *App) closeDatabaseConnection(ctx context.Context) error {
	a.mu.RLock()
	dbService := a.dbService
	a.mu.RUnlock()
	if dbService == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- dbService.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewWithContext("shutdown", err, errors.ClassifyError(err), map[string]string{
				"operation": "close_connection",
			})
		}
		return nil
	case <-ctx.Done():
		return errors.New("shutdown", ctx.Err(), errors.ErrCodeTimeout)
	}
}

func (a *App) activityJournal() *repository.SQLiteActivityRepository {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.journal
}

func (a *App) context() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// uninstallDispatched runs on the main loop after the host dispatch returned
func (a *App) uninstallDispatched(packageName string, err error) {
	if a.emit == nil {
		return
	}

	payload := map[string]interface{}{
		"packageName": packageName,
		"dispatched":  err == nil,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	a.emit(a.context(), UninstallEvent, payload)
}

// ChannelName returns the name the front-end addresses the bridge by
func (a *App) ChannelName() string {
	return bridge.ChannelName
}

// InvokeMethod answers one app_scanner channel call
func (a *App) InvokeMethod(method string, arguments map[string]interface{}) bridge.Reply {
	a.mu.RLock()
	channel := a.channel
	a.mu.RUnlock()

	return channel.Handle(a.context(), bridge.MethodCall{Method: method, Arguments: arguments})
}

// GetInstalledApps is InvokeMethod("getInstalledApps")
func (a *App) GetInstalledApps() bridge.Reply {
	return a.InvokeMethod(bridge.MethodGetInstalledApps, nil)
}

// GetAppDetails is InvokeMethod("getAppDetails", packageName)
func (a *App) GetAppDetails(packageName string) bridge.Reply {
	return a.InvokeMethod(bridge.MethodGetAppDetails, map[string]interface{}{bridge.ArgPackageName: packageName})
}

// UninstallApp is InvokeMethod("uninstallApp", packageName)
func (a *App) UninstallApp(packageName string) bridge.Reply {
	return a.InvokeMethod(bridge.MethodUninstallApp, map[string]interface{}{bridge.ArgPackageName: packageName})
}

// GetRecentActivity returns the newest journal entries, or none without a journal
func (a *App) GetRecentActivity(limit int) ([]types.ActivityEntry, error) {
	journal := a.activityJournal()
	if journal == nil {
		return []types.ActivityEntry{}, nil
	}
	return journal.Recent(a.context(), limit)
}

// GetPackageActivity returns the newest journal entries for one package
func (a *App) GetPackageActivity(packageName string, limit int) ([]types.ActivityEntry, error) {
	journal := a.activityJournal()
	if journal == nil {
		return []types.ActivityEntry{}, nil
	}
	return journal.ForPackage(a.context(), packageName, limit)
}

// GetActivitySummary tallies journal entries by outcome
func (a *App) GetActivitySummary() (map[types.Outcome]int64, error) {
	journal := a.activityJournal()
	if journal == nil {
		return map[types.Outcome]int64{}, nil
	}
	return journal.CountByOutcome(a.context())
}

// JournalEnabled reports whether calls are being journaled
func (a *App) JournalEnabled() bool {
	return a.activityJournal() != nil
}

// Inventory exposes the bridge operations for non-channel callers
func (a *App) Inventory() *bridge.Inventory {
	return a.inventory
}

// GetLogger returns the application's structured logger
func (a *App) GetLogger() logging.Logger {
	return a.logger
}
