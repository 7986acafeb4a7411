package main

import (
	"embed"
	"log"
	"os"

	"appscanner/internal/app"
	"appscanner/internal/config"
	"appscanner/internal/infrastructure/logging"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	appLogger := logging.NewDefaultLogger()

	cfg, err := config.Load(config.New(), os.Getenv("APPSCANNER_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	application := app.NewApp(cfg, appLogger, app.WailsEvents())

	logLevel := logger.INFO
	if cfg.Environment == "development" {
		logLevel = logger.DEBUG
	}

	err = wails.Run(&options.App{
		Title:            "App Scanner",
		Width:            960,
		Height:           720,
		MinWidth:         480,
		MinHeight:        360,
		BackgroundColour: &options.RGBA{R: 250, G: 250, B: 250, A: 255},
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Logger:           logging.NewWailsLoggerAdapter(appLogger),
		LogLevel:         logLevel,
		OnStartup:        application.Startup,
		OnDomReady:       application.DomReady,
		OnBeforeClose:    application.BeforeClose,
		OnShutdown:       application.Shutdown,
		WindowStartState: options.Normal,
		Bind: []interface{}{
			application,
		},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   "App Scanner",
				Message: "Installed application inventory for Android devices",
			},
		},
	})

	if err != nil {
		log.Fatal(err)
	}
}
