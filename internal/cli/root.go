// Package cli is the headless command line front-end of the app_scanner bridge.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"appscanner/internal/app"
	"appscanner/internal/config"
	"appscanner/internal/infrastructure/logging"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile    string
	jsonOutput bool
	verbose    bool

	// appOptions are applied to every App a command builds
	appOptions []app.Option

	// RootCmd is the root command for appscanner
	RootCmd = &cobra.Command{
		Use:   "appscanner",
		Short: "Inspect and uninstall applications on an Android device",
		Long: `appscanner answers the app_scanner channel from the command line.

It lists the applications installed on a device reachable through adb,
shows per-application details and opens the device's uninstall dialog.
Every call is recorded in a local activity journal.

Examples:
  # List installed applications
  appscanner list

  # Show details of one application
  appscanner detail com.example.notes

  # Open the uninstall dialog on the device
  appscanner uninstall com.example.notes

  # Send a raw channel call
  appscanner call getAppDetails packageName=com.example.notes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
				pterm.DisableStyling()
			}
		},
	}
)

// flagKeys maps persistent flags onto configuration keys
var flagKeys = map[string]string{
	"adb":     "adb.path",
	"serial":  "adb.serial",
	"aapt":    "adb.aapt",
	"timeout": "adb.timeout",
	"icons":   "icons.enabled",
	"journal": "journal.enabled",
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./appscanner.yaml)")
	flags.String("adb", "adb", "path to the adb binary")
	flags.StringP("serial", "s", "", "serial of the target device")
	flags.String("aapt", "", "aapt binary used to resolve labels and icons from APKs")
	flags.Duration("timeout", 30*time.Second, "timeout of a single adb command")
	flags.Bool("icons", true, "extract application icons")
	flags.Bool("journal", true, "record calls in the activity journal")
	flags.BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(detailCmd)
	RootCmd.AddCommand(uninstallCmd)
	RootCmd.AddCommand(callCmd)
	RootCmd.AddCommand(historyCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig merges flags, environment and the config file
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	v := config.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return config.Load(v, cfgFile)
}

func newLogger() logging.Logger {
	if verbose {
		return logging.NewLevelLogger(logging.NewDefaultLogger(), logging.LevelDebug)
	}
	return logging.NewLevelLogger(logging.NewDefaultLogger(), logging.LevelWarn)
}

// withApp starts an App for the duration of fn. Shutdown drains queued
// uninstall dispatches before withApp returns.
func withApp(cmd *cobra.Command, fn func(a *app.App) error, opts ...app.Option) error {
	cfg, err := loadConfig(cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}

	all := make([]app.Option, 0, len(appOptions)+len(opts))
	all = append(all, appOptions...)
	all = append(all, opts...)

	application := app.NewApp(cfg, newLogger(), all...)
	application.Startup(cmd.Context())
	defer application.Shutdown(cmd.Context())

	return fn(application)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
