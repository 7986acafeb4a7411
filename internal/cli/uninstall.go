package cli

import (
	"context"
	"errors"
	"fmt"

	"appscanner/internal/app"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <package>",
	Short: "Open the uninstall dialog for an application on the device",
	Long: `Ask the device to show its uninstall dialog for one application.

The removal itself is confirmed by the user on the device; appscanner only
reports whether the dialog was dispatched.`,
	Example: `  appscanner uninstall com.example.notes`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	// filled on the main loop; read once withApp has drained it
	dispatched := make(chan map[string]interface{}, 1)
	recorder := app.WithEventEmitter(func(ctx context.Context, eventName string, data ...interface{}) {
		if eventName != app.UninstallEvent || len(data) == 0 {
			return
		}
		if payload, ok := data[0].(map[string]interface{}); ok {
			select {
			case dispatched <- payload:
			default:
			}
		}
	})

	err := withApp(cmd, func(a *app.App) error {
		reply := a.UninstallApp(packageName)
		if reply.IsError() {
			return errors.New(reply.Error.Message)
		}
		return nil
	}, recorder)
	if err != nil {
		return err
	}

	var payload map[string]interface{}
	select {
	case payload = <-dispatched:
	default:
		return fmt.Errorf("uninstall of %s was not dispatched", packageName)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), payload)
	}
	if payload["dispatched"] != true {
		return fmt.Errorf("failed to open uninstall dialog for %s: %v", packageName, payload["error"])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uninstall dialog opened for %s; confirm the removal on the device.\n", packageName)
	return nil
}
