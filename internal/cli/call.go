package cli

import (
	"errors"
	"fmt"
	"strings"

	"appscanner/internal/app"
	"appscanner/internal/bridge"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [key=value...]",
	Short: "Send a raw app_scanner channel call",
	Long: `Send one named method call through the app_scanner channel and print the
reply as JSON. Arguments are passed as key=value pairs.`,
	Example: `  appscanner call getInstalledApps
  appscanner call getAppDetails packageName=com.example.notes
  appscanner call uninstallApp packageName=com.example.notes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	method := args[0]
	arguments, err := parseArguments(args[1:])
	if err != nil {
		return err
	}

	var reply bridge.Reply
	err = withApp(cmd, func(a *app.App) error {
		reply = a.InvokeMethod(method, arguments)
		return nil
	})
	if err != nil {
		return err
	}

	if err := writeJSON(cmd.OutOrStdout(), reply); err != nil {
		return err
	}
	if reply.IsError() {
		return errors.New(reply.Error.Message)
	}
	return nil
}

// parseArguments turns key=value pairs into channel arguments
func parseArguments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	arguments := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		arguments[key] = value
	}
	return arguments, nil
}
