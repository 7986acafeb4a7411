package cli

import (
	"errors"
	"fmt"

	"appscanner/internal/app"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed applications",
	Long: `List every application installed on the device, including disabled ones.

Packages whose metadata cannot be read are left out of the result.`,
	Example: `  # Table of installed applications
  appscanner list

  # Machine-readable output with PNG icons
  appscanner list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		reply := a.GetInstalledApps()
		if reply.IsError() {
			return errors.New(reply.Error.Message)
		}

		apps, _ := reply.Value.([]map[string]any)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), apps)
		}
		if len(apps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No applications found.")
			return nil
		}

		data := pterm.TableData{{"Package", "Name", "Icon", "APK"}}
		for _, entry := range apps {
			iconSize := "-"
			if icon, ok := entry["icon"].([]byte); ok && len(icon) > 0 {
				iconSize = humanize.Bytes(uint64(len(icon)))
			}
			data = append(data, []string{
				stringValue(entry, "packageName"),
				stringValue(entry, "appName"),
				iconSize,
				stringValue(entry, "apkPath"),
			})
		}
		if err := renderTable(cmd.OutOrStdout(), data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d applications\n", len(apps))
		return nil
	})
}

func stringValue(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
