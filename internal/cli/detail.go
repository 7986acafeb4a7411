package cli

import (
	"errors"
	"fmt"

	"appscanner/internal/app"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var detailCmd = &cobra.Command{
	Use:   "detail <package>",
	Short: "Show details of one installed application",
	Long: `Show version, install date, size and flags of one installed application.

A package that is not installed, or whose metadata cannot be read, is
reported as not found.`,
	Example: `  appscanner detail com.example.notes
  appscanner detail com.example.notes --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDetail,
}

func runDetail(cmd *cobra.Command, args []string) error {
	packageName := args[0]

	return withApp(cmd, func(a *app.App) error {
		reply := a.GetAppDetails(packageName)
		if reply.IsError() {
			return errors.New(reply.Error.Message)
		}

		detail, _ := reply.Value.(map[string]any)
		if len(detail) == 0 {
			return fmt.Errorf("package %s not found", packageName)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), detail)
		}

		minSdk := "-"
		if v, ok := detail["minSdkVersion"].(int); ok {
			minSdk = fmt.Sprint(v)
		}
		size := "-"
		if v, ok := detail["apkSize"].(int64); ok {
			size = humanize.Bytes(uint64(v))
		}

		data := pterm.TableData{
			{"Field", "Value"},
			{"Package", stringValue(detail, "packageName")},
			{"Name", stringValue(detail, "appName")},
			{"Version", fmt.Sprintf("%s (%v)", stringValue(detail, "versionName"), detail["versionCode"])},
			{"Installed", stringValue(detail, "installDate")},
			{"Size", size},
			{"APK", stringValue(detail, "apkPath")},
			{"System app", yesNo(detail["isSystemApp"] == true)},
			{"Updated system app", yesNo(detail["isUpdatedSystemApp"] == true)},
			{"Enabled", yesNo(detail["isEnabled"] == true)},
			{"Target SDK", fmt.Sprint(detail["targetSdkVersion"])},
			{"Min SDK", minSdk},
		}
		return renderTable(cmd.OutOrStdout(), data)
	})
}
