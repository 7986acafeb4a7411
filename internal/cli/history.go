package cli

import (
	"errors"
	"fmt"
	"sort"

	"appscanner/internal/app"
	"appscanner/internal/types"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyPackage string
	historySummary bool

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent bridge calls from the activity journal",
		Example: `  # Last 20 calls
  appscanner history

  # Calls concerning one package
  appscanner history --package com.example.notes

  # Call counts by outcome
  appscanner history --summary`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
	historyCmd.Flags().StringVarP(&historyPackage, "package", "p", "", "only show calls for this package")
	historyCmd.Flags().BoolVar(&historySummary, "summary", false, "show call counts by outcome")
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		if !a.JournalEnabled() {
			return errors.New("activity journal is not available")
		}
		if historySummary {
			return printSummary(cmd, a)
		}

		var (
			entries []types.ActivityEntry
			err     error
		)
		if historyPackage != "" {
			entries, err = a.GetPackageActivity(historyPackage, historyLimit)
		} else {
			entries, err = a.GetRecentActivity(historyLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to read activity journal: %w", err)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded.")
			return nil
		}

		data := pterm.TableData{{"When", "Method", "Package", "Outcome", "Duration", "Message"}}
		for _, entry := range entries {
			data = append(data, []string{
				humanize.Time(entry.CreatedAt),
				entry.Method,
				entry.PackageName,
				string(entry.Outcome),
				fmt.Sprintf("%dms", entry.DurationMs),
				entry.Message,
			})
		}
		return renderTable(cmd.OutOrStdout(), data)
	})
}

func printSummary(cmd *cobra.Command, a *app.App) error {
	counts, err := a.GetActivitySummary()
	if err != nil {
		return fmt.Errorf("failed to read activity journal: %w", err)
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), counts)
	}

	outcomes := make([]string, 0, len(counts))
	for outcome := range counts {
		outcomes = append(outcomes, string(outcome))
	}
	sort.Strings(outcomes)

	data := pterm.TableData{{"Outcome", "Calls"}}
	for _, outcome := range outcomes {
		data = append(data, []string{outcome, humanize.Comma(counts[types.Outcome(outcome)])})
	}
	return renderTable(cmd.OutOrStdout(), data)
}
