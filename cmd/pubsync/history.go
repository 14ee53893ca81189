package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/labsite/pubsync/internal/storage"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded sync runs",
	Long: `Without arguments, list the most recent sync runs from the run ledger.
With a run id, list every PDF download attempt made during that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	ledger, err := storage.OpenLedger(cfg.LedgerPath())
	if err != nil {
		exitWithError(ExitDataError, "opening run ledger: %v", err)
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		runs, err := ledger.Runs(ctx, historyLimit)
		if err != nil {
			exitWithError(ExitDataError, "reading runs: %v", err)
		}
		if runs == nil {
			runs = []storage.Run{}
		}
		if humanOutput {
			printRunsHuman(runs)
			return nil
		}
		return outputJSON(runs)
	}

	attempts, err := ledger.Attempts(ctx, args[0])
	if err != nil {
		exitWithError(ExitDataError, "reading attempts: %v", err)
	}
	if attempts == nil {
		attempts = []storage.Attempt{}
	}
	if humanOutput {
		printAttemptsHuman(args[0], attempts)
		return nil
	}
	return outputJSON(attempts)
}

func printRunsHuman(runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return
	}
	t := newTable("")
	t.AppendHeader(table.Row{"Run", "Started", "Mode", "Status", "Found", "Added", "PDFs", "Failed", "Duration"})
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = formatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		status := r.Status
		if r.Error != "" {
			status += ": " + truncateString(r.Error, 40)
		}
		t.AppendRow(table.Row{
			shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Mode, status,
			r.Counts.Found, r.Counts.Added, r.Counts.Downloaded, r.Counts.Failed, duration,
		})
	}
	t.Render()
}

func printAttemptsHuman(runID string, attempts []storage.Attempt) {
	if len(attempts) == 0 {
		fmt.Printf("No download attempts recorded for run %s\n", runID)
		return
	}
	t := newTable("Attempts for run " + runID)
	t.AppendHeader(table.Row{"Time", "Title", "Strategy", "Outcome", "URL"})
	for _, a := range attempts {
		outcome := a.Outcome
		if a.Reason != "" {
			outcome += " (" + a.Reason + ")"
		}
		t.AppendRow(table.Row{a.At.Local().Format(time.TimeOnly), truncateString(a.Title, HistoryTitleMaxLen), a.Strategy, outcome, a.URL})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
