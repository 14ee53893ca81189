package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/labsite/pubsync/internal/browser"
	"github.com/labsite/pubsync/internal/config"
	"github.com/labsite/pubsync/internal/openaccess"
	"github.com/labsite/pubsync/internal/pipeline"
	"github.com/labsite/pubsync/internal/storage"
)

var (
	syncDryRun   bool
	syncSkipPDF  bool
	syncHeadless bool
	syncChrome   string
)

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute and print the diff without downloading or writing anything")
	syncCmd.Flags().BoolVar(&syncDryRun, "preview", false, "Alias for --dry-run")
	syncCmd.Flags().BoolVar(&syncSkipPDF, "skip-pdf", false, "Update metadata only; do not fetch PDFs")
	syncCmd.Flags().BoolVar(&syncHeadless, "headless", false, "Run the browser headless (challenges cannot be solved by hand)")
	syncCmd.Flags().StringVar(&syncChrome, "chrome", "", "Path to the Chrome executable")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scrape the profile, download new PDFs and update the store",
	Long: `Scrape the configured scholar profile, merge publications that are not yet
in the store, and download their PDFs into the papers directory.

Without --headless a visible browser window is opened so that a
bot-verification challenge can be solved by hand.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := syncWith(ctx, cfg)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if humanOutput {
		printReportHuman(rep)
		return nil
	}
	return outputJSON(rep)
}

// syncWith owns the browser and ledger for one run so both are released
// before the caller decides the exit status.
func syncWith(ctx context.Context, cfg *config.Config) (*pipeline.Report, error) {
	sess, err := browser.Launch(ctx, browser.ChromeOptions{
		Headless:  syncHeadless,
		UserAgent: cfg.UserAgent,
		ExecPath:  syncChrome,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	p := &pipeline.Pipeline{
		Config:  cfg,
		Scraper: pipeline.DefaultScraper(cfg, !syncHeadless, logger),
		Logger:  logger,
	}

	oa := openaccess.NewClient(openaccess.Options{
		BaseURL:   cfg.UnpaywallURL,
		Email:     cfg.UnpaywallEmail,
		UserAgent: cfg.UserAgent,
	})
	p.Acquirer = pipeline.DefaultAcquirer(cfg, oa, logger)

	if !syncDryRun {
		ledger, err := storage.OpenLedger(cfg.LedgerPath())
		if err != nil {
			logger.Warn("run ledger unavailable", "path", cfg.LedgerPath(), "err", err)
		} else {
			defer ledger.Close()
			p.Ledger = ledger
		}
	}

	return p.Run(ctx, sess, pipeline.Options{DryRun: syncDryRun, SkipPDF: syncSkipPDF})
}

func printReportHuman(rep *pipeline.Report) {
	mode := "sync"
	switch {
	case rep.DryRun:
		mode = "preview"
	case rep.SkipPDF:
		mode = "metadata only"
	}

	s := rep.Summary
	t := newTable(fmt.Sprintf("Run summary (%s, %s)", mode, formatDuration(rep.FinishedAt.Sub(rep.StartedAt))))
	t.AppendRows([]table.Row{
		{"Found on profile", s.Found},
		{"Already known", s.Known},
		{"Newly added", s.Added},
		{"PDFs downloaded", s.Downloaded},
		{"PDFs skipped (present)", s.Skipped},
		{"PDFs failed", s.Failed},
		{"PDFs in papers directory", rep.PDFCount},
	})
	t.Render()

	if len(rep.New) > 0 {
		t := newTable("New publications")
		t.AppendHeader(table.Row{"Year", "Title", "Venue", "PDF"})
		for _, n := range rep.New {
			t.AppendRow(table.Row{formatYear(n.Year), truncateString(n.Title, ReportTitleMaxLen), truncateString(n.Venue, 30), n.PDF})
		}
		t.Render()
	}

	if len(rep.Failures) > 0 {
		t := newTable("PDF failures")
		t.AppendHeader(table.Row{"Title", "Reason", "Link"})
		for _, f := range rep.Failures {
			t.AppendRow(table.Row{truncateString(f.Title, ReportTitleMaxLen), f.Reason, f.Link})
		}
		t.Render()
	}

	if len(rep.NearDuplicates) > 0 {
		t := newTable("Possible duplicates")
		t.AppendHeader(table.Row{"New", "Stored", "Score"})
		for _, d := range rep.NearDuplicates {
			t.AppendRow(table.Row{truncateString(d.Title, ReportTitleMaxLen), truncateString(d.Existing, ReportTitleMaxLen), fmt.Sprintf("%.3f", d.Score)})
		}
		t.Render()
	}

	if rep.RunID != "" {
		fmt.Printf("Run %s recorded; see `pubsync history %s`\n", rep.RunID, rep.RunID)
	}
}
