package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/labsite/pubsync/internal/config"
	"github.com/labsite/pubsync/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults, pubsync.yml, pubsync.local.yml and
environment overrides are applied, with paths resolved against the site root.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	Config     *config.Config `json:"config"`
	ListingURL string         `json:"listing_url"`
	Paths      PathInfo       `json:"paths"`
}

// PathInfo lists the resolved locations pubsync reads and writes.
type PathInfo struct {
	Site   string `json:"site"`
	Data   string `json:"data"`
	Papers string `json:"papers"`
	Ledger string `json:"ledger"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	resp := ConfigResponse{
		Config:     cfg,
		ListingURL: pipeline.DefaultScraper(cfg, false, logger).ListingURL(),
		Paths: PathInfo{
			Site:   cfg.SitePath(),
			Data:   cfg.DataPath(),
			Papers: cfg.PapersPath(),
			Ledger: cfg.LedgerPath(),
		},
	}

	if !humanOutput {
		return outputJSON(resp)
	}

	email := cfg.UnpaywallEmail
	if email == "" {
		email = "(not set; open-access lookup disabled)"
	}
	t := newTable("")
	t.AppendRows([]table.Row{
		{"Profile", cfg.ProfileID},
		{"Listing", resp.ListingURL},
		{"Store", resp.Paths.Data},
		{"Papers", fmt.Sprintf("%s (%s)", resp.Paths.Papers, cfg.PapersURLPrefix)},
		{"Ledger", resp.Paths.Ledger},
		{"Unpaywall email", email},
		{"Listing timeout", cfg.Timeouts.Listing},
		{"Challenge timeout", cfg.Timeouts.Challenge},
		{"Fetch timeout", cfg.Timeouts.Fetch},
		{"Detail delay", cfg.Delays.Detail},
	})
	for _, src := range cfg.Sources {
		t.AppendRow(table.Row{"Loaded from", src})
	}
	t.Render()
	return nil
}
