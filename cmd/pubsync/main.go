// Package main provides the pubsync CLI entry point.
package main

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/labsite/pubsync/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	rootFlag    string
	configFlag  string
	verbose     bool

	logger = log.New(os.Stderr)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubsync",
	Short: "Keep a lab website's publication list in sync with its scholar profile",
	Long: `pubsync reconciles the site's publication store with the group's public
scholar profile. New publications are merged into data/publications.json and
their PDFs are downloaded into the site's papers directory.

All commands output JSON by default; pass --human for tables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Site root (default: $"+config.EnvRoot+" or the current directory)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: <root>/"+config.ConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.Version = Version
}

func newLogger(debug bool) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if debug {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// getRepoRoot returns the site root: --root, then PUBSYNC_ROOT, then the
// current directory.
func getRepoRoot() string {
	if rootFlag != "" {
		return rootFlag
	}
	if root := os.Getenv(config.EnvRoot); root != "" {
		return root
	}
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	return cwd
}

// mustLoadConfig loads .env and the layered configuration, or exits.
func mustLoadConfig() *config.Config {
	root := getRepoRoot()
	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg, err := config.Load(root, configFlag)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}
