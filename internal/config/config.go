// Package config handles pubsync configuration: built-in defaults, an
// optional pubsync.yml in the site root, a pubsync.local.yml override and
// environment variables, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFile is the config file name looked up in the site root.
	ConfigFile = "pubsync.yml"
	// LocalConfigFile overrides ConfigFile and is meant to stay untracked.
	LocalConfigFile = "pubsync.local.yml"

	EnvRoot      = "PUBSYNC_ROOT"
	EnvProfileID = "PUBSYNC_PROFILE_ID"
	EnvEmail     = "UNPAYWALL_EMAIL"
	EnvUserAgent = "PUBSYNC_USER_AGENT"
)

// ErrInvalid is returned when the effective configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Timeouts bound each suspension point of a run.
type Timeouts struct {
	Listing    time.Duration `yaml:"listing" json:"listing"`
	Navigation time.Duration `yaml:"navigation" json:"navigation"`
	Scan       time.Duration `yaml:"scan" json:"scan"`
	Challenge  time.Duration `yaml:"challenge" json:"challenge"`
	Fetch      time.Duration `yaml:"fetch" json:"fetch"`
}

// Delays are fixed politeness pauses.
type Delays struct {
	Detail     time.Duration `yaml:"detail" json:"detail"`
	ShowMore   time.Duration `yaml:"show_more" json:"show_more"`
	Download   time.Duration `yaml:"download" json:"download"`
	ScanSettle time.Duration `yaml:"scan_settle" json:"scan_settle"`
}

// Config is the effective configuration of one invocation.
type Config struct {
	ProfileID  string `yaml:"profile_id" json:"profile_id"`
	ScholarURL string `yaml:"scholar_url" json:"scholar_url"`
	PageSize   int    `yaml:"page_size" json:"page_size"`

	SiteRoot        string `yaml:"site_root" json:"site_root"`
	DataFile        string `yaml:"data_file" json:"data_file"`
	PapersDir       string `yaml:"papers_dir" json:"papers_dir"`
	PapersURLPrefix string `yaml:"papers_url_prefix" json:"papers_url_prefix"`
	LedgerFile      string `yaml:"ledger_file" json:"ledger_file"`

	UnpaywallURL      string `yaml:"unpaywall_url" json:"unpaywall_url"`
	UnpaywallEmail    string `yaml:"unpaywall_email" json:"unpaywall_email,omitempty"`
	UserAgent         string `yaml:"user_agent" json:"user_agent"`
	MaxPageCandidates int    `yaml:"max_page_candidates" json:"max_page_candidates"`

	Timeouts Timeouts `yaml:"timeouts" json:"timeouts"`
	Delays   Delays   `yaml:"delays" json:"delays"`

	// Root is the directory relative paths are resolved against.
	Root string `yaml:"-" json:"root"`
	// Sources lists the files that contributed, in merge order.
	Sources []string `yaml:"-" json:"sources,omitempty"`
}

// DefaultUserAgent is a current desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ProfileID:         "8NN-2uYAAAAJ",
		ScholarURL:        "https://scholar.google.com",
		PageSize:          100,
		SiteRoot:          ".",
		DataFile:          "data/publications.json",
		PapersDir:         "public/papers",
		PapersURLPrefix:   "/papers",
		LedgerFile:        ".pubsync/ledger.db",
		UnpaywallURL:      "https://api.unpaywall.org",
		UserAgent:         DefaultUserAgent,
		MaxPageCandidates: 8,
		Timeouts: Timeouts{
			Listing:    60 * time.Second,
			Navigation: 30 * time.Second,
			Scan:       20 * time.Second,
			Challenge:  120 * time.Second,
			Fetch:      30 * time.Second,
		},
		Delays: Delays{
			Detail:     time.Second,
			ShowMore:   1500 * time.Millisecond,
			Download:   800 * time.Millisecond,
			ScanSettle: 500 * time.Millisecond,
		},
	}
}

// Load builds the effective configuration for the site at root. When path
// is empty, root/pubsync.yml is used if it exists; an explicit path must
// exist. A pubsync.local.yml next to the config file is merged on top.
// Every key present in a file overrides the value below it, including
// explicit zero values such as "download: 0s".
func Load(root, path string) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	cfg := Default()
	cfg.Root = abs

	explicit := path != ""
	if !explicit {
		path = filepath.Join(abs, ConfigFile)
	}

	found, err := mergeFile(&cfg, path)
	if err != nil {
		return nil, err
	}
	if explicit && !found {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	local := filepath.Join(filepath.Dir(path), LocalConfigFile)
	if _, err := mergeFile(&cfg, local); err != nil {
		return nil, err
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile overlays the keys of a YAML file onto cfg. The file is decoded
// onto a copy of cfg so absent keys keep their current value.
func mergeFile(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading config: %w", err)
	}

	layer := *cfg
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return false, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := mergo.Merge(cfg, layer, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
		return false, fmt.Errorf("merging config %s: %w", path, err)
	}
	cfg.Sources = append(cfg.Sources, path)
	return true, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvProfileID); v != "" {
		cfg.ProfileID = v
	}
	if v := os.Getenv(EnvEmail); v != "" {
		cfg.UnpaywallEmail = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		cfg.UserAgent = v
	}
}

// Validate checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProfileID) == "" {
		return fmt.Errorf("%w: profile_id is empty", ErrInvalid)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalid, c.PageSize)
	}
	u, err := url.Parse(c.ScholarURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: scholar_url must be an http(s) URL, got %q", ErrInvalid, c.ScholarURL)
	}
	if c.MaxPageCandidates <= 0 {
		return fmt.Errorf("%w: max_page_candidates must be positive", ErrInvalid)
	}
	return nil
}

// SitePath returns the absolute site root.
func (c *Config) SitePath() string {
	return c.resolve(c.Root, c.SiteRoot)
}

// DataPath returns the absolute path of the publication store.
func (c *Config) DataPath() string {
	return c.resolve(c.SitePath(), c.DataFile)
}

// PapersPath returns the absolute artifact directory.
func (c *Config) PapersPath() string {
	return c.resolve(c.SitePath(), c.PapersDir)
}

// LedgerPath returns the absolute path of the run ledger.
func (c *Config) LedgerPath() string {
	return c.resolve(c.SitePath(), c.LedgerFile)
}

// PaperURL returns the public path stored in a record for a PDF file name.
func (c *Config) PaperURL(file string) string {
	return strings.TrimRight(c.PapersURLPrefix, "/") + "/" + file
}

func (c *Config) resolve(base, p string) string {
	p = ExpandPath(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// PaperFile maps a stored pdf value to its file in the artifact directory.
// ok is false when the value lies outside the configured URL prefix.
func (c *Config) PaperFile(stored string) (path string, ok bool) {
	prefix := strings.TrimRight(c.PapersURLPrefix, "/") + "/"
	rest, found := strings.CutPrefix(stored, prefix)
	if !found || rest == "" {
		return "", false
	}
	return filepath.Join(c.PapersPath(), filepath.FromSlash(rest)), true
}
