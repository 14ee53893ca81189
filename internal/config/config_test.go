package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvProfileID, EnvEmail, EnvUserAgent} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, "8NN-2uYAAAAJ", cfg.ProfileID)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Challenge)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delays.ShowMore)
	assert.Equal(t, filepath.Join(root, "data", "publications.json"), cfg.DataPath())
	assert.Equal(t, filepath.Join(root, "public", "papers"), cfg.PapersPath())
	assert.Equal(t, filepath.Join(root, ".pubsync", "ledger.db"), cfg.LedgerPath())
	assert.Empty(t, cfg.Sources)
}

func TestLoad_FileAndLocalOverride(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFile), `
profile_id: abc123
page_size: 20
site_root: site
timeouts:
  fetch: 45s
delays:
  detail: 2s
`)
	writeFile(t, filepath.Join(root, LocalConfigFile), `
page_size: 50
unpaywall_email: me@example.org
`)

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.ProfileID)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, "me@example.org", cfg.UnpaywallEmail)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Fetch)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Delays.Detail)
	assert.Equal(t, filepath.Join(root, "site", "data", "publications.json"), cfg.DataPath())
	assert.Len(t, cfg.Sources, 2)
}

func TestLoad_ExplicitZeroOverridesDefault(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFile), `
papers_url_prefix: ""
delays:
  download: 0s
  scan_settle: 0s
`)
	writeFile(t, filepath.Join(root, LocalConfigFile), `
delays:
  show_more: 0s
`)

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Zero(t, cfg.Delays.Download)
	assert.Zero(t, cfg.Delays.ScanSettle)
	assert.Zero(t, cfg.Delays.ShowMore)
	assert.Empty(t, cfg.PapersURLPrefix)
	assert.Equal(t, time.Second, cfg.Delays.Detail, "absent keys keep defaults")
	assert.Equal(t, "public/papers", cfg.PapersDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFile), "profile_id: fromfile\n")
	t.Setenv(EnvProfileID, "fromenv")
	t.Setenv(EnvEmail, "env@example.org")

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.ProfileID)
	assert.Equal(t, "env@example.org", cfg.UnpaywallEmail)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(t.TempDir(), "/nonexistent/pubsync.yml")
	assert.ErrorContains(t, err, "not found")
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFile), "page_size: [\n")

	_, err := Load(root, "")
	assert.ErrorContains(t, err, "parsing config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty profile", func(c *Config) { c.ProfileID = "  " }},
		{"zero page size", func(c *Config) { c.PageSize = 0 }},
		{"non-http base", func(c *Config) { c.ScholarURL = "ftp://scholar.google.com" }},
		{"no host", func(c *Config) { c.ScholarURL = "https://" }},
		{"no page candidates", func(c *Config) { c.MaxPageCandidates = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestPaperURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/papers/foo.pdf", cfg.PaperURL("foo.pdf"))
	cfg.PapersURLPrefix = "/static/papers/"
	assert.Equal(t, "/static/papers/foo.pdf", cfg.PaperURL("foo.pdf"))
}

func TestResolve_AbsolutePathKept(t *testing.T) {
	cfg := Default()
	cfg.Root = "/site"
	cfg.DataFile = "/var/data/pubs.json"
	assert.Equal(t, "/var/data/pubs.json", cfg.DataPath())
}

func TestPaperFile(t *testing.T) {
	cfg := Default()
	cfg.Root = "/site"

	path, ok := cfg.PaperFile("/papers/foo.pdf")
	assert.True(t, ok)
	assert.Equal(t, "/site/public/papers/foo.pdf", path)

	_, ok = cfg.PaperFile("/files/foo.pdf")
	assert.False(t, ok)
	_, ok = cfg.PaperFile("/papers/")
	assert.False(t, ok)
}
