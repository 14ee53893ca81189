package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsite/pubsync/internal/browser"
	"github.com/labsite/pubsync/internal/config"
	"github.com/labsite/pubsync/internal/pipeline"
	"github.com/labsite/pubsync/internal/publication"
	"github.com/labsite/pubsync/internal/resolve"
	"github.com/labsite/pubsync/internal/scholar"
	"github.com/labsite/pubsync/internal/storage"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"empty listing", pipeline.ErrEmptyListing, ExitEmptyListing},
		{"challenge timeout", fmt.Errorf("scraping: %w", scholar.ErrChallengeTimeout), ExitChallenge},
		{"challenge unattended", scholar.ErrChallengeUnattended, ExitChallenge},
		{"browser", fmt.Errorf("%w: starting chrome: boom", browser.ErrSession), ExitBrowserError},
		{"store", fmt.Errorf("%w: parsing", storage.ErrUnreadableStore), ExitDataError},
		{"interrupted", fmt.Errorf("scraping: %w", context.Canceled), ExitInterrupted},
		{"other", errors.New("disk full"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestResolveURLs(t *testing.T) {
	got := resolveURLs(resolve.Default(), []string{
		" https://arxiv.org/abs/2301.01234 ",
		"https://example.com/about",
	})

	want := []ResolveResult{
		{
			URL:        "https://arxiv.org/abs/2301.01234",
			Rule:       "arxiv-abs",
			Candidates: []string{"https://arxiv.org/pdf/2301.01234.pdf"},
		},
		{
			URL:        "https://example.com/about",
			Candidates: []string{},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolveURLs mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "Über...", truncateString("Überlänge", 7))
}

func TestCheckSite(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()

	papers := cfg.PapersPath()
	require.NoError(t, os.MkdirAll(papers, 0755))
	valid := []byte("%PDF-1.4\n" + string(make([]byte, 2000)))
	require.NoError(t, os.WriteFile(filepath.Join(papers, "a.pdf"), valid, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(papers, "c.pdf"), []byte("<!DOCTYPE html><html></html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(papers, "orphan.pdf"), valid, 0644))

	doc := &publication.Document{Publications: []*publication.YearGroup{
		{Year: 2024, Items: []*publication.Record{
			{Title: "A", PDF: "/papers/a.pdf"},
			{Title: "B", PDF: "/papers/b.pdf"},
			{Title: "C", PDF: "/papers/c.pdf"},
			{Title: "D", PDF: "https://example.org/d.pdf"},
			{Title: "Foo"},
			{Title: "foo!"},
		}},
		{Year: 2023, Items: []*publication.Record{{Title: "Foo"}}},
	}}
	require.NoError(t, storage.Save(cfg.DataPath(), doc))

	res, err := checkSite(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "issues", res.Status)
	assert.Equal(t, 7, res.Publications)
	assert.Equal(t, 4, res.WithPDF)
	assert.Equal(t, int64(len(valid)), res.PDFBytes)

	want := []CheckIssue{
		{Type: IssueMissingPDF, Year: 2024, Title: "B", PDF: "/papers/b.pdf"},
		{Type: IssueInvalidPDF, Year: 2024, Title: "C", PDF: "/papers/c.pdf"},
		{Type: IssueDuplicateTitle, Year: 2024, Titles: []string{"Foo", "foo!"}},
		{Type: IssueUnreferenced, PDF: "/papers/orphan.pdf"},
	}
	if diff := cmp.Diff(want, res.Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckSite_Clean(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()

	res, err := checkSite(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.Empty(t, res.Issues)
	assert.NotNil(t, res.Issues)
}

func TestCheckSite_UnreadableStore(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DataPath()), 0755))
	require.NoError(t, os.WriteFile(cfg.DataPath(), []byte("{"), 0644))

	_, err := checkSite(&cfg)
	assert.ErrorIs(t, err, storage.ErrUnreadableStore)
}
