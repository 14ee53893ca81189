package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/labsite/pubsync/internal/config"
	"github.com/labsite/pubsync/internal/pdf"
	"github.com/labsite/pubsync/internal/storage"
	"github.com/labsite/pubsync/internal/title"
)

var checkStrict bool

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit non-zero when issues are found")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the publication store and the papers directory",
	Long: `Verify that every stored pdf path points at an existing file that starts
with the PDF signature, and report titles that appear twice within one year.
PDFs in the papers directory that no record references are listed too.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// Issue types reported by check.
const (
	IssueMissingPDF     = "missing_pdf"
	IssueInvalidPDF     = "invalid_pdf"
	IssueDuplicateTitle = "duplicate_title"
	IssueUnreferenced   = "unreferenced_pdf"
)

// CheckResult is the response for the check command.
type CheckResult struct {
	Status       string       `json:"status"`
	Publications int          `json:"publications"`
	WithPDF      int          `json:"with_pdf"`
	PDFBytes     int64        `json:"pdf_bytes"`
	Issues       []CheckIssue `json:"issues"`
}

// CheckIssue represents a single issue found during check.
type CheckIssue struct {
	Type   string   `json:"type"`
	Year   int      `json:"year,omitempty"`
	Title  string   `json:"title,omitempty"`
	Titles []string `json:"titles,omitempty"`
	PDF    string   `json:"pdf,omitempty"`
}

func checkSite(cfg *config.Config) (*CheckResult, error) {
	doc, err := storage.Load(cfg.DataPath())
	if err != nil {
		return nil, err
	}

	res := &CheckResult{Publications: doc.Len()}
	var issues []CheckIssue
	referenced := make(map[string]bool)

	for _, g := range doc.Publications {
		byKey := make(map[string][]string)
		var keys []string
		for _, r := range g.Items {
			k := title.Normalize(r.Title)
			if _, seen := byKey[k]; !seen {
				keys = append(keys, k)
			}
			byKey[k] = append(byKey[k], r.Title)

			if r.PDF == "" {
				continue
			}
			res.WithPDF++
			path, ok := cfg.PaperFile(r.PDF)
			if !ok {
				continue
			}
			referenced[filepath.Clean(path)] = true

			st, err := os.Stat(path)
			switch {
			case err != nil:
				issues = append(issues, CheckIssue{Type: IssueMissingPDF, Year: g.Year, Title: r.Title, PDF: r.PDF})
			case !pdf.IsPDFFile(path):
				issues = append(issues, CheckIssue{Type: IssueInvalidPDF, Year: g.Year, Title: r.Title, PDF: r.PDF})
			default:
				res.PDFBytes += st.Size()
			}
		}
		for _, k := range keys {
			if titles := byKey[k]; len(titles) > 1 {
				issues = append(issues, CheckIssue{Type: IssueDuplicateTitle, Year: g.Year, Titles: titles})
			}
		}
	}

	matches, _ := filepath.Glob(filepath.Join(cfg.PapersPath(), "*.pdf"))
	sort.Strings(matches)
	for _, m := range matches {
		if !referenced[filepath.Clean(m)] {
			issues = append(issues, CheckIssue{Type: IssueUnreferenced, PDF: cfg.PaperURL(filepath.Base(m))})
		}
	}

	res.Status = "ok"
	if len(issues) > 0 {
		res.Status = "issues"
	}
	if issues == nil {
		issues = []CheckIssue{}
	}
	res.Issues = issues
	return res, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	res, err := checkSite(cfg)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		printCheckHuman(res)
	} else {
		outputJSON(res)
	}

	if checkStrict && len(res.Issues) > 0 {
		os.Exit(ExitDataError)
	}
	return nil
}

func printCheckHuman(res *CheckResult) {
	if len(res.Issues) == 0 {
		fmt.Printf("Site check: OK\n\n")
	} else {
		fmt.Printf("Site check: %d issues found\n\n", len(res.Issues))
		t := newTable("")
		t.AppendHeader(table.Row{"Issue", "Year", "Title", "PDF"})
		for _, is := range res.Issues {
			name := is.Title
			if len(is.Titles) > 0 {
				name = strings.Join(is.Titles, "\n")
			}
			t.AppendRow(table.Row{is.Type, formatYear(is.Year), truncateString(name, ReportTitleMaxLen), is.PDF})
		}
		t.Render()
		fmt.Println()
	}
	fmt.Printf("%d publications checked, %d with PDFs (%s)\n",
		res.Publications, res.WithPDF, humanize.Bytes(uint64(res.PDFBytes)))
}
