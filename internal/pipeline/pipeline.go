// Package pipeline runs one synchronization: scrape the listing, acquire
// missing PDFs, merge new publications and persist the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/labsite/pubsync/internal/acquire"
	"github.com/labsite/pubsync/internal/browser"
	"github.com/labsite/pubsync/internal/config"
	"github.com/labsite/pubsync/internal/pdf"
	"github.com/labsite/pubsync/internal/publication"
	"github.com/labsite/pubsync/internal/resolve"
	"github.com/labsite/pubsync/internal/scholar"
	"github.com/labsite/pubsync/internal/storage"
	"github.com/labsite/pubsync/internal/title"
)

// ErrEmptyListing means the listing produced no publications, which almost
// always indicates a scraping problem rather than an empty profile.
var ErrEmptyListing = errors.New("listing returned no publications")

// NearDuplicateThreshold is the similarity above which a new title is
// reported as a possible duplicate of a stored one.
const NearDuplicateThreshold = 0.95

// Scraper produces the transient records of the listing.
type Scraper interface {
	Scrape(ctx context.Context, sess browser.Session) ([]*publication.Record, error)
}

// Ledger records run history.
type Ledger interface {
	StartRun(ctx context.Context, id, mode string, started time.Time) error
	RecordAttempt(ctx context.Context, a storage.Attempt) error
	FinishRun(ctx context.Context, id string, runErr error, c storage.RunCounts, finished time.Time) error
}

// Options select the run mode.
type Options struct {
	DryRun  bool // compute and report only; no downloads, no writes
	SkipPDF bool // update metadata only
}

// Pipeline wires the components of a run.
type Pipeline struct {
	Config   *config.Config
	Scraper  Scraper
	Acquirer *acquire.Acquirer
	Ledger   Ledger // optional
	Logger   *log.Logger
}

// DefaultScraper builds the listing scraper from configuration.
func DefaultScraper(cfg *config.Config, interactive bool, logger *log.Logger) *scholar.Scraper {
	return scholar.New(scholar.Options{
		BaseURL:           cfg.ScholarURL,
		ProfileID:         cfg.ProfileID,
		PageSize:          cfg.PageSize,
		Interactive:       interactive,
		ListingTimeout:    cfg.Timeouts.Listing,
		NavigationTimeout: cfg.Timeouts.Navigation,
		ChallengeTimeout:  cfg.Timeouts.Challenge,
		ShowMoreDelay:     cfg.Delays.ShowMore,
		DetailDelay:       cfg.Delays.Detail,
		Logger:            logger,
	})
}

// DefaultAcquirer builds the direct, page-scan and open-access strategies.
func DefaultAcquirer(cfg *config.Config, oa acquire.Lookuper, logger *log.Logger) *acquire.Acquirer {
	logger = logger.WithPrefix("acquire")
	return &acquire.Acquirer{
		Strategies: []acquire.Strategy{
			acquire.Direct{Resolver: resolve.Default()},
			acquire.PageScan{
				Timeout:       cfg.Timeouts.Scan,
				Settle:        cfg.Delays.ScanSettle,
				MaxCandidates: cfg.MaxPageCandidates,
			},
			acquire.OpenAccess{Client: oa},
		},
		Trier: &acquire.Trier{
			Downloader: &pdf.Downloader{Timeout: cfg.Timeouts.Fetch},
			Delay:      cfg.Delays.Download,
			Logger:     logger,
		},
		Logger: logger,
	}
}

// Run performs one synchronization with sess. The store is written only
// when the run completes and opts.DryRun is false.
func (p *Pipeline) Run(ctx context.Context, sess browser.Session, opts Options) (*Report, error) {
	rep := &Report{DryRun: opts.DryRun, SkipPDF: opts.SkipPDF, StartedAt: time.Now()}
	logger := p.Logger

	doc, err := storage.Load(p.Config.DataPath())
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded store", "path", p.Config.DataPath(), "records", doc.Len())

	ledger := p.Ledger
	if opts.DryRun {
		ledger = nil
	}
	if ledger != nil {
		rep.RunID = uuid.NewString()
		if err := ledger.StartRun(ctx, rep.RunID, mode(opts), rep.StartedAt); err != nil {
			logger.Warn("ledger unavailable", "err", err)
			ledger = nil
		}
	}

	err = p.run(ctx, sess, opts, doc, rep, ledger)
	rep.FinishedAt = time.Now()

	if ledger != nil {
		lctx := context.WithoutCancel(ctx)
		if lerr := ledger.FinishRun(lctx, rep.RunID, err, rep.Summary, rep.FinishedAt); lerr != nil {
			logger.Warn("recording run failed", "err", lerr)
		}
	}
	if err != nil {
		return rep, err
	}
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, sess browser.Session, opts Options, doc *publication.Document, rep *Report, ledger Ledger) error {
	scraped, err := p.Scraper.Scrape(ctx, sess)
	if err != nil {
		return err
	}
	if len(scraped) == 0 {
		return ErrEmptyListing
	}

	ix := publication.NewIndex(doc)
	fresh, known := publication.Partition(ix, scraped)
	rep.Summary.Found = len(scraped)
	rep.Summary.Known = len(known)
	rep.NearDuplicates = nearDuplicates(doc, fresh)
	for _, d := range rep.NearDuplicates {
		p.Logger.Warn("possible duplicate", "title", d.Title, "existing", d.Existing, "score", fmt.Sprintf("%.2f", d.Score))
	}

	if !opts.DryRun && !opts.SkipPDF {
		if err := p.acquireAll(ctx, sess, scraped, ix, rep, ledger); err != nil {
			return err
		}
	}

	res := publication.Merge(doc, fresh)
	rep.Summary.Added = len(res.Added)
	rep.NewGroups = res.NewGroups
	for _, r := range res.Added {
		rep.New = append(rep.New, NewItem{
			Year: yearOf(doc, r), Title: r.Title, Authors: r.Authors,
			Venue: r.Venue, Link: r.Link, PDF: r.PDF,
		})
	}

	if !opts.DryRun {
		if err := storage.Save(p.Config.DataPath(), doc); err != nil {
			return fmt.Errorf("saving store: %w", err)
		}
		p.Logger.Info("store saved", "path", p.Config.DataPath(), "added", rep.Summary.Added)
	}

	rep.PDFCount = countPDFs(p.Config.PapersPath())
	return nil
}

// acquireAll materializes a PDF for every scraped publication that lacks a
// valid one, one publication at a time.
func (p *Pipeline) acquireAll(ctx context.Context, sess browser.Session, scraped []*publication.Record, ix *publication.Index, rep *Report, ledger Ledger) error {
	if err := os.MkdirAll(p.Config.PapersPath(), 0755); err != nil {
		return fmt.Errorf("creating papers directory: %w", err)
	}

	for i, r := range scraped {
		logger := p.Logger.With("n", fmt.Sprintf("%d/%d", i+1, len(scraped)))
		existing, isKnown := ix.Lookup(r.Title)

		if isKnown && p.hasValidPDF(existing) {
			rep.Summary.Skipped++
			continue
		}

		slug := title.Slug(r.Title)
		dest := filepath.Join(p.Config.PapersPath(), slug+".pdf")
		rel := p.Config.PaperURL(slug + ".pdf")

		if pdf.IsPDFFile(dest) {
			rep.Summary.Skipped++
			attach(r, existing, rel)
			continue
		}

		logger.Info("acquiring PDF", "title", r.Title)
		job := &acquire.Job{
			Session: sess,
			Title:   r.Title,
			Link:    r.Link,
			PDFLink: r.PDFLink,
			Dest:    dest,
		}
		out, err := p.Acquirer.Acquire(ctx, job)
		p.recordAttempts(ctx, ledger, rep.RunID, r.Title, job.Attempts)

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, browser.ErrSession) {
				return err
			}
			reason := acquire.Reason(err)
			rep.Summary.Failed++
			rep.Failures = append(rep.Failures, Failure{Title: r.Title, Link: r.Link, Reason: reason})
			logger.Warn("PDF unavailable", "title", r.Title, "url", r.Link, "reason", reason)
			continue
		}

		if out.Result.Existing {
			rep.Summary.Skipped++
		} else {
			rep.Summary.Downloaded++
		}
		attach(r, existing, rel)
	}
	return nil
}

// hasValidPDF reports whether a stored record's pdf must be left alone: it
// points at a valid file, or at a location this tool does not manage.
func (p *Pipeline) hasValidPDF(r *publication.Record) bool {
	if r.PDF == "" {
		return false
	}
	path, ok := p.Config.PaperFile(r.PDF)
	if !ok {
		return true
	}
	return pdf.IsPDFFile(path)
}

// attach sets the pdf path on the stored record when there is one, in
// place, and on the transient record otherwise.
func attach(scraped, existing *publication.Record, rel string) {
	if existing != nil {
		existing.PDF = rel
		return
	}
	scraped.PDF = rel
}

func (p *Pipeline) recordAttempts(ctx context.Context, ledger Ledger, runID, t string, attempts []acquire.Attempt) {
	if ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	key := title.Normalize(t)
	for _, a := range attempts {
		err := ledger.RecordAttempt(ctx, storage.Attempt{
			RunID: runID, TitleKey: key, Title: t,
			Strategy: a.Strategy, URL: a.URL, Outcome: a.Outcome, Reason: a.Reason, At: a.At,
		})
		if err != nil {
			p.Logger.Warn("recording attempt failed", "err", err)
			return
		}
	}
}

func nearDuplicates(doc *publication.Document, fresh []*publication.Record) []NearDuplicate {
	var out []NearDuplicate
	for _, r := range fresh {
		key := title.Normalize(r.Title)
		best := NearDuplicate{}
		for _, g := range doc.Publications {
			for _, e := range g.Items {
				if title.Normalize(e.Title) == key {
					continue
				}
				if s := title.Similarity(r.Title, e.Title); s >= NearDuplicateThreshold && s > best.Score {
					best = NearDuplicate{Title: r.Title, Existing: e.Title, Score: s}
				}
			}
		}
		if best.Score > 0 {
			out = append(out, best)
		}
	}
	return out
}

func yearOf(doc *publication.Document, r *publication.Record) int {
	for _, g := range doc.Publications {
		for _, item := range g.Items {
			if item == r {
				return g.Year
			}
		}
	}
	return 0
}

func countPDFs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			n++
		}
	}
	return n
}

func mode(opts Options) string {
	if opts.SkipPDF {
		return "skip-pdf"
	}
	return "sync"
}
