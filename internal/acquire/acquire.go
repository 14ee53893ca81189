// Package acquire materializes a local PDF for a publication by trying an
// ordered list of strategies, each producing candidate URLs that are fetched
// and verified through the browser session.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/labsite/pubsync/internal/browser"
	"github.com/labsite/pubsync/internal/pdf"
)

var (
	// ErrNoCandidates means a strategy found nothing to try.
	ErrNoCandidates = errors.New("no candidate URLs")
	// ErrNoDOI means the open-access lookup had no DOI to query.
	ErrNoDOI = errors.New("no DOI known")
	// ErrNotOpenAccess means the lookup service knows no free copy.
	ErrNotOpenAccess = errors.New("no open-access copy")
	// ErrUnavailable means every strategy was exhausted.
	ErrUnavailable = errors.New("PDF unavailable")
)

// Outcome values recorded for each attempt.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeExisting   = "existing"
	OutcomeRejected   = "rejected"
)

// Attempt is one candidate URL tried for a job.
type Attempt struct {
	Strategy string
	URL      string
	Outcome  string
	Reason   string
	At       time.Time
}

// Job is the per-publication context threaded through the strategies.
type Job struct {
	Session browser.Session
	Title   string
	Link    string // landing page
	PDFLink string // standalone PDF anchor from the listing, if any
	DOI     string // filled in by strategies that discover one
	Dest    string // absolute destination path

	Attempts []Attempt

	tried map[string]bool
}

// Strategy produces and tries candidate URLs for a job. It returns a result
// on success, or the error that best explains why it found nothing.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, job *Job, t *Trier) (*pdf.Result, error)
}

// Outcome is a successful acquisition.
type Outcome struct {
	Strategy string
	URL      string
	Result   *pdf.Result
}

// Trier downloads candidates for strategies and records every attempt.
type Trier struct {
	Downloader *pdf.Downloader
	Delay      time.Duration // pause after each download
	Logger     *log.Logger
}

// Try fetches one candidate unless the job already tried it.
func (t *Trier) Try(ctx context.Context, job *Job, strategy, u string) (*pdf.Result, error) {
	if job.tried == nil {
		job.tried = make(map[string]bool)
	}
	if job.tried[u] {
		return nil, nil
	}
	job.tried[u] = true

	t.Logger.Debug("trying", "strategy", strategy, "url", u)
	res, err := t.Downloader.Download(ctx, job.Session, u, job.Dest)

	a := Attempt{Strategy: strategy, URL: u, At: time.Now()}
	switch {
	case err != nil:
		a.Outcome, a.Reason = OutcomeRejected, pdf.Reason(err)
	case res.Existing:
		a.Outcome = OutcomeExisting
	default:
		a.Outcome = OutcomeDownloaded
	}
	job.Attempts = append(job.Attempts, a)

	if err != nil {
		if !fatal(ctx, err) {
			t.Logger.Debug("rejected", "url", u, "reason", a.Reason)
		}
		return nil, err
	}
	if !res.Existing {
		t.Logger.Info("PDF saved", "strategy", strategy, "size", humanize.Bytes(uint64(res.Size)))
		if err := sleep(ctx, t.Delay); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// TryAll tries candidates in order until one succeeds.
func (t *Trier) TryAll(ctx context.Context, job *Job, strategy string, urls []string) (*pdf.Result, string, error) {
	var last error
	for _, u := range urls {
		res, err := t.Try(ctx, job, strategy, u)
		if res != nil {
			return res, u, nil
		}
		if err == nil {
			continue // already tried
		}
		if fatal(ctx, err) {
			return nil, "", err
		}
		last = err
	}
	if last == nil {
		last = ErrNoCandidates
	}
	return nil, "", last
}

// Acquirer runs strategies in order.
type Acquirer struct {
	Strategies []Strategy
	Trier      *Trier
	Logger     *log.Logger
}

// Acquire returns the first successful outcome. When every strategy fails
// the error wraps ErrUnavailable and the last strategy's reason. Context
// cancellation and browser failures are returned as is.
func (a *Acquirer) Acquire(ctx context.Context, job *Job) (*Outcome, error) {
	var last error
	for _, s := range a.Strategies {
		res, err := s.Attempt(ctx, job, a.Trier)
		if err == nil && res != nil {
			return &Outcome{Strategy: s.Name(), URL: lastURL(job), Result: res}, nil
		}
		if fatal(ctx, err) {
			return nil, err
		}
		a.Logger.Debug("strategy failed", "strategy", s.Name(), "reason", Reason(err))
		last = err
	}
	if last == nil {
		last = ErrNoCandidates
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, last)
}

// Reason maps an acquisition error to a short stable string.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoDOI):
		return "no_doi"
	case errors.Is(err, ErrNotOpenAccess):
		return "not_open_access"
	case errors.Is(err, ErrNoCandidates):
		return "no_candidates"
	}
	return pdf.Reason(err)
}

func lastURL(job *Job) string {
	if n := len(job.Attempts); n > 0 {
		return job.Attempts[n-1].URL
	}
	return ""
}

func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, browser.ErrSession)
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
