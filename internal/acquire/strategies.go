package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labsite/pubsync/internal/openaccess"
	"github.com/labsite/pubsync/internal/pdf"
	"github.com/labsite/pubsync/internal/resolve"
)

// Direct tries the listing's own PDF anchor, then the resolver's rewrites of
// the landing URL.
type Direct struct {
	Resolver *resolve.Resolver
}

func (Direct) Name() string { return "direct" }

func (d Direct) Attempt(ctx context.Context, job *Job, t *Trier) (*pdf.Result, error) {
	var urls []string
	if resolve.IsHTTP(job.PDFLink) {
		urls = append(urls, job.PDFLink)
	}
	urls = append(urls, d.Resolver.Resolve(job.Link)...)
	res, _, err := t.TryAll(ctx, job, d.Name(), urls)
	return res, err
}

// PageScan opens the landing page in the session and tries the PDF links it
// advertises. A DOI found in the page metadata is recorded on the job.
type PageScan struct {
	Timeout       time.Duration
	Settle        time.Duration
	MaxCandidates int
}

func (PageScan) Name() string { return "page-scan" }

func (p PageScan) Attempt(ctx context.Context, job *Job, t *Trier) (*pdf.Result, error) {
	if !resolve.IsHTTP(job.Link) {
		return nil, ErrNoCandidates
	}
	if err := job.Session.Navigate(ctx, job.Link, p.Timeout); err != nil {
		return nil, err
	}
	if err := sleep(ctx, p.Settle); err != nil {
		return nil, err
	}

	html, err := job.Session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := job.Session.Location(ctx)
	if err != nil || loc == "" {
		loc = job.Link
	}

	scan, err := ScanPage(html, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing landing page: %w", err)
	}
	if job.DOI == "" {
		job.DOI = scan.DOI
	}

	var urls []string
	for _, u := range scan.Candidates {
		if p.MaxCandidates > 0 && len(urls) == p.MaxCandidates {
			break
		}
		if !job.tried[u] {
			urls = append(urls, u)
		}
	}
	res, _, err := t.TryAll(ctx, job, p.Name(), urls)
	return res, err
}

// Lookuper finds open-access copies of a DOI.
type Lookuper interface {
	Lookup(ctx context.Context, doi string) (*openaccess.Work, error)
}

// OpenAccess asks the lookup service for a free copy of the job's DOI.
type OpenAccess struct {
	Client Lookuper
}

func (OpenAccess) Name() string { return "open-access" }

func (o OpenAccess) Attempt(ctx context.Context, job *Job, t *Trier) (*pdf.Result, error) {
	doi := job.DOI
	for _, u := range []string{job.Link, job.PDFLink} {
		if doi != "" {
			break
		}
		doi = resolve.ExtractDOI(u)
	}
	if doi == "" {
		return nil, ErrNoDOI
	}

	work, err := o.Client.Lookup(ctx, doi)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if openaccess.IsNotFound(err) || errors.Is(err, openaccess.ErrNoEmail) {
			return nil, fmt.Errorf("%w: %v", ErrNotOpenAccess, err)
		}
		return nil, err
	}

	u := work.PDFURL()
	if !resolve.IsHTTP(u) {
		return nil, ErrNotOpenAccess
	}
	res, _, err := t.TryAll(ctx, job, o.Name(), []string{u})
	return res, err
}
