// Package pdf retrieves PDFs through a browser session and verifies them
// before anything touches the artifact directory.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labsite/pubsync/internal/browser"
	"github.com/labsite/pubsync/internal/storage"
)

// MinSize is the smallest payload accepted as a PDF.
const MinSize = 1000

// htmlSniffLen is how much of a rejected payload is searched for HTML markers.
const htmlSniffLen = 200

var htmlMarkers = [][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
	[]byte("<script"),
}

// Download failures. Every one except ErrWrite is an integrity rejection of
// the candidate URL; the caller moves on to the next candidate.
var (
	ErrTransport           = errors.New("transport error")
	ErrHTTPStatus          = errors.New("unexpected http status")
	ErrGotHTMLInsteadOfPDF = errors.New("got HTML instead of PDF")
	ErrNotAPDFSignature    = errors.New("payload lacks PDF signature")
	ErrTooSmall            = errors.New("payload too small to be a PDF")
	ErrWrite               = errors.New("writing PDF failed")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrTransport, "transport_error"},
	{ErrHTTPStatus, "http_status"},
	{ErrGotHTMLInsteadOfPDF, "got_html_instead_of_pdf"},
	{ErrNotAPDFSignature, "not_a_pdf_signature"},
	{ErrTooSmall, "too_small"},
	{ErrWrite, "write_failed"},
}

// Reason returns the stable short reason for a download error, as used in
// logs and the run ledger.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), browser.IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}

// IsRejection reports whether err means the candidate was bad, as opposed
// to the run itself failing.
func IsRejection(err error) bool {
	for _, r := range reasons[:5] {
		if errors.Is(err, r.err) {
			return true
		}
	}
	return false
}

// Fetcher is the part of a browser session the downloader needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*browser.Response, error)
}

// Result describes a PDF present at the destination.
type Result struct {
	URL      string `json:"url,omitempty"`
	FinalURL string `json:"final_url,omitempty"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Pages    int    `json:"pages,omitempty"`
	Existing bool   `json:"existing,omitempty"`
}

// Downloader fetches and verifies PDFs.
type Downloader struct {
	Timeout time.Duration // per fetch; zero means no limit
}

// Download fetches url through f and writes it to dest only if it passes
// verification. A dest that already holds a PDF is returned as is, without
// fetching. On failure dest is left untouched.
func (d *Downloader) Download(ctx context.Context, f Fetcher, url, dest string) (*Result, error) {
	if IsPDFFile(dest) {
		return existing(dest), nil
	}

	resp, err := f.Fetch(ctx, url, d.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, browser.ErrSession) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if err := Verify(resp); err != nil {
		return nil, err
	}

	if err := storage.WriteFileAtomic(dest, resp.Body, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	res := &Result{URL: url, FinalURL: resp.URL, Path: dest, Size: int64(len(resp.Body))}
	if n, err := PageCount(dest); err == nil {
		res.Pages = n
	}
	return res, nil
}

// Verify applies the integrity checks to a fetched response.
func Verify(resp *browser.Response) error {
	if !resp.OK() {
		return fmt.Errorf("%w: %d", ErrHTTPStatus, resp.Status)
	}

	body := resp.Body
	if !bytes.HasPrefix(body, Signature) {
		head := body
		if len(head) > htmlSniffLen {
			head = head[:htmlSniffLen]
		}
		head = bytes.ToLower(head)
		for _, m := range htmlMarkers {
			if bytes.Contains(head, m) {
				return fmt.Errorf("%w (content-type %q)", ErrGotHTMLInsteadOfPDF, resp.ContentType)
			}
		}
		return ErrNotAPDFSignature
	}

	if len(body) < MinSize {
		return fmt.Errorf("%w: %d bytes", ErrTooSmall, len(body))
	}
	return nil
}

func existing(path string) *Result {
	res := &Result{Path: path, Existing: true}
	if n, err := PageCount(path); err == nil {
		res.Pages = n
	}
	if st, err := statSize(path); err == nil {
		res.Size = st
	}
	return res
}
