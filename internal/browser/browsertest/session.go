// Package browsertest provides a scripted in-memory browser.Session.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/labsite/pubsync/internal/browser"
)

// Session serves canned pages and fetch responses keyed by URL. Create one
// with New.
type Session struct {
	pages     map[string]string
	redirects map[string]string
	responses map[string]*browser.Response
	fetchErrs map[string]error
	navErrs   map[string]error

	// OnClick is invoked after a click on the keyed selector; it typically
	// swaps the current document with SetHTML.
	OnClick map[string]func(s *Session)
	// OnWait is invoked before WaitReady checks the document; tests use it to
	// simulate a human solving a challenge.
	OnWait func(s *Session, selector string)

	location string
	html     string
	closed   bool

	Navigations []string
	Fetches     []string
	Clicks      []string
	Waits       []string
}

// New returns an empty session positioned on about:blank.
func New() *Session {
	return &Session{
		pages:     map[string]string{},
		redirects: map[string]string{},
		responses: map[string]*browser.Response{},
		fetchErrs: map[string]error{},
		navErrs:   map[string]error{},
		OnClick:   map[string]func(*Session){},
		location:  "about:blank",
	}
}

// AddPage registers the document served at url.
func (s *Session) AddPage(url, html string) *Session {
	s.pages[url] = html
	return s
}

// AddRedirect makes navigations to from land on to.
func (s *Session) AddRedirect(from, to string) *Session {
	s.redirects[from] = to
	return s
}

// FailNavigation makes navigations to url fail with err.
func (s *Session) FailNavigation(url string, err error) *Session {
	s.navErrs[url] = err
	return s
}

// AddResponse registers the fetch response for url.
func (s *Session) AddResponse(url string, status int, contentType string, body []byte) *Session {
	s.responses[url] = &browser.Response{URL: url, Status: status, ContentType: contentType, Body: body}
	return s
}

// FailFetch makes fetches of url fail with err.
func (s *Session) FailFetch(url string, err error) *Session {
	s.fetchErrs[url] = err
	return s
}

// SetHTML replaces the current document without navigating.
func (s *Session) SetHTML(html string) {
	s.html = html
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed
}

func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Navigations = append(s.Navigations, url)
	if err, ok := s.navErrs[url]; ok {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	final := url
	if to, ok := s.redirects[url]; ok {
		final = to
	}
	html, ok := s.pages[final]
	if !ok {
		return fmt.Errorf("navigating to %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	s.location = final
	s.html = html
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.html, ctx.Err()
}

func (s *Session) Location(ctx context.Context) (string, error) {
	return s.location, ctx.Err()
}

// WaitReady checks the current document once; a missing selector times out
// immediately.
func (s *Session) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Waits = append(s.Waits, selector)
	if s.OnWait != nil {
		s.OnWait(s, selector)
	}
	if !s.has(selector) {
		return fmt.Errorf("%w after %s", browser.ErrTimeout, timeout)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.has(selector) {
		return fmt.Errorf("clicking %s: no such element", selector)
	}
	s.Clicks = append(s.Clicks, selector)
	if fn, ok := s.OnClick[selector]; ok {
		fn(s)
	}
	return nil
}

// Fetch returns the registered response, or a 404 when none is registered.
func (s *Session) Fetch(ctx context.Context, url string, timeout time.Duration) (*browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Fetches = append(s.Fetches, url)
	if err, ok := s.fetchErrs[url]; ok {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if r, ok := s.responses[url]; ok {
		c := *r
		return &c, nil
	}
	return &browser.Response{URL: url, Status: 404, ContentType: "text/html", Body: []byte("<html>not found</html>")}, nil
}

func (s *Session) Close() error {
	s.closed = true
	return nil
}

func (s *Session) has(selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

var _ browser.Session = (*Session)(nil)
