// Package scholar scrapes a scholar profile listing through a browser
// session.
package scholar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/labsite/pubsync/internal/browser"
	"github.com/labsite/pubsync/internal/publication"
)

var (
	// ErrChallengeTimeout means an anti-bot challenge was shown and not
	// solved within the challenge timeout.
	ErrChallengeTimeout = errors.New("challenge was not solved in time")
	// ErrChallengeUnattended accompanies ErrChallengeTimeout when no one
	// could have solved the challenge by hand.
	ErrChallengeUnattended = errors.New("challenge did not clear in unattended mode; rerun with a visible browser to solve it")
)

// IsChallengeError reports whether err is a fatal challenge error.
func IsChallengeError(err error) bool {
	return errors.Is(err, ErrChallengeTimeout) || errors.Is(err, ErrChallengeUnattended)
}

// Options configures a Scraper.
type Options struct {
	BaseURL   string
	ProfileID string
	PageSize  int

	// Interactive is true when a human can solve challenges in the browser.
	Interactive bool

	ListingTimeout    time.Duration
	NavigationTimeout time.Duration
	ChallengeTimeout  time.Duration
	ShowMoreDelay     time.Duration
	DetailDelay       time.Duration

	Logger *log.Logger
}

// Scraper reads the publication listing of one profile.
type Scraper struct {
	opts   Options
	logger *log.Logger
}

// New creates a scraper. Successive detail page visits are separated by a
// pause of DetailDelay.
func New(opts Options) *Scraper {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scraper{
		opts:   opts,
		logger: logger.WithPrefix("scholar"),
	}
}

// ListingURL returns the first page of the profile listing, newest first.
func (s *Scraper) ListingURL() string {
	return fmt.Sprintf("%s/citations?hl=en&user=%s&view_op=list_works&sortby=pubdate&cstart=0&pagesize=%d",
		strings.TrimRight(s.opts.BaseURL, "/"), url.QueryEscape(s.opts.ProfileID), s.opts.PageSize)
}

// Scrape loads the full listing, expanding it with the show-more button,
// then visits each detail page for the publication's link. Detail failures
// are logged and leave the record without a link.
func (s *Scraper) Scrape(ctx context.Context, sess browser.Session) ([]*publication.Record, error) {
	listing := s.ListingURL()
	s.logger.Info("opening listing", "url", listing)
	if err := sess.Navigate(ctx, listing, s.opts.ListingTimeout); err != nil {
		return nil, fmt.Errorf("loading listing: %w", err)
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if IsChallenge(html) {
		if err := s.awaitChallenge(ctx, sess); err != nil {
			return nil, err
		}
	}

	if err := sess.WaitReady(ctx, SelTable, s.opts.NavigationTimeout); err != nil {
		return nil, fmt.Errorf("waiting for listing table: %w", err)
	}

	html, err = s.expand(ctx, sess)
	if err != nil {
		return nil, err
	}

	records, err := ParseListing(html, s.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}
	s.logger.Info("extracted publications", "count", len(records))

	visited := 0
	for i, r := range records {
		if r.DetailURL == "" {
			continue
		}
		if visited > 0 {
			if err := sleep(ctx, s.opts.DetailDelay); err != nil {
				return nil, err
			}
		}
		visited++
		if err := s.fetchDetail(ctx, sess, r); err != nil {
			if ctx.Err() != nil || errors.Is(err, browser.ErrSession) {
				return nil, err
			}
			s.logger.Warn("could not fetch link", "title", r.Title, "err", err)
			continue
		}
		s.logger.Debug("detail", "n", fmt.Sprintf("%d/%d", i+1, len(records)), "title", r.Title, "link", r.Link)
	}
	return records, nil
}

// awaitChallenge polls for the listing table until the challenge clears.
// Unattended runs wait too, since some interstitials clear on their own.
func (s *Scraper) awaitChallenge(ctx context.Context, sess browser.Session) error {
	if s.opts.Interactive {
		s.logger.Warn("challenge detected; solve it in the browser window",
			"timeout", s.opts.ChallengeTimeout)
	} else {
		s.logger.Warn("challenge detected; waiting for it to clear",
			"timeout", s.opts.ChallengeTimeout)
	}
	if err := sess.WaitReady(ctx, SelTable, s.opts.ChallengeTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.opts.Interactive {
			return fmt.Errorf("%w: %w: %v", ErrChallengeTimeout, ErrChallengeUnattended, err)
		}
		return fmt.Errorf("%w: %v", ErrChallengeTimeout, err)
	}
	s.logger.Info("challenge solved")
	return nil
}

// expand clicks show-more until the row count stops growing or the button
// is gone or disabled, and returns the final document.
func (s *Scraper) expand(ctx context.Context, sess browser.Session) (string, error) {
	prev := 0
	for {
		html, err := sess.HTML(ctx)
		if err != nil {
			return "", err
		}
		doc, err := parse(html)
		if err != nil {
			return "", fmt.Errorf("parsing listing: %w", err)
		}

		n := countRows(doc)
		if n == prev || !canShowMore(doc) {
			return html, nil
		}

		s.logger.Info("showing more", "loaded", n)
		if err := sess.Click(ctx, SelShowMore); err != nil {
			return "", err
		}
		if err := sleep(ctx, s.opts.ShowMoreDelay); err != nil {
			return "", err
		}
		prev = n
	}
}

func (s *Scraper) fetchDetail(ctx context.Context, sess browser.Session, r *publication.Record) error {
	if err := sess.Navigate(ctx, r.DetailURL, s.opts.NavigationTimeout); err != nil {
		return err
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return err
	}
	loc, err := sess.Location(ctx)
	if err != nil || loc == "" {
		loc = r.DetailURL
	}
	link, pdfLink, err := ParseDetail(html, loc)
	if err != nil {
		return err
	}
	r.Link, r.PDFLink = link, pdfLink
	return nil
}

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
