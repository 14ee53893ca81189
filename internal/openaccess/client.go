// Package openaccess looks up legal open-access copies of a DOI through the
// Unpaywall API.
package openaccess

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Unpaywall API root.
	DefaultBaseURL = "https://api.unpaywall.org"

	// RateLimit is requests per second; Unpaywall asks for at most 10.
	RateLimit = 5

	DefaultTimeout = 20 * time.Second
)

// Location is one place a copy of the work is hosted.
type Location struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	HostType  string `json:"host_type"`
	License   string `json:"license"`
	Version   string `json:"version"`
}

// Work is the subset of an Unpaywall DOI record pubsync reads.
type Work struct {
	DOI            string    `json:"doi"`
	Title          string    `json:"title"`
	IsOA           bool      `json:"is_oa"`
	BestOALocation *Location `json:"best_oa_location"`
}

// PDFURL returns the best open-access PDF URL, falling back to the landing
// URL of the best location. It is empty when the work is not open access.
func (w *Work) PDFURL() string {
	if w == nil || !w.IsOA || w.BestOALocation == nil {
		return ""
	}
	if w.BestOALocation.URLForPDF != "" {
		return w.BestOALocation.URLForPDF
	}
	return w.BestOALocation.URL
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Email     string
	UserAgent string
	Timeout   time.Duration
}

// Client is an Unpaywall API client.
type Client struct {
	http    *resty.Client
	email   string
	limiter *rate.Limiter
}

// NewClient creates a client. An empty BaseURL selects DefaultBaseURL.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &Client{
		email:   opts.Email,
		limiter: rate.NewLimiter(rate.Limit(RateLimit), 1),
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		return nil
	})
	c.http = client
	return c
}

// Lookup fetches the Unpaywall record for doi.
func (c *Client) Lookup(ctx context.Context, doi string) (*Work, error) {
	if c.email == "" {
		return nil, ErrNoEmail
	}
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, fmt.Errorf("%w: empty DOI", ErrNotFound)
	}

	var work Work
	resp, err := c.http.R().
		SetContext(ctx).
		SetRawPathParam("doi", doi).
		SetQueryParam("email", c.email).
		SetResult(&work).
		Get("/v2/{doi}")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return &work, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, doi)
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    truncate(strings.TrimSpace(resp.String()), 200),
			DOI:        doi,
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
