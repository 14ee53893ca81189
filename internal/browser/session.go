// Package browser defines the controllable browser session the sync pipeline
// drives, and a Chrome implementation of it.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSession indicates the browser itself failed; the run cannot continue.
	ErrSession = errors.New("browser session failed")
	// ErrTimeout indicates an operation exceeded its own timeout.
	ErrTimeout = errors.New("browser operation timed out")
)

// Response is the result of an in-page fetch.
type Response struct {
	URL         string // final URL after redirects
	Status      int
	ContentType string
	Body        []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Session is a live browser tab. Implementations are not safe for
// concurrent use; callers drive one session from a single goroutine.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// HTML returns the serialized current document.
	HTML(ctx context.Context) (string, error)
	// Location returns the current document URL.
	Location(ctx context.Context) (string, error)
	// WaitReady blocks until selector matches an element or timeout elapses.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Fetch retrieves url from inside the page, sending the page's cookies.
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Response, error)
	// Close releases the browser.
	Close() error
}

// IsTimeout reports whether err is an operation timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
