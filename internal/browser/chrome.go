package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures Launch.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	ExecPath  string // empty to let chromedp locate Chrome
	Logger    *log.Logger
}

// Chrome is a Session backed by a local Chrome instance.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *log.Logger
}

// Launch starts Chrome and opens one tab. The browser lives until Close is
// called or parent is cancelled.
func Launch(parent context.Context, opts ChromeOptions) (*Chrome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("chrome")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("%w: starting chrome: %v", ErrSession, err)
	}
	logger.Debug("started", "headless", opts.Headless)

	return &Chrome{ctx: ctx, cancel: cancel, allocCancel: allocCancel, logger: logger}, nil
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(c.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case c.ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrSession, c.ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, u string, timeout time.Duration) error {
	if err := c.run(ctx, timeout, chromedp.Navigate(u)); err != nil {
		return fmt.Errorf("navigating to %s: %w", u, err)
	}
	return nil
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	return html, nil
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

func (c *Chrome) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return c.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	if err := c.run(ctx, 10*time.Second, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

// fetchScript fetches %s with the page's credentials and returns the body
// base64-encoded, since CDP only transports strings.
const fetchScript = `(async () => {
  const r = await fetch(%s, {credentials: "include", redirect: "follow"});
  const buf = new Uint8Array(await r.arrayBuffer());
  let bin = "";
  for (let i = 0; i < buf.length; i += 0x8000) {
    bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
  }
  return {url: r.url, status: r.status, contentType: r.headers.get("content-type") || "", body: btoa(bin)};
})()`

type fetchResult struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// Fetch runs fetch() inside the tab. When the tab is on another origin it
// first navigates to the target's origin so the request is same-origin and
// carries that site's cookies.
func (c *Chrome) Fetch(ctx context.Context, u string, timeout time.Duration) (*Response, error) {
	target, err := url.Parse(u)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid fetch url %q", u)
	}

	loc, err := c.Location(ctx)
	if err != nil {
		return nil, err
	}
	if origin(loc) != origin(u) {
		home := target.Scheme + "://" + target.Host + "/"
		c.logger.Debug("switching origin", "from", origin(loc), "to", home)
		if err := c.Navigate(ctx, home, timeout); err != nil {
			return nil, err
		}
	}

	quoted, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}

	var res fetchResult
	eval := chromedp.Evaluate(fmt.Sprintf(fetchScript, quoted), &res,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		})
	if err := c.run(ctx, timeout, eval); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}

	body, err := base64.StdEncoding.DecodeString(res.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding body of %s: %w", u, err)
	}
	return &Response{URL: res.URL, Status: res.Status, ContentType: res.ContentType, Body: body}, nil
}

// Close shuts the tab and the browser process.
func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	return nil
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
