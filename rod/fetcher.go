// Package rod fetches pages with a headless Chrome browser so that content
// rendered by JavaScript is visible to spiders.
package rod

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fwojciec/recrawl"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Fetcher implements recrawl.Fetcher at compile time.
var _ recrawl.Fetcher = (*Fetcher)(nil)

// DefaultFetchTimeout bounds a page load when the request sets no timeout.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher renders pages in a recycled headless browser. It only performs
// GET requests; headers, cookies and bodies are not sent.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager *BrowserManager
	timeout time.Duration
	maxPage int64
	closed  atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the default page load timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRecycleAfter sets how many pages a browser renders before it is
// replaced.
func WithRecycleAfter(n int64) Option {
	return func(f *Fetcher) {
		f.maxPage = n
	}
}

// NewFetcher launches a headless browser. Close must be called when the
// Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{timeout: DefaultFetchTimeout, maxPage: DefaultMaxPages}
	for _, opt := range opts {
		opt(f)
	}
	manager, err := NewBrowserManager(WithMaxPages(f.maxPage))
	if err != nil {
		return nil, err
	}
	f.manager = manager
	return f, nil
}

// serializeJS returns the document with open shadow roots inlined as
// declarative shadow DOM, so links inside web components can be followed.
const serializeJS = `() => {
	const root = document.documentElement;
	if (!root.getHTML) return root.outerHTML;
	const shadowRoots = Array.from(document.querySelectorAll('*'))
		.map(el => el.shadowRoot).filter(Boolean);
	return '<!DOCTYPE html><html>' + root.getHTML({ shadowRoots }) + '</html>';
}`

// statusJS reads the HTTP status of the main document. Browsers that do not
// report it yield 0.
const statusJS = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return nav && nav.responseStatus ? nav.responseStatus : 0;
}`

// Fetch navigates to the request URL and returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error) {
	if f.closed.Load() {
		return nil, recrawl.Errorf(recrawl.EINVALID, "fetcher is closed")
	}
	if req.Method != "" && req.Method != http.MethodGet {
		return nil, recrawl.Errorf(recrawl.EINVALID, "browser fetcher cannot send %s requests", req.Method)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := f.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := f.manager.Browser().Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()
	defer f.manager.IncrementPageCount()

	page = page.Context(ctx)
	if err := page.Navigate(req.FullURL()); err != nil {
		return nil, wrapContext(ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, wrapContext(ctx, err)
	}

	html, err := page.Eval(serializeJS)
	if err != nil {
		return nil, wrapContext(ctx, err)
	}
	status := http.StatusOK
	if res, err := page.Eval(statusJS); err == nil && res.Value.Int() > 0 {
		status = res.Value.Int()
	}
	finalURL := req.URL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	text := html.Value.Str()
	return &recrawl.Response{
		Request:  req,
		URL:      finalURL,
		Status:   status,
		Header:   http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:     []byte(text),
		Encoding: "utf-8",
		Text:     text,
	}, nil
}

// wrapContext reports the context error when the page failed because the
// context ended.
func wrapContext(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// LauncherPID returns the process ID of the browser launcher.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}

// Close releases browser resources. It is safe to call more than once.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}
