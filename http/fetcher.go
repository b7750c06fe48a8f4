// Package http provides an HTTP implementation of recrawl.Fetcher.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/fwojciec/recrawl"
	"golang.org/x/net/html/charset"
)

// DefaultFetchTimeout bounds a fetch when the request sets no Timeout.
const DefaultFetchTimeout = 10 * time.Second

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 10 << 20

// DefaultUserAgent is sent when a request sets no User-Agent header.
const DefaultUserAgent = "recrawl/1.0"

// Ensure Fetcher implements recrawl.Fetcher at compile time.
var _ recrawl.Fetcher = (*Fetcher)(nil)

// Fetcher performs requests with net/http and decodes response bodies to
// UTF-8. Non-2xx responses are returned, not treated as errors; spiders
// decide what a 404 means.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for requests that do not set their own.
// Defaults to DefaultFetchTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many body bytes are read. Longer bodies are
// truncated.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBody = n
	}
}

// WithClient replaces the underlying client, e.g. to set a proxy.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a new HTTP Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	return f
}

// Fetch performs req. The request's Timeout, if set, overrides the
// fetcher default.
func (f *Fetcher) Fetch(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error) {
	timeout := f.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hreq, err := f.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req.URL, err)
	}

	text, enc, err := decode(body, req.Encoding, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	return &recrawl.Response{
		Request:  req,
		URL:      resp.Request.URL.String(),
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     body,
		Encoding: enc,
		Text:     text,
	}, nil
}

func (f *Fetcher) newRequest(ctx context.Context, req *recrawl.Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.FullURL(), body)
	if err != nil {
		return nil, recrawl.Errorf(recrawl.EINVALID, "build request for %s: %v", req.URL, err)
	}
	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}
	if hreq.Header.Get("User-Agent") == "" && f.userAgent != "" {
		hreq.Header.Set("User-Agent", f.userAgent)
	}

	names := make([]string, 0, len(req.Cookies))
	for name := range req.Cookies {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		hreq.AddCookie(&http.Cookie{Name: name, Value: req.Cookies[name]})
	}
	return hreq, nil
}

// decode converts body to UTF-8. An explicit encoding wins; otherwise the
// charset is sniffed from the Content-Type header and the body.
func decode(body []byte, encoding, contentType string) (string, string, error) {
	if encoding != "" {
		enc, name := charset.Lookup(encoding)
		if enc == nil {
			return "", "", recrawl.Errorf(recrawl.EINVALID, "unknown encoding %q", encoding)
		}
		text, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return "", "", fmt.Errorf("decode %s body: %w", name, err)
		}
		return string(text), name, nil
	}

	enc, name, _ := charset.DetermineEncoding(body, contentType)
	text, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", "", fmt.Errorf("decode %s body: %w", name, err)
	}
	return string(text), name, nil
}

// Close drops pooled idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
