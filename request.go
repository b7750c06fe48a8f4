package recrawl

import (
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Priority orders requests in a priority queue (higher = sooner).
type Priority int

// Request describes a single fetch the crawl still has to perform.
//
// Callback names the spider handler that parses the response. It is a name
// rather than a function so that requests survive a stash and recover.
type Request struct {
	URL        string
	Callback   string
	Method     string
	Priority   Priority
	Tag        string
	Header     http.Header
	Cookies    map[string]string
	Timeout    time.Duration
	Query      url.Values
	Body       []byte
	Encoding   string
	Generation int
	Meta       map[string]string
}

// NewRequest returns a GET request for rawURL.
func NewRequest(rawURL string) *Request {
	return &Request{
		URL:    rawURL,
		Method: http.MethodGet,
	}
}

// Validate returns an error if the request contains invalid fields.
func (r *Request) Validate() error {
	if r.URL == "" {
		return Errorf(EINVALID, "request URL required")
	}
	if _, err := url.Parse(r.URL); err != nil {
		return Errorf(EINVALID, "request URL %q: %v", r.URL, err)
	}
	return nil
}

// Retry returns a copy of the request with its generation incremented.
// Spider callbacks use it to re-enqueue a failed request.
func (r *Request) Retry() *Request {
	c := r.Clone()
	c.Generation++
	return c
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	if r.Header != nil {
		c.Header = r.Header.Clone()
	}
	if r.Query != nil {
		c.Query = url.Values(http.Header(r.Query).Clone())
	}
	c.Cookies = maps.Clone(r.Cookies)
	c.Meta = maps.Clone(r.Meta)
	c.Body = slices.Clone(r.Body)
	return &c
}

// FullURL returns the request URL with Query merged into its query string.
func (r *Request) FullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	q := u.Query()
	for k, vs := range r.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Host returns the host component of the request URL, or "" if it cannot
// be parsed.
func (r *Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Fingerprint returns the key history filters use to decide whether a
// request was seen before. The fragment is dropped, query parameters are
// sorted and the method and body take part in the key.
func (r *Request) Fingerprint() string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	raw := r.FullURL()
	if u, err := url.Parse(raw); err == nil {
		u.Fragment = ""
		u.RawFragment = ""
		u.Host = strings.ToLower(u.Host)
		u.RawQuery = u.Query().Encode()
		raw = u.String()
	} else if idx := strings.Index(raw, "#"); idx != -1 {
		raw = raw[:idx]
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(raw)
	if len(r.Body) > 0 {
		b.WriteByte('\n')
		b.Write(r.Body)
	}
	return b.String()
}
