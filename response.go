package recrawl

import (
	"net/http"
	"sync"
)

// Response is the result of fetching a Request.
type Response struct {
	Request  *Request
	URL      string // final URL after redirects
	Status   int
	Header   http.Header
	Body     []byte // raw body as received
	Encoding string // charset the body was decoded from
	Text     string // body decoded to UTF-8

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	v   any
	err error
}

// Memo returns the cached value stored under key, computing it with fn on
// first use. Parsers use it so a response is parsed at most once no matter
// how many callbacks ask for the parsed form.
func (r *Response) Memo(key string, fn func() (any, error)) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.memo[key]; ok {
		return e.v, e.err
	}
	v, err := fn()
	if r.memo == nil {
		r.memo = make(map[string]memoEntry)
	}
	r.memo[key] = memoEntry{v: v, err: err}
	return v, err
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
