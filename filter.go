package recrawl

import (
	"io"
	"regexp"
)

// Filter decides whether a candidate request is admitted to the frontier.
// Implementations may have side effects: history filters record every
// request they accept.
type Filter interface {
	Accept(req *Request) bool
}

// FilterFunc adapts an ordinary function to the Filter interface.
type FilterFunc func(req *Request) bool

// Accept calls f(req).
func (f FilterFunc) Accept(req *Request) bool {
	return f(req)
}

// Stasher is implemented by components whose in-memory state is part of the
// frontier and must survive an interruption.
type Stasher interface {
	// Stash writes the component state to w.
	Stash(w io.Writer) error

	// Recover replaces the component state with the state read from r.
	Recover(r io.Reader) error
}

// URLFilter specifies patterns for including/excluding URLs.
type URLFilter struct {
	// Include patterns - if set, only URLs matching at least one pattern are included.
	Include []*regexp.Regexp

	// Exclude patterns - URLs matching any pattern are excluded.
	// Exclude is applied after Include.
	Exclude []*regexp.Regexp
}

// Match returns true if the URL passes the filter.
// If the filter is nil, all URLs pass.
func (f *URLFilter) Match(url string) bool {
	if f == nil {
		return true
	}

	if len(f.Include) > 0 {
		matched := false
		for _, re := range f.Include {
			if re.MatchString(url) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, re := range f.Exclude {
		if re.MatchString(url) {
			return false
		}
	}

	return true
}

// Accept implements Filter by matching the request URL.
func (f *URLFilter) Accept(req *Request) bool {
	return f.Match(req.URL)
}
