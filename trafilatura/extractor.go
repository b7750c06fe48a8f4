// Package trafilatura extracts main page content with go-trafilatura.
package trafilatura

import (
	"bytes"
	"net/url"

	"github.com/fwojciec/recrawl"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Ensure Extractor implements recrawl.Extractor at compile time.
var _ recrawl.Extractor = (*Extractor)(nil)

const contentKey = "trafilatura.content"

// Extractor finds the main content of a page, falling back to readability
// style heuristics when trafilatura's own finds too little.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the main content of resp. The result is memoized on the
// response.
func (e *Extractor) Extract(resp *recrawl.Response) (*recrawl.Content, error) {
	v, err := resp.Memo(contentKey, func() (any, error) {
		return extract(resp)
	})
	if err != nil {
		return nil, err
	}
	return v.(*recrawl.Content), nil
}

func extract(resp *recrawl.Response) (*recrawl.Content, error) {
	src := resp.Text
	if src == "" {
		src = string(resp.Body)
	}
	if len(bytes.TrimSpace([]byte(src))) == 0 {
		return nil, recrawl.Errorf(recrawl.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{EnableFallback: true}
	if u, err := url.Parse(resp.URL); err == nil {
		opts.OriginalURL = u
	}
	result, err := trafilatura.Extract(bytes.NewReader([]byte(src)), opts)
	if err != nil {
		return nil, err
	}

	content := &recrawl.Content{Title: result.Metadata.Title}
	if result.ContentNode != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, result.ContentNode); err != nil {
			return nil, err
		}
		content.HTML = buf.String()
	}
	return content, nil
}
