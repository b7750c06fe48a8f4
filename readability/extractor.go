// Package readability extracts main page content with go-readability.
package readability

import (
	"bytes"
	"net/url"

	"github.com/fwojciec/recrawl"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements recrawl.Extractor at compile time.
var _ recrawl.Extractor = (*Extractor)(nil)

const contentKey = "readability.content"

// Extractor applies Mozilla's Readability algorithm.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the main content of resp. Relative links in the content
// are resolved against the response URL. The result is memoized on the
// response.
func (e *Extractor) Extract(resp *recrawl.Response) (*recrawl.Content, error) {
	v, err := resp.Memo(contentKey, func() (any, error) {
		src := resp.Text
		if src == "" {
			src = string(resp.Body)
		}
		if len(bytes.TrimSpace([]byte(src))) == 0 {
			return nil, recrawl.Errorf(recrawl.EINVALID, "empty HTML input")
		}
		pageURL, _ := url.Parse(resp.URL)
		article, err := readability.FromReader(bytes.NewReader([]byte(src)), pageURL)
		if err != nil {
			return nil, err
		}
		return &recrawl.Content{Title: article.Title, HTML: article.Content}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*recrawl.Content), nil
}
