package recrawl

// Content is the main content of a page with navigation, sidebars and
// other boilerplate removed.
type Content struct {
	Title string
	HTML  string
}

// Extractor extracts the main content of an HTML response.
type Extractor interface {
	Extract(resp *Response) (*Content, error)
}

// Converter renders HTML in another text format.
type Converter interface {
	Convert(html string) (string, error)
}
