// Package goquery parses fetched HTML with github.com/PuerkitoBio/goquery
// and turns anchors into follow-up requests.
package goquery

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/recrawl"
)

const documentKey = "goquery.document"

// Document returns the parsed HTML document of resp. The document is parsed
// on first use and cached on the response, so every callback that asks for
// it shares one parse.
func Document(resp *recrawl.Response) (*goquery.Document, error) {
	v, err := resp.Memo(documentKey, func() (any, error) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(textBytes(resp)))
		if err != nil {
			return nil, recrawl.Errorf(recrawl.EINVALID, "failed to parse HTML: %v", err)
		}
		if u, err := parseURL(resp.URL); err == nil {
			doc.Url = u
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*goquery.Document), nil
}

// textBytes prefers the decoded text; the raw body is used when the
// response was built without one.
func textBytes(resp *recrawl.Response) []byte {
	if resp.Text != "" {
		return []byte(resp.Text)
	}
	return resp.Body
}

// Title returns the trimmed <title> of the document.
func Title(resp *recrawl.Response) (string, error) {
	doc, err := Document(resp)
	if err != nil {
		return "", err
	}
	return trim(doc.Find("title").First().Text()), nil
}

// Fields extracts one value per named CSS selector: the trimmed text of
// the first match, or the attribute value when the selector ends in
// "@attr" (e.g. `meta[name=description]@content`). Selectors without a
// match are left out.
func Fields(resp *recrawl.Response, selectors map[string]string) (map[string]any, error) {
	doc, err := Document(resp)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(selectors))
	for name, spec := range selectors {
		sel, attr := splitAttr(spec)
		match := doc.Find(sel).First()
		if match.Length() == 0 {
			continue
		}
		if attr == "" {
			fields[name] = trim(match.Text())
			continue
		}
		if v, ok := match.Attr(attr); ok {
			fields[name] = trim(v)
		}
	}
	return fields, nil
}
