package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/recrawl"
)

// SelectorConfig maps anchors matched by a CSS selector to requests with a
// priority and callback.
type SelectorConfig struct {
	Selector string
	Priority recrawl.Priority
	Callback string
}

// Link priorities used by DefaultSelectors.
const (
	PriorityFallback   recrawl.Priority = 0
	PriorityFooter     recrawl.Priority = 0
	PriorityContent    recrawl.Priority = 1
	PriorityTOC        recrawl.Priority = 2
	PriorityNavigation recrawl.Priority = 3
)

// DefaultSelectors ranks navigation above sidebars, sidebars above content
// and everything else last.
func DefaultSelectors() []SelectorConfig {
	return []SelectorConfig{
		{Selector: "nav a[href]", Priority: PriorityNavigation},
		{Selector: "aside a[href]", Priority: PriorityTOC},
		{Selector: "main a[href], article a[href]", Priority: PriorityContent},
		{Selector: "footer a[href]", Priority: PriorityFooter},
		{Selector: "a[href]", Priority: PriorityFallback},
	}
}

// Links returns a request for every anchor matched by configs, resolved
// against the document's <base href> or the response URL. A URL found by
// several selectors keeps the highest priority; the result is in order of
// first occurrence. Non-HTTP links and links back to the page itself are
// skipped. Scope rules such as same-host are left to the task filter.
func Links(resp *recrawl.Response, configs []SelectorConfig) ([]*recrawl.Request, error) {
	page, err := parseURL(resp.URL)
	if err != nil {
		return nil, recrawl.Errorf(recrawl.EINVALID, "invalid base URL: %v", err)
	}
	doc, err := Document(resp)
	if err != nil {
		return nil, err
	}
	base := page
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = page.ResolveReference(ref)
		}
	}
	self := *page
	self.Fragment = ""
	self.RawFragment = ""

	seen := make(map[string]int)
	var reqs []*recrawl.Request
	for _, config := range configs {
		doc.Find(config.Selector).Each(func(_ int, sel *goquery.Selection) {
			href, exists := sel.Attr("href")
			if !exists || href == "" || isNonHTTPLink(href) {
				return
			}
			resolved := resolveURL(base, href)
			if resolved == "" || resolved == self.String() {
				return
			}

			if idx, ok := seen[resolved]; ok {
				if config.Priority > reqs[idx].Priority {
					reqs[idx].Priority = config.Priority
					reqs[idx].Callback = config.Callback
				}
				return
			}
			req := recrawl.NewRequest(resolved)
			req.Priority = config.Priority
			req.Callback = config.Callback
			req.Meta = map[string]string{"referer": resp.URL}
			if text := trim(sel.Text()); text != "" {
				req.Meta["text"] = text
			}
			seen[resolved] = len(reqs)
			reqs = append(reqs, req)
		})
	}
	return reqs, nil
}

func parseURL(raw string) (*url.URL, error) {
	return url.Parse(raw)
}

// resolveURL resolves href against base and strips the fragment. Returns
// "" if href cannot be parsed or does not resolve to http(s).
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

func splitAttr(spec string) (string, string) {
	if i := strings.LastIndex(spec, "@"); i > 0 {
		return strings.TrimSpace(spec[:i]), strings.TrimSpace(spec[i+1:])
	}
	return spec, ""
}

func trim(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
