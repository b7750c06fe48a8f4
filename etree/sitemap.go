// Package etree discovers crawl seeds from robots.txt and XML sitemaps
// using github.com/beevik/etree.
//
// Discovery runs inside the task like any other page: RobotsRequest seeds
// the crawl and ParseRobots and ParseSitemap are spider callbacks, so
// sitemap fetches are rate limited, deduplicated and stashed with the rest
// of the frontier.
package etree

import (
	"bufio"
	"context"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/recrawl"
)

// Callback names under which spiders register the parsers.
const (
	CallbackRobots  = "robots"
	CallbackSitemap = "sitemap"
)

// Handlers returns the sitemap callbacks keyed by callback name, ready to
// merge into a spider's handler table.
func Handlers() map[string]recrawl.ParseFunc {
	return map[string]recrawl.ParseFunc{
		CallbackRobots:  ParseRobots,
		CallbackSitemap: ParseSitemap,
	}
}

// RobotsRequest returns a request for the robots.txt of the site siteURL
// belongs to.
func RobotsRequest(siteURL string) (*recrawl.Request, error) {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return nil, recrawl.Errorf(recrawl.EINVALID, "invalid site URL %q", siteURL)
	}
	robots := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}
	req := recrawl.NewRequest(robots.String())
	req.Callback = CallbackRobots
	return req, nil
}

// ParseRobots follows the Sitemap: directives of a robots.txt response. If
// there are none, or robots.txt is missing, it falls back to /sitemap.xml.
func ParseRobots(_ context.Context, resp *recrawl.Response) (recrawl.Result, error) {
	var res recrawl.Result
	if resp.OK() {
		sc := bufio.NewScanner(strings.NewReader(resp.Text))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
				continue
			}
			loc := strings.TrimSpace(line[len("sitemap:"):])
			if loc == "" {
				continue
			}
			res.Requests = append(res.Requests, sitemapRequest(resp, loc))
		}
	}
	if len(res.Requests) == 0 {
		res.Requests = append(res.Requests, sitemapRequest(resp, "/sitemap.xml"))
	}
	return res, nil
}

// ParseSitemap turns a <urlset> into page requests and a <sitemapindex>
// into further sitemap requests. A sitemap that is missing or not well
// formed yields nothing; it never fails the task.
func ParseSitemap(_ context.Context, resp *recrawl.Response) (recrawl.Result, error) {
	var res recrawl.Result
	if !resp.OK() {
		return res, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(resp.Body); err != nil {
		return res, nil
	}
	root := doc.Root()
	if root == nil {
		return res, nil
	}

	if root.Tag == "sitemapindex" {
		for _, sm := range root.SelectElements("sitemap") {
			if loc := text(sm, "loc"); loc != "" {
				res.Requests = append(res.Requests, sitemapRequest(resp, loc))
			}
		}
		return res, nil
	}

	for _, el := range root.SelectElements("url") {
		loc := text(el, "loc")
		if loc == "" {
			continue
		}
		req := recrawl.NewRequest(resolve(resp, loc))
		req.Priority = resp.Request.Priority
		req.Meta = map[string]string{"sitemap": resp.URL}
		if lastmod := text(el, "lastmod"); lastmod != "" {
			req.Meta["lastmod"] = lastmod
		}
		res.Requests = append(res.Requests, req)
	}
	return res, nil
}

func text(el *etree.Element, tag string) string {
	child := el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

func sitemapRequest(resp *recrawl.Response, loc string) *recrawl.Request {
	req := recrawl.NewRequest(resolve(resp, loc))
	req.Callback = CallbackSitemap
	req.Priority = resp.Request.Priority
	return req
}

// resolve makes loc absolute against the response URL.
func resolve(resp *recrawl.Response, loc string) string {
	base, err := url.Parse(resp.URL)
	if err != nil {
		return loc
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	return base.ResolveReference(ref).String()
}
