package main

import (
	"context"
	"log/slog"
	"maps"
	"strings"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/etree"
	"github.com/fwojciec/recrawl/goquery"
	"github.com/fwojciec/recrawl/htmltomarkdown"
	"github.com/fwojciec/recrawl/readability"
	"github.com/fwojciec/recrawl/trafilatura"
	"github.com/fwojciec/recrawl/yaml"
)

var (
	_ recrawl.Spider    = (*configSpider)(nil)
	_ recrawl.Errbacker = (*configSpider)(nil)
)

// configSpider follows the links its selectors match and scrapes its fields
// from every HTML page.
type configSpider struct {
	cfg       yaml.Spider
	selectors []goquery.SelectorConfig
	handlers  map[string]recrawl.ParseFunc
	extractor recrawl.Extractor // nil unless content is configured
	converter recrawl.Converter // nil keeps content as HTML
	logger    *slog.Logger
}

func newConfigSpider(cfg yaml.Spider, logger *slog.Logger) *configSpider {
	s := &configSpider{cfg: cfg, handlers: map[string]recrawl.ParseFunc{}, logger: logger}
	switch cfg.Content.Extractor {
	case yaml.ExtractorTrafilatura:
		s.extractor = trafilatura.NewExtractor()
	case yaml.ExtractorReadability:
		s.extractor = readability.NewExtractor()
	}
	if cfg.Content.Markdown {
		s.converter = htmltomarkdown.NewConverter()
	}
	if len(cfg.Selectors) == 0 {
		s.selectors = goquery.DefaultSelectors()
	}
	for _, sel := range cfg.Selectors {
		s.selectors = append(s.selectors, goquery.SelectorConfig{
			Selector: sel.Selector,
			Priority: recrawl.Priority(sel.Priority),
		})
	}
	if cfg.Sitemaps {
		maps.Copy(s.handlers, etree.Handlers())
	}
	return s
}

func (s *configSpider) Name() string {
	return s.cfg.Name
}

// StartRequests returns the start URLs, plus robots.txt of each start URL's
// site when sitemap discovery is on.
func (s *configSpider) StartRequests() []*recrawl.Request {
	var reqs []*recrawl.Request
	for _, u := range s.cfg.StartURLs {
		reqs = append(reqs, recrawl.NewRequest(u))
	}
	if s.cfg.Sitemaps {
		for _, u := range s.cfg.StartURLs {
			if req, err := etree.RobotsRequest(u); err == nil {
				reqs = append(reqs, req)
			}
		}
	}
	return reqs
}

func (s *configSpider) Parse(_ context.Context, resp *recrawl.Response) (recrawl.Result, error) {
	var res recrawl.Result
	if !resp.OK() || !isHTML(resp) {
		return res, nil
	}
	links, err := goquery.Links(resp, s.selectors)
	if err != nil {
		return res, nil
	}
	res.Requests = links

	if len(s.cfg.Fields) == 0 && s.extractor == nil {
		return res, nil
	}
	fields := map[string]any{}
	if len(s.cfg.Fields) > 0 {
		fields, err = goquery.Fields(resp, s.cfg.Fields)
		if err != nil {
			return res, nil
		}
	}
	if s.extractor != nil {
		s.addContent(resp, fields)
	}
	res.Items = append(res.Items, &recrawl.Item{URL: resp.URL, Fields: fields})
	return res, nil
}

// addContent sets the content and content_title fields. A page without
// extractable content still yields its other fields.
func (s *configSpider) addContent(resp *recrawl.Response, fields map[string]any) {
	content, err := s.extractor.Extract(resp)
	if err != nil {
		s.logger.Debug("no content", "url", resp.URL, "err", err)
		return
	}
	fields["content_title"] = content.Title
	fields["content"] = content.HTML
	if s.converter == nil || content.HTML == "" {
		return
	}
	md, err := s.converter.Convert(content.HTML)
	if err != nil {
		s.logger.Debug("markdown conversion failed", "url", resp.URL, "err", err)
		return
	}
	fields["content"] = md
}

func (s *configSpider) Handler(name string) (recrawl.ParseFunc, bool) {
	fn, ok := s.handlers[name]
	return fn, ok
}

// Errback requeues a failed request one generation later. The task filter's
// max_generation bounds how often that happens.
func (s *configSpider) Errback(_ context.Context, req *recrawl.Request, _ error) (recrawl.Result, error) {
	return recrawl.Result{Requests: []*recrawl.Request{req.Retry()}}, nil
}

func isHTML(resp *recrawl.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return ct == "" || strings.Contains(strings.ToLower(ct), "html")
}
