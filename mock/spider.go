package mock

import (
	"context"

	"github.com/fwojciec/recrawl"
)

var (
	_ recrawl.Spider          = (*Spider)(nil)
	_ recrawl.Errbacker       = (*Spider)(nil)
	_ recrawl.StashableSpider = (*Spider)(nil)
)

// Spider is a mock implementation of recrawl.Spider.
// Nil function fields fall back to harmless defaults so tests only set
// what they exercise.
type Spider struct {
	NameValue       string
	StartRequestsFn func() []*recrawl.Request
	ParseFn         func(ctx context.Context, resp *recrawl.Response) (recrawl.Result, error)
	Handlers        map[string]recrawl.ParseFunc
	ErrbackFn       func(ctx context.Context, req *recrawl.Request, err error) (recrawl.Result, error)
	StashAttrsFn    func() map[string]recrawl.Stasher
}

func (s *Spider) Name() string {
	return s.NameValue
}

func (s *Spider) StartRequests() []*recrawl.Request {
	if s.StartRequestsFn == nil {
		return nil
	}
	return s.StartRequestsFn()
}

func (s *Spider) Parse(ctx context.Context, resp *recrawl.Response) (recrawl.Result, error) {
	if s.ParseFn == nil {
		return recrawl.Result{}, nil
	}
	return s.ParseFn(ctx, resp)
}

func (s *Spider) Handler(name string) (recrawl.ParseFunc, bool) {
	fn, ok := s.Handlers[name]
	return fn, ok
}

func (s *Spider) Errback(ctx context.Context, req *recrawl.Request, err error) (recrawl.Result, error) {
	if s.ErrbackFn == nil {
		return recrawl.Result{}, nil
	}
	return s.ErrbackFn(ctx, req, err)
}

func (s *Spider) StashAttrs() map[string]recrawl.Stasher {
	if s.StashAttrsFn == nil {
		return nil
	}
	return s.StashAttrsFn()
}

var _ recrawl.ItemSink = (*ItemSink)(nil)

// ItemSink is a mock implementation of recrawl.ItemSink.
type ItemSink struct {
	WriteItemFn func(ctx context.Context, item *recrawl.Item) error
}

func (s *ItemSink) WriteItem(ctx context.Context, item *recrawl.Item) error {
	return s.WriteItemFn(ctx, item)
}
