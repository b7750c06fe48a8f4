package mock

import (
	"context"

	"github.com/fwojciec/recrawl"
)

var _ recrawl.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of recrawl.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error) {
	return f.FetchFn(ctx, req)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

var _ recrawl.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of recrawl.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
