package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/recrawl"
)

var _ recrawl.Fetcher = (*RetryFetcher)(nil)

// DefaultRetryDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// RetryFetcher retries failed fetches in place with a fixed backoff schedule
// before reporting the failure. The task loop itself never retries; wrap the
// fetcher when transient network errors should not reach the spider's
// errback.
//
// Non-2xx responses are not errors and are never retried.
type RetryFetcher struct {
	Fetcher recrawl.Fetcher
	Delays  []time.Duration
	Logger  *slog.Logger
}

// NewRetryFetcher wraps next with the given delays. A nil delays slice uses
// DefaultRetryDelays.
func NewRetryFetcher(next recrawl.Fetcher, delays []time.Duration, logger *slog.Logger) *RetryFetcher {
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	return &RetryFetcher{Fetcher: next, Delays: delays, Logger: logger}
}

// Fetch makes up to len(Delays)+1 attempts.
func (f *RetryFetcher) Fetch(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error) {
	maxAttempts := len(f.Delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := f.Fetcher.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt >= maxAttempts-1 {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if f.Logger != nil {
			f.Logger.Debug("retry", "url", req.URL, "attempt", attempt+2, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delays[attempt]):
		}
	}

	return nil, lastErr
}

func (f *RetryFetcher) Close() error {
	return f.Fetcher.Close()
}
