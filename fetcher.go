package recrawl

import "context"

// Fetcher performs the network side of a request.
type Fetcher interface {
	// Fetch performs the request and returns its response.
	// Non-2xx responses are returned without error.
	// The context controls cancellation; the request's Timeout, if set,
	// bounds the individual fetch.
	Fetch(ctx context.Context, req *Request) (*Response, error)

	// Close releases pooled connections.
	Close() error
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
