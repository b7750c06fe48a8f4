package crawl

import (
	"context"
	"sync"

	"github.com/fwojciec/recrawl"
	"golang.org/x/time/rate"
)

var _ recrawl.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter provides per-domain rate limiting using token buckets.
// Each domain gets its own limiter, so tasks crawling different hosts do
// not slow each other down. A single DomainLimiter may be shared by every
// task of an Environment.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewDomainLimiter creates a DomainLimiter allowing rps requests per second
// to each domain with a burst of 1.
func NewDomainLimiter(rps float64) *DomainLimiter {
	return NewDomainLimiterBurst(rps, 1)
}

// NewDomainLimiterBurst is like NewDomainLimiter with a configurable burst.
// A burst below 1 is treated as 1.
func NewDomainLimiterBurst(rps float64, burst int) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    max(burst, 1),
	}
}

// Wait blocks until the rate limit allows a request to the domain.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	d.mu.Lock()
	limiter, ok := d.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.rps), d.burst)
		d.limiters[domain] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

// Domains returns the number of domains seen so far.
func (d *DomainLimiter) Domains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.limiters)
}
