// Package bloom provides request deduplication using Bloom filters.
package bloom

import (
	"io"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/recrawl"
)

// Filter wraps a Bloom filter for fingerprint deduplication.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected items
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Test returns true if the key might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(key string) bool {
	return f.f.TestString(key)
}

// TestAndAdd adds key and reports whether it might have been present before.
func (f *Filter) TestAndAdd(key string) bool {
	return f.f.TestAndAddString(key)
}

// EstimatedCount returns the approximate number of items in the filter.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}

// WriteTo writes the filter bits to w.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	return f.f.WriteTo(w)
}

// ReadFrom replaces the filter bits with those read from r.
func (f *Filter) ReadFrom(r io.Reader) (int64, error) {
	g := &bloom.BloomFilter{}
	n, err := g.ReadFrom(r)
	if err != nil {
		return n, err
	}
	f.f = g
	return n, nil
}

// Compile-time interface verification.
var (
	_ recrawl.Filter  = (*History)(nil)
	_ recrawl.Stasher = (*History)(nil)
)

// History is a Bloom-backed history filter. It accepts the first request
// with a given fingerprint and rejects later ones. Memory is fixed by the
// capacity and false positive rate; in exchange a small fraction of new
// requests is rejected as already seen, permanently.
//
// If pre is set, only requests pre accepts are checked and recorded; the
// rest pass through untouched.
type History struct {
	pre recrawl.Filter
	f   *Filter
}

// NewHistory creates a History sized for capacity fingerprints at fpRate.
func NewHistory(capacity uint, fpRate float64, pre recrawl.Filter) *History {
	return &History{
		pre: pre,
		f:   NewFilter(capacity, fpRate),
	}
}

// Accept records req and reports whether it was (probably) new.
func (h *History) Accept(req *recrawl.Request) bool {
	if h.pre != nil && !h.pre.Accept(req) {
		return true
	}
	return !h.f.TestAndAdd(req.Fingerprint())
}

// Seen reports whether req was probably recorded, without recording it.
func (h *History) Seen(req *recrawl.Request) bool {
	return h.f.Test(req.Fingerprint())
}

// EstimatedCount returns the approximate number of recorded fingerprints.
func (h *History) EstimatedCount() uint {
	return h.f.EstimatedCount()
}

// Stash writes the filter state to w.
func (h *History) Stash(w io.Writer) error {
	_, err := h.f.WriteTo(w)
	return err
}

// Recover replaces the filter state with the state read from r.
func (h *History) Recover(r io.Reader) error {
	if _, err := h.f.ReadFrom(r); err != nil {
		return recrawl.Errorf(recrawl.ECORRUPT, "decode bloom history: %v", err)
	}
	return nil
}
