package filter

import (
	"encoding/gob"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/recrawl"
)

// Compile-time interface verification.
var (
	_ recrawl.Filter  = (*SetHistory)(nil)
	_ recrawl.Stasher = (*SetHistory)(nil)
)

// SetHistory is an exact history filter. It accepts the first request with
// a given fingerprint and rejects every later one for its whole lifetime.
// Memory grows with the number of distinct fingerprints.
//
// If pre is set, only requests pre accepts are checked and recorded; the
// rest pass through untouched. A typical pre is FirstGeneration so retried
// requests are not rejected as duplicates of themselves.
//
// SetHistory is not safe for concurrent use.
type SetHistory struct {
	pre  recrawl.Filter
	seen map[uint64][]string
	n    int
}

// NewSetHistory returns an empty SetHistory.
func NewSetHistory(pre recrawl.Filter) *SetHistory {
	return &SetHistory{
		pre:  pre,
		seen: make(map[uint64][]string),
	}
}

// Accept records req and reports whether it was new.
func (h *SetHistory) Accept(req *recrawl.Request) bool {
	if h.pre != nil && !h.pre.Accept(req) {
		return true
	}
	return h.add(req.Fingerprint())
}

// Seen reports whether req was recorded, without recording it.
func (h *SetHistory) Seen(req *recrawl.Request) bool {
	fp := req.Fingerprint()
	return slices.Contains(h.seen[xxhash.Sum64String(fp)], fp)
}

// Len returns the number of recorded fingerprints.
func (h *SetHistory) Len() int {
	return h.n
}

// add records fp. Fingerprints are bucketed by xxhash; the bucket keeps
// the full fingerprint so hash collisions never cause a false rejection.
func (h *SetHistory) add(fp string) bool {
	k := xxhash.Sum64String(fp)
	if slices.Contains(h.seen[k], fp) {
		return false
	}
	h.seen[k] = append(h.seen[k], fp)
	h.n++
	return true
}

// Stash writes the recorded fingerprints to w.
func (h *SetHistory) Stash(w io.Writer) error {
	fps := make([]string, 0, h.n)
	for _, bucket := range h.seen {
		fps = append(fps, bucket...)
	}
	slices.Sort(fps)
	return gob.NewEncoder(w).Encode(fps)
}

// Recover replaces the recorded fingerprints with those read from r.
func (h *SetHistory) Recover(r io.Reader) error {
	var fps []string
	if err := gob.NewDecoder(r).Decode(&fps); err != nil {
		return recrawl.Errorf(recrawl.ECORRUPT, "decode history: %v", err)
	}
	h.seen = make(map[uint64][]string, len(fps))
	h.n = 0
	for _, fp := range fps {
		h.add(fp)
	}
	return nil
}
