// Package gokv provides a history filter persisted in LevelDB through gokv.
package gokv

import (
	"sync"

	"github.com/fwojciec/recrawl"
	"github.com/philippgille/gokv/leveldb"
)

// Ensure History implements recrawl.Filter.
var _ recrawl.Filter = (*History)(nil)

// History is an exact history filter whose fingerprints live on disk, so
// it survives restarts without being stashed and is not bounded by memory.
// It does not implement recrawl.Stasher.
//
// Filters cannot fail, so a storage error accepts the request and is kept
// for Err. Accepting on error may fetch a page twice but never loses one.
type History struct {
	pre   recrawl.Filter
	store leveldb.Store

	mu  sync.Mutex
	err error
}

// Open opens or creates the history database in dir. See
// filter.NewSetHistory for the meaning of pre.
func Open(dir string, pre recrawl.Filter) (*History, error) {
	store, err := leveldb.NewStore(leveldb.Options{Path: dir})
	if err != nil {
		return nil, err
	}
	return &History{pre: pre, store: store}, nil
}

// Accept records req and reports whether it was new.
func (h *History) Accept(req *recrawl.Request) bool {
	if h.pre != nil && !h.pre.Accept(req) {
		return true
	}
	key := req.Fingerprint()

	h.mu.Lock()
	defer h.mu.Unlock()
	var seen bool
	found, err := h.store.Get(key, &seen)
	if err != nil {
		h.setErr(err)
		return true
	}
	if found {
		return false
	}
	if err := h.store.Set(key, true); err != nil {
		h.setErr(err)
	}
	return true
}

// Seen reports whether req was recorded, without recording it.
func (h *History) Seen(req *recrawl.Request) (bool, error) {
	var seen bool
	return h.store.Get(req.Fingerprint(), &seen)
}

// Err returns the first storage error Accept encountered.
func (h *History) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *History) setErr(err error) {
	if h.err == nil {
		h.err = err
	}
}

// Close closes the database.
func (h *History) Close() error {
	return h.store.Close()
}
