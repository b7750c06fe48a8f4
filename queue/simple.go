// Package queue provides in-memory, disk-backed and priority request queues.
//
// None of the queues block: Get returns (nil, nil) when there is nothing to
// hand out. Only Sync is safe for concurrent use; the others are owned by a
// single task goroutine.
package queue

import (
	"encoding/gob"
	"io"
	"slices"

	"github.com/fwojciec/recrawl"
)

// Compile-time interface verification.
var (
	_ recrawl.RequestQueue = (*Simple)(nil)
	_ recrawl.Stasher      = (*Simple)(nil)
	_ recrawl.FrontPutter  = (*Simple)(nil)
)

// Simple is an unsynchronized FIFO queue.
type Simple struct {
	items []*recrawl.Request
	head  int
}

// NewSimple returns an empty Simple queue.
func NewSimple() *Simple {
	return &Simple{}
}

func (q *Simple) Put(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}
	q.items = append(q.items, req)
	return nil
}

// PutFront puts req ahead of every queued request.
func (q *Simple) PutFront(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}
	if q.head > 0 {
		q.head--
		q.items[q.head] = req
		return nil
	}
	q.items = slices.Insert(q.items, 0, req)
	return nil
}

func (q *Simple) PutMany(reqs []*recrawl.Request) error {
	for _, req := range reqs {
		if err := q.Put(req); err != nil {
			return err
		}
	}
	return nil
}

func (q *Simple) Get() (*recrawl.Request, error) {
	if q.head >= len(q.items) {
		return nil, nil
	}
	req := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head > len(q.items)/2 {
		q.items = append(q.items[:0:0], q.items[q.head:]...)
		q.head = 0
	}
	return req, nil
}

func (q *Simple) Head() (*recrawl.Request, error) {
	if q.head >= len(q.items) {
		return nil, nil
	}
	return q.items[q.head], nil
}

func (q *Simple) Len() int {
	return len(q.items) - q.head
}

func (q *Simple) Empty() bool {
	return q.Len() == 0
}

func (q *Simple) Clear() error {
	q.items = nil
	q.head = 0
	return nil
}

// Stash writes the queued requests to w in FIFO order.
func (q *Simple) Stash(w io.Writer) error {
	return encodeRequests(w, q.items[q.head:])
}

// Recover replaces the queue content with the requests read from r.
func (q *Simple) Recover(r io.Reader) error {
	reqs, err := decodeRequests(r)
	if err != nil {
		return err
	}
	q.items = reqs
	q.head = 0
	return nil
}

func encodeRequests(w io.Writer, reqs []*recrawl.Request) error {
	if reqs == nil {
		reqs = []*recrawl.Request{}
	}
	return gob.NewEncoder(w).Encode(reqs)
}

func decodeRequests(r io.Reader) ([]*recrawl.Request, error) {
	var reqs []*recrawl.Request
	if err := gob.NewDecoder(r).Decode(&reqs); err != nil {
		return nil, recrawl.Errorf(recrawl.ECORRUPT, "decode requests: %v", err)
	}
	return reqs, nil
}
