package queue

import (
	"io"
	"sync"

	"github.com/fwojciec/recrawl"
)

// Compile-time interface verification.
var (
	_ recrawl.RequestQueue = (*Sync)(nil)
	_ recrawl.Stasher      = (*Sync)(nil)
	_ recrawl.FrontPutter  = (*Sync)(nil)
)

// Sync is a FIFO queue that is safe for concurrent use by multiple
// goroutines, e.g. when shared by a worker pool. Get still returns
// (nil, nil) on an empty queue instead of waiting for a producer.
type Sync struct {
	mu sync.Mutex
	q  Simple
}

// NewSync returns an empty Sync queue.
func NewSync() *Sync {
	return &Sync{}
}

func (q *Sync) Put(req *recrawl.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Put(req)
}

func (q *Sync) PutFront(req *recrawl.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.PutFront(req)
}

// PutMany appends reqs atomically with respect to other callers.
func (q *Sync) PutMany(reqs []*recrawl.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.PutMany(reqs)
}

func (q *Sync) Get() (*recrawl.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Get()
}

func (q *Sync) Head() (*recrawl.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Head()
}

func (q *Sync) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Len()
}

func (q *Sync) Empty() bool {
	return q.Len() == 0
}

func (q *Sync) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Clear()
}

func (q *Sync) Stash(w io.Writer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Stash(w)
}

func (q *Sync) Recover(r io.Reader) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Recover(r)
}
