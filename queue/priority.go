package queue

import (
	"bytes"
	"cmp"
	"encoding/gob"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/fwojciec/recrawl"
)

// Compile-time interface verification.
var (
	_ recrawl.RequestQueue = (*Priority)(nil)
	_ recrawl.Stasher      = (*Priority)(nil)
	_ recrawl.FrontPutter  = (*Priority)(nil)
)

// Factory creates the sub-queue for one priority.
type Factory func(p recrawl.Priority) (recrawl.RequestQueue, error)

// SimpleFactory creates Simple sub-queues.
func SimpleFactory(recrawl.Priority) (recrawl.RequestQueue, error) {
	return NewSimple(), nil
}

// DiskFactory creates Disk sub-queues in per-priority directories below dir.
func DiskFactory(dir string, maxsize int, opts ...DiskOption) Factory {
	return func(p recrawl.Priority) (recrawl.RequestQueue, error) {
		return NewDisk(filepath.Join(dir, fmt.Sprintf("p%d", p)), maxsize, opts...)
	}
}

// Priority is a strict priority queue built from one FIFO sub-queue per
// registered priority. Get always serves the highest non-empty priority,
// so a steady stream of high priority requests starves lower ones.
//
// Requests for a priority that was not registered are dropped silently
// unless the queue was created with Strict.
type Priority struct {
	priorities []recrawl.Priority
	queues     map[recrawl.Priority]recrawl.RequestQueue
	strict     bool
}

// PriorityOption configures a Priority queue.
type PriorityOption func(*Priority)

// Strict makes Put return an EINVALID error for unregistered priorities
// instead of dropping the request.
func Strict() PriorityOption {
	return func(q *Priority) {
		q.strict = true
	}
}

// NewPriority creates a sub-queue with factory for each of priorities.
func NewPriority(factory Factory, priorities []recrawl.Priority, opts ...PriorityOption) (*Priority, error) {
	if len(priorities) == 0 {
		return nil, recrawl.Errorf(recrawl.EINVALID, "priority queue needs at least one priority")
	}
	q := &Priority{
		queues: make(map[recrawl.Priority]recrawl.RequestQueue, len(priorities)),
	}
	for _, opt := range opts {
		opt(q)
	}

	for _, p := range priorities {
		if _, ok := q.queues[p]; ok {
			continue
		}
		sub, err := factory(p)
		if err != nil {
			return nil, fmt.Errorf("create queue for priority %d: %w", p, err)
		}
		q.queues[p] = sub
		q.priorities = append(q.priorities, p)
	}
	slices.SortFunc(q.priorities, func(a, b recrawl.Priority) int { return cmp.Compare(b, a) })
	return q, nil
}

// Priorities returns the registered priorities, highest first.
func (q *Priority) Priorities() []recrawl.Priority {
	return slices.Clone(q.priorities)
}

// Put enqueues req at req.Priority.
func (q *Priority) Put(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}
	return q.PutPriority(req, req.Priority)
}

// PutPriority enqueues req at priority p regardless of req.Priority.
func (q *Priority) PutPriority(req *recrawl.Request, p recrawl.Priority) error {
	sub, ok := q.queues[p]
	if !ok {
		if q.strict {
			return recrawl.Errorf(recrawl.EINVALID, "priority %d not registered", p)
		}
		return nil
	}
	return sub.Put(req)
}

// PutFront puts req ahead of every request of its priority. Sub-queues that
// cannot do that get req appended instead.
func (q *Priority) PutFront(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}
	sub, ok := q.queues[req.Priority]
	if !ok {
		return q.PutPriority(req, req.Priority)
	}
	if fp, ok := sub.(recrawl.FrontPutter); ok {
		return fp.PutFront(req)
	}
	return sub.Put(req)
}

func (q *Priority) PutMany(reqs []*recrawl.Request) error {
	for _, req := range reqs {
		if err := q.Put(req); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the next request from the highest non-empty priority.
func (q *Priority) Get() (*recrawl.Request, error) {
	for _, p := range q.priorities {
		sub := q.queues[p]
		if sub.Empty() {
			continue
		}
		return sub.Get()
	}
	return nil, nil
}

func (q *Priority) Head() (*recrawl.Request, error) {
	for _, p := range q.priorities {
		sub := q.queues[p]
		if sub.Empty() {
			continue
		}
		return sub.Head()
	}
	return nil, nil
}

func (q *Priority) Len() int {
	n := 0
	for _, sub := range q.queues {
		n += sub.Len()
	}
	return n
}

func (q *Priority) Empty() bool {
	for _, sub := range q.queues {
		if !sub.Empty() {
			return false
		}
	}
	return true
}

func (q *Priority) Clear() error {
	for _, p := range q.priorities {
		if err := q.queues[p].Clear(); err != nil {
			return fmt.Errorf("clear priority %d: %w", p, err)
		}
	}
	return nil
}

type bucketState struct {
	Priority recrawl.Priority
	Data     []byte
}

// Stash writes every sub-queue that holds in-memory state to w.
func (q *Priority) Stash(w io.Writer) error {
	buckets := []bucketState{}
	for _, p := range q.priorities {
		s, ok := q.queues[p].(recrawl.Stasher)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := s.Stash(&buf); err != nil {
			return fmt.Errorf("stash priority %d: %w", p, err)
		}
		buckets = append(buckets, bucketState{Priority: p, Data: buf.Bytes()})
	}
	return gob.NewEncoder(w).Encode(buckets)
}

// Recover restores sub-queues from r. The stash must not reference a
// priority this queue does not have.
func (q *Priority) Recover(r io.Reader) error {
	var buckets []bucketState
	if err := gob.NewDecoder(r).Decode(&buckets); err != nil {
		return recrawl.Errorf(recrawl.ECORRUPT, "decode priority queue: %v", err)
	}
	for _, b := range buckets {
		sub, ok := q.queues[b.Priority]
		if !ok {
			return recrawl.Errorf(recrawl.ECORRUPT, "stash has unregistered priority %d", b.Priority)
		}
		s, ok := sub.(recrawl.Stasher)
		if !ok {
			return recrawl.Errorf(recrawl.ECORRUPT, "priority %d queue cannot be recovered", b.Priority)
		}
		if err := s.Recover(bytes.NewReader(b.Data)); err != nil {
			return fmt.Errorf("recover priority %d: %w", b.Priority, err)
		}
	}
	return nil
}
