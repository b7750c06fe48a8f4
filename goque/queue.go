// Package goque provides a request queue stored in LevelDB through
// github.com/beeker1121/goque.
//
// Unlike the queues in package queue, a goque Queue is durable on its own:
// every Put is committed to the database, so the frontier survives a crash
// without a stash. It cannot put a request back at the front, so a request
// in flight when a run is cancelled is fetched last after resuming.
package goque

import (
	"errors"
	"fmt"
	"os"

	"github.com/beeker1121/goque"
	"github.com/fwojciec/recrawl"
)

// Compile-time interface verification.
var _ recrawl.RequestQueue = (*Queue)(nil)

// Queue is a LevelDB-backed FIFO request queue. It is not safe for
// concurrent use.
type Queue struct {
	dir string
	db  *goque.Queue
}

// Open opens the queue stored in dir, creating it if needed. Requests left
// by a previous run are served first.
func Open(dir string) (*Queue, error) {
	db, err := goque.OpenQueue(dir)
	if err != nil {
		return nil, fmt.Errorf("open leveldb queue: %w", err)
	}
	return &Queue{dir: dir, db: db}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

func (q *Queue) Put(req *recrawl.Request) error {
	if req == nil {
		return recrawl.Errorf(recrawl.EINVALID, "nil request")
	}
	if _, err := q.db.EnqueueObject(req); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (q *Queue) PutMany(reqs []*recrawl.Request) error {
	for _, req := range reqs {
		if err := q.Put(req); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) Get() (*recrawl.Request, error) {
	item, err := q.db.Dequeue()
	if errors.Is(err, goque.ErrEmpty) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return decode(item)
}

func (q *Queue) Head() (*recrawl.Request, error) {
	item, err := q.db.Peek()
	if errors.Is(err, goque.ErrEmpty) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("peek: %w", err)
	}
	return decode(item)
}

func (q *Queue) Len() int {
	return int(q.db.Length())
}

func (q *Queue) Empty() bool {
	return q.db.Length() == 0
}

// Clear drops the database and opens a fresh one in the same directory.
func (q *Queue) Clear() error {
	if err := q.db.Drop(); err != nil {
		return fmt.Errorf("drop leveldb queue: %w", err)
	}
	if err := os.MkdirAll(q.dir, 0755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}
	db, err := goque.OpenQueue(q.dir)
	if err != nil {
		return fmt.Errorf("reopen leveldb queue: %w", err)
	}
	q.db = db
	return nil
}

func decode(item *goque.Item) (*recrawl.Request, error) {
	var req recrawl.Request
	if err := item.ToObject(&req); err != nil {
		return nil, recrawl.Errorf(recrawl.ECORRUPT, "decode queued request %d: %v", item.ID, err)
	}
	return &req, nil
}
