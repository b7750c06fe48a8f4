// Package crawl runs spiders as recoverable tasks.
//
// A Task pulls requests from its queue, fetches them, and feeds parse
// results back through its admission filter. When interrupted it asks a
// Decider whether to resume, discard the crawl, or stash the frontier so a
// later run can pick up where this one stopped.
package crawl

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/filter"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Task.
type State int32

const (
	StateCreated State = iota
	StateRecovered
	StateRunning
	StateCompleted
	StateStashed
	StateDiscarded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRecovered:
		return "recovered"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStashed:
		return "stashed"
	case StateDiscarded:
		return "discarded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stash attribute names.
const (
	AttrQueue  = "queue"
	AttrFilter = "filter"

	spiderAttrPrefix = "spider."
)

// Task crawls with a single spider on a single goroutine.
//
// Spider, Queue, Fetcher and Store are required. A nil Filter admits every
// request; Items, Limiter, Metrics and Decider are optional. Without a
// Decider an interrupt stashes the task.
type Task struct {
	ID      string
	Spider  recrawl.Spider
	Queue   recrawl.RequestQueue
	Filter  recrawl.Filter
	Fetcher recrawl.Fetcher
	Store   recrawl.StashStore
	Items   recrawl.ItemSink
	Limiter recrawl.DomainLimiter
	Metrics recrawl.Metrics
	Decider recrawl.Decider
	Logger  *slog.Logger

	state     atomic.Int32
	once      sync.Once
	interrupt chan struct{}
	processed int

	// checkpoint, when positive, stashes every checkpoint processed
	// requests without stopping.
	checkpoint int
}

// NewTask returns a task in the Created state.
func NewTask(spider recrawl.Spider, q recrawl.RequestQueue, fetcher recrawl.Fetcher, store recrawl.StashStore) *Task {
	return &Task{
		ID:      uuid.NewString(),
		Spider:  spider,
		Queue:   q,
		Fetcher: fetcher,
		Store:   store,
	}
}

// State returns the current lifecycle state. It is safe to call from any
// goroutine.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) setState(s State) {
	t.state.Store(int32(s))
}

// Processed returns the number of requests the task has handled.
func (t *Task) Processed() int {
	return t.processed
}

func (t *Task) control() chan struct{} {
	t.once.Do(func() {
		t.interrupt = make(chan struct{}, 1)
	})
	return t.interrupt
}

// Interrupt records an interrupt for the task. It never blocks and only
// forwards; the task handles it before its next request. It is safe to call
// from any goroutine, including a signal forwarder.
func (t *Task) Interrupt() {
	select {
	case t.control() <- struct{}{}:
	default:
	}
}

func (t *Task) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.Logger.With("spider", t.Spider.Name(), "task", t.ID)
}

func (t *Task) validate() error {
	switch {
	case t.Spider == nil:
		return recrawl.Errorf(recrawl.EINVALID, "task requires a spider")
	case t.Queue == nil:
		return recrawl.Errorf(recrawl.EINVALID, "task requires a queue")
	case t.Fetcher == nil:
		return recrawl.Errorf(recrawl.EINVALID, "task requires a fetcher")
	case t.Store == nil:
		return recrawl.Errorf(recrawl.EINVALID, "task requires a stash store")
	}
	return nil
}

// Enqueue admits requests through the task filter and queues the accepted
// ones. It returns how many were queued.
func (t *Task) Enqueue(reqs ...*recrawl.Request) (int, error) {
	n := 0
	for _, req := range reqs {
		ok, err := t.admit(req)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (t *Task) admit(req *recrawl.Request) (bool, error) {
	if req == nil {
		return false, nil
	}
	if err := req.Validate(); err != nil {
		t.logger().Warn("request rejected", "url", req.URL, "err", err)
		return false, nil
	}
	if t.Filter != nil && !t.Filter.Accept(req) {
		return false, nil
	}
	if err := t.Queue.Put(req); err != nil {
		return false, fmt.Errorf("queue %s: %w", req.URL, err)
	}
	return true, nil
}

// Run processes requests until the queue is empty, an interrupt ends the
// task, or an error occurs. Parse and errback errors are fatal and leave
// the task Failed.
//
// If ctx is canceled the in-flight request is returned to the queue and the
// task is stashed before Run returns the context error.
func (t *Task) Run(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}
	if s := t.State(); s != StateCreated && s != StateRecovered {
		return recrawl.Errorf(recrawl.EINVALID, "task cannot run from state %s", s)
	}
	t.setState(StateRunning)

	log := t.logger()
	name := t.Spider.Name()
	begin := time.Now()
	log.Info("task started", "queued", t.Queue.Len())

	for {
		select {
		case <-t.control():
			done, err := t.handleInterrupt(ctx)
			if err != nil {
				t.setState(StateFailed)
				return err
			}
			if done {
				return nil
			}
		default:
		}

		if ctx.Err() != nil {
			return t.stashCanceled(ctx, nil)
		}

		req, err := t.Queue.Get()
		if err != nil {
			t.setState(StateFailed)
			return fmt.Errorf("dequeue: %w", err)
		}
		if req == nil {
			// A finished crawl has nothing to resume from.
			if t.checkpoint > 0 {
				if err := t.Store.Remove(name); err != nil {
					t.setState(StateFailed)
					return fmt.Errorf("remove checkpoint: %w", err)
				}
			}
			t.setState(StateCompleted)
			log.Info("task completed", "processed", t.processed, "duration", time.Since(begin))
			return nil
		}

		if err := t.process(ctx, req); err != nil {
			if ctx.Err() != nil {
				return t.stashCanceled(ctx, req)
			}
			t.setState(StateFailed)
			log.Error("task failed", "url", req.URL, "err", err)
			return err
		}

		t.processed++
		if t.Metrics != nil {
			t.Metrics.RequestProcessed(name)
			t.Metrics.QueueDepth(name, t.Queue.Len())
		}
		if t.checkpoint > 0 && t.processed%t.checkpoint == 0 {
			if err := t.Stash(ctx); err != nil {
				t.setState(StateFailed)
				return fmt.Errorf("checkpoint: %w", err)
			}
		}
	}
}

// process fetches one request and applies the callback's result.
func (t *Task) process(ctx context.Context, req *recrawl.Request) error {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx, req.Host()); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var res recrawl.Result
	resp, err := t.Fetcher.Fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.Metrics != nil {
			t.Metrics.FetchFailed(t.Spider.Name())
		}
		eb, ok := t.Spider.(recrawl.Errbacker)
		if !ok {
			t.logger().Warn("request dropped", "url", req.URL, "generation", req.Generation, "err", err)
			return nil
		}
		res, err = eb.Errback(ctx, req, err)
		if err != nil {
			return fmt.Errorf("errback %s: %w", req.URL, err)
		}
	} else {
		parse, err := t.handler(req.Callback)
		if err != nil {
			return err
		}
		res, err = parse(ctx, resp)
		if err != nil {
			return fmt.Errorf("parse %s: %w", req.URL, err)
		}
	}
	return t.apply(ctx, res)
}

func (t *Task) handler(name string) (recrawl.ParseFunc, error) {
	if name == "" {
		return t.Spider.Parse, nil
	}
	fn, ok := t.Spider.Handler(name)
	if !ok {
		return nil, recrawl.Errorf(recrawl.EINVALID, "spider %q has no callback %q", t.Spider.Name(), name)
	}
	return fn, nil
}

func (t *Task) apply(ctx context.Context, res recrawl.Result) error {
	for _, req := range res.Requests {
		if _, err := t.admit(req); err != nil {
			return err
		}
	}
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		if item.Spider == "" {
			item.Spider = t.Spider.Name()
		}
		if t.Items != nil {
			if err := t.Items.WriteItem(ctx, item); err != nil {
				return fmt.Errorf("write item: %w", err)
			}
		}
		if t.Metrics != nil {
			t.Metrics.ItemScraped(t.Spider.Name())
		}
	}
	return nil
}

// handleInterrupt asks the Decider what to do. It reports true if the task
// is finished.
func (t *Task) handleInterrupt(ctx context.Context) (bool, error) {
	log := t.logger()
	decision := recrawl.DecisionStash
	if t.Decider != nil {
		d, err := t.Decider.Decide(ctx, t.Spider.Name())
		if err != nil {
			return false, fmt.Errorf("decide: %w", err)
		}
		decision = d
	}
	log.Info("interrupted", "decision", decision.String())

	switch decision {
	case recrawl.DecisionResume:
		return false, nil
	case recrawl.DecisionDiscard:
		return true, t.Discard()
	case recrawl.DecisionStash:
		if err := t.Stash(ctx); err != nil {
			return false, err
		}
		t.setState(StateStashed)
		return true, nil
	}
	return false, recrawl.Errorf(recrawl.EINVALID, "unknown decision %d", decision)
}

func (t *Task) stashCanceled(ctx context.Context, inflight *recrawl.Request) error {
	cause := ctx.Err()
	if inflight != nil {
		if err := t.requeueFront(inflight); err != nil {
			t.setState(StateFailed)
			return fmt.Errorf("requeue %s: %w", inflight.URL, err)
		}
	}
	if err := t.Stash(context.WithoutCancel(ctx)); err != nil {
		t.setState(StateFailed)
		return fmt.Errorf("stash after cancel: %w", err)
	}
	t.setState(StateStashed)
	return cause
}

// requeueFront returns req to the front of the queue so the stash matches
// the frontier before req was taken. Queues that cannot do that get req
// appended.
func (t *Task) requeueFront(req *recrawl.Request) error {
	if fp, ok := t.Queue.(recrawl.FrontPutter); ok {
		return fp.PutFront(req)
	}
	t.logger().Warn("in-flight request requeued at the tail", "url", req.URL)
	return t.Queue.Put(req)
}

// Discard clears the queue and removes any stash for the spider.
func (t *Task) Discard() error {
	if err := t.Queue.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	if err := t.Store.Remove(t.Spider.Name()); err != nil {
		return fmt.Errorf("remove stash: %w", err)
	}
	t.setState(StateDiscarded)
	t.logger().Info("task discarded")
	return nil
}

// filterStashers lists the history filters in evaluation order.
func (t *Task) filterStashers() []recrawl.Stasher {
	if t.Filter == nil {
		return nil
	}
	return filter.Stashers(t.Filter)
}

// Stash writes the queue, the history filters and the spider's own state to
// the stash store, replacing any earlier stash. The task state is left
// unchanged so Stash doubles as a checkpoint.
func (t *Task) Stash(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}
	attrs := make(map[string][]byte)

	if s, ok := t.Queue.(recrawl.Stasher); ok {
		data, err := stashBytes(s)
		if err != nil {
			return fmt.Errorf("stash queue: %w", err)
		}
		attrs[AttrQueue] = data
	}

	parts := [][]byte{}
	for i, s := range t.filterStashers() {
		data, err := stashBytes(s)
		if err != nil {
			return fmt.Errorf("stash filter %d: %w", i, err)
		}
		parts = append(parts, data)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(parts); err != nil {
		return fmt.Errorf("stash filters: %w", err)
	}
	attrs[AttrFilter] = buf.Bytes()

	if ss, ok := t.Spider.(recrawl.StashableSpider); ok {
		for name, s := range ss.StashAttrs() {
			data, err := stashBytes(s)
			if err != nil {
				return fmt.Errorf("stash spider attribute %q: %w", name, err)
			}
			attrs[spiderAttrPrefix+name] = data
		}
	}

	if err := t.Store.Save(t.Spider.Name(), attrs); err != nil {
		return fmt.Errorf("save stash: %w", err)
	}
	if t.Metrics != nil {
		t.Metrics.Stashed(t.Spider.Name())
	}
	t.logger().Info("stashed", "queued", t.Queue.Len(), "processed", t.processed)
	return nil
}

// Recover restores the task from the spider's stash and removes the stash.
// A stash that does not match the task's queue, filters or spider
// attributes is reported as ECORRUPT.
func (t *Task) Recover(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}
	if s := t.State(); s != StateCreated {
		return recrawl.Errorf(recrawl.EINVALID, "task cannot recover from state %s", s)
	}
	name := t.Spider.Name()
	attrs, err := t.Store.Load(name)
	if err != nil {
		return err
	}

	qs, queueStashes := t.Queue.(recrawl.Stasher)
	data, ok := attrs[AttrQueue]
	switch {
	case queueStashes && !ok:
		return recrawl.Errorf(recrawl.ECORRUPT, "stash for %q has no queue", name)
	case !queueStashes && ok:
		return recrawl.Errorf(recrawl.ECORRUPT, "stash for %q has a queue but the task queue cannot recover it", name)
	case ok:
		if err := qs.Recover(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("recover queue: %w", err)
		}
	}

	data, ok = attrs[AttrFilter]
	if !ok {
		return recrawl.Errorf(recrawl.ECORRUPT, "stash for %q has no filter", name)
	}
	var parts [][]byte
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&parts); err != nil {
		return recrawl.Errorf(recrawl.ECORRUPT, "decode filter stash: %v", err)
	}
	stashers := t.filterStashers()
	if len(parts) != len(stashers) {
		return recrawl.Errorf(recrawl.ECORRUPT, "stash has %d history filters, task has %d", len(parts), len(stashers))
	}
	for i, s := range stashers {
		if err := s.Recover(bytes.NewReader(parts[i])); err != nil {
			return fmt.Errorf("recover filter %d: %w", i, err)
		}
	}

	if ss, ok := t.Spider.(recrawl.StashableSpider); ok {
		for attr, s := range ss.StashAttrs() {
			data, ok := attrs[spiderAttrPrefix+attr]
			if !ok {
				return recrawl.Errorf(recrawl.ECORRUPT, "stash for %q has no spider attribute %q", name, attr)
			}
			if err := s.Recover(bytes.NewReader(data)); err != nil {
				return fmt.Errorf("recover spider attribute %q: %w", attr, err)
			}
		}
	}

	if err := t.Store.Remove(name); err != nil {
		return fmt.Errorf("remove stash: %w", err)
	}
	t.setState(StateRecovered)
	t.logger().Info("recovered", "queued", t.Queue.Len())
	return nil
}

// Close releases the fetcher and, if it holds resources, the queue.
func (t *Task) Close() error {
	var errs []error
	if t.Fetcher != nil {
		if err := t.Fetcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close fetcher: %w", err))
		}
	}
	if c, ok := t.Queue.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	return errors.Join(errs...)
}

func stashBytes(s recrawl.Stasher) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Stash(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
