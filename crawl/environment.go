package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/queue"
	"golang.org/x/sync/errgroup"
)

// Runnable is a task the Environment can drive.
type Runnable interface {
	Run(ctx context.Context) error
	Interrupt()
	Close() error
}

var (
	_ Runnable = (*Task)(nil)
	_ Runnable = (*CountDownTask)(nil)
)

// Environment owns the lifecycle of a set of tasks: it creates or recovers
// them and forwards process signals to them while they run. Several
// environments can coexist in one process.
type Environment struct {
	Store   recrawl.StashStore
	Decider recrawl.Decider
	Metrics recrawl.Metrics
	Logger  *slog.Logger

	// Notify and Stop subscribe and unsubscribe the interrupt channel.
	// They default to os/signal for SIGINT and SIGTERM.
	Notify func(c chan<- os.Signal)
	Stop   func(c chan<- os.Signal)
}

// NewEnvironment returns an Environment that stashes to store.
func NewEnvironment(store recrawl.StashStore, decider recrawl.Decider, logger *slog.Logger) *Environment {
	return &Environment{
		Store:   store,
		Decider: decider,
		Logger:  logger,
	}
}

// TaskOption configures a task created by NewTask.
type TaskOption func(*Task)

// WithQueue sets the task queue. The default is an in-memory queue.Simple.
func WithQueue(q recrawl.RequestQueue) TaskOption {
	return func(t *Task) { t.Queue = q }
}

// WithFilter sets the admission filter.
func WithFilter(f recrawl.Filter) TaskOption {
	return func(t *Task) { t.Filter = f }
}

// WithItems sets the item sink.
func WithItems(sink recrawl.ItemSink) TaskOption {
	return func(t *Task) { t.Items = sink }
}

// WithLimiter sets the per-domain rate limiter.
func WithLimiter(l recrawl.DomainLimiter) TaskOption {
	return func(t *Task) { t.Limiter = l }
}

// WithLogger overrides the environment logger for the task.
func WithLogger(logger *slog.Logger) TaskOption {
	return func(t *Task) { t.Logger = logger }
}

// NewTask creates a task for spider fetching with fetcher. If a stash exists
// for the spider the task is recovered from it; otherwise the spider's start
// requests are enqueued.
func (e *Environment) NewTask(ctx context.Context, spider recrawl.Spider, fetcher recrawl.Fetcher, opts ...TaskOption) (*Task, error) {
	t := NewTask(spider, queue.NewSimple(), fetcher, e.Store)
	t.Decider = e.Decider
	t.Metrics = e.Metrics
	t.Logger = e.Logger
	for _, opt := range opts {
		opt(t)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}

	exists, err := e.Store.Exists(spider.Name())
	if err != nil {
		return nil, fmt.Errorf("check stash: %w", err)
	}
	if exists {
		if err := t.Recover(ctx); err != nil {
			return nil, fmt.Errorf("recover %q: %w", spider.Name(), err)
		}
		return t, nil
	}

	if _, err := t.Enqueue(spider.StartRequests()...); err != nil {
		return nil, fmt.Errorf("enqueue start requests: %w", err)
	}
	return t, nil
}

// Run runs every task concurrently, one goroutine each, and returns the
// first error. While they run, SIGINT and SIGTERM are forwarded to every
// task as an interrupt; the signal handler does nothing else. Tasks are
// closed when Run returns.
func (e *Environment) Run(ctx context.Context, tasks ...Runnable) error {
	notify, stop := e.Notify, e.Stop
	if notify == nil {
		notify = func(c chan<- os.Signal) { signal.Notify(c, syscall.SIGINT, syscall.SIGTERM) }
	}
	if stop == nil {
		stop = func(c chan<- os.Signal) { signal.Stop(c) }
	}

	sigs := make(chan os.Signal, 1)
	notify(sigs)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-sigs:
				if e.Logger != nil {
					e.Logger.Info("signal received", "signal", sig.String(), "tasks", len(tasks))
				}
				for _, t := range tasks {
					t.Interrupt()
				}
			case <-done:
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			return t.Run(gctx)
		})
	}
	err := g.Wait()

	stop(sigs)
	close(done)
	wg.Wait()

	var closeErrs []error
	for _, t := range tasks {
		if cerr := t.Close(); cerr != nil {
			closeErrs = append(closeErrs, cerr)
		}
	}
	if err != nil {
		return err
	}
	return errors.Join(closeErrs...)
}
