package crawl_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/crawl"
	"github.com/fwojciec/recrawl/filter"
	"github.com/fwojciec/recrawl/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSignals stands in for os/signal.
type fakeSignals struct {
	mu      sync.Mutex
	c       chan<- os.Signal
	stopped bool
}

func (f *fakeSignals) notify(c chan<- os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c = c
}

func (f *fakeSignals) stop(chan<- os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeSignals) send(sig os.Signal) {
	f.mu.Lock()
	c := f.c
	f.mu.Unlock()
	c <- sig
}

// observed reports when the environment forwards an interrupt.
type observed struct {
	*crawl.Task
	once        sync.Once
	interrupted chan struct{}
}

func observe(t *crawl.Task) *observed {
	return &observed{Task: t, interrupted: make(chan struct{})}
}

func (o *observed) Interrupt() {
	o.Task.Interrupt()
	o.once.Do(func() { close(o.interrupted) })
}

func newEnvironment(store recrawl.StashStore, decision recrawl.Decision, sigs *fakeSignals) *crawl.Environment {
	env := crawl.NewEnvironment(store, mock.Decider(decision), nil)
	env.Notify = sigs.notify
	env.Stop = sigs.stop
	return env
}

func TestEnvironment_NewTask(t *testing.T) {
	t.Parallel()

	t.Run("fresh task enqueues start requests through the filter", func(t *testing.T) {
		t.Parallel()

		s := &site{}
		spider := linkSpider(s)
		spider.StartRequestsFn = func() []*recrawl.Request {
			return []*recrawl.Request{
				recrawl.NewRequest("https://a.test/"),
				recrawl.NewRequest("https://a.test/"),
				recrawl.NewRequest("https://b.test/"),
			}
		}
		env := crawl.NewEnvironment(mock.NewStashStore(), nil, nil)

		task, err := env.NewTask(context.Background(), spider, s.fetcher(),
			crawl.WithFilter(filter.And(filter.Host("a.test"), filter.NewSetHistory(nil))))
		require.NoError(t, err)

		assert.Equal(t, crawl.StateCreated, task.State())
		assert.Equal(t, 1, task.Queue.Len())
		assert.NotEmpty(t, task.ID)
	})

	t.Run("existing stash is recovered", func(t *testing.T) {
		t.Parallel()

		store := mock.NewStashStore()
		s := &site{}
		old := newTask(linkSpider(s), s.fetcher(), store)
		_, err := old.Enqueue(recrawl.NewRequest("https://a.test/left"))
		require.NoError(t, err)
		require.NoError(t, old.Stash(context.Background()))

		spider := linkSpider(s)
		spider.StartRequestsFn = func() []*recrawl.Request {
			t.Error("start requests must not be used when recovering")
			return nil
		}
		env := crawl.NewEnvironment(store, nil, nil)
		task, err := env.NewTask(context.Background(), spider, s.fetcher(),
			crawl.WithFilter(filter.NewSetHistory(nil)))
		require.NoError(t, err)

		assert.Equal(t, crawl.StateRecovered, task.State())
		head, err := task.Queue.Head()
		require.NoError(t, err)
		assert.Equal(t, "https://a.test/left", head.URL)
	})

	t.Run("corrupt stash is reported", func(t *testing.T) {
		t.Parallel()

		store := mock.NewStashStore()
		require.NoError(t, store.Save("links", map[string][]byte{crawl.AttrQueue: []byte("junk")}))
		s := &site{}
		env := crawl.NewEnvironment(store, nil, nil)

		_, err := env.NewTask(context.Background(), linkSpider(s), s.fetcher())
		assert.Equal(t, recrawl.ECORRUPT, recrawl.ErrorCode(err))
	})
}

func TestEnvironment_Run(t *testing.T) {
	t.Parallel()

	t.Run("signal stashes every running task", func(t *testing.T) {
		t.Parallel()

		store := mock.NewStashStore()
		sigs := &fakeSignals{}
		env := newEnvironment(store, recrawl.DecisionStash, sigs)

		var a, b *observed
		started := make(chan struct{}, 2)
		gate := func(o **observed) func(context.Context, *recrawl.Request) error {
			return func(context.Context, *recrawl.Request) error {
				started <- struct{}{}
				<-(*o).interrupted
				return nil
			}
		}

		sa := &site{before: gate(&a)}
		spiderA := linkSpider(sa)
		spiderA.NameValue = "a"
		ta := newTask(spiderA, sa.fetcher(), store)
		_, err := ta.Enqueue(recrawl.NewRequest("https://a.test/1"), recrawl.NewRequest("https://a.test/2"))
		require.NoError(t, err)
		a = observe(ta)

		sb := &site{before: gate(&b)}
		spiderB := linkSpider(sb)
		spiderB.NameValue = "b"
		tb := newTask(spiderB, sb.fetcher(), store)
		_, err = tb.Enqueue(recrawl.NewRequest("https://b.test/1"), recrawl.NewRequest("https://b.test/2"))
		require.NoError(t, err)
		b = observe(tb)

		go func() {
			<-started
			<-started
			sigs.send(syscall.SIGINT)
		}()

		require.NoError(t, env.Run(context.Background(), a, b))

		assert.Equal(t, crawl.StateStashed, a.State())
		assert.Equal(t, crawl.StateStashed, b.State())
		assert.Equal(t, 1, a.Processed())
		assert.Equal(t, 1, b.Processed())
		assert.True(t, sigs.stopped)
		for _, name := range []string{"a", "b"} {
			exists, err := store.Exists(name)
			require.NoError(t, err)
			assert.True(t, exists, name)
		}
	})

	t.Run("first failure cancels and stashes the others", func(t *testing.T) {
		t.Parallel()

		store := mock.NewStashStore()
		env := newEnvironment(store, recrawl.DecisionStash, &fakeSignals{})
		boom := errors.New("boom")

		sf := &site{}
		failing := &mock.Spider{
			NameValue: "failing",
			ParseFn: func(context.Context, *recrawl.Response) (recrawl.Result, error) {
				return recrawl.Result{}, boom
			},
		}
		tf := newTask(failing, sf.fetcher(), store)
		_, err := tf.Enqueue(recrawl.NewRequest("https://f.test/"))
		require.NoError(t, err)

		sw := &site{before: func(ctx context.Context, _ *recrawl.Request) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		waiting := linkSpider(sw)
		waiting.NameValue = "waiting"
		tw := newTask(waiting, sw.fetcher(), store)
		_, err = tw.Enqueue(recrawl.NewRequest("https://w.test/"))
		require.NoError(t, err)

		err = env.Run(context.Background(), tf, tw)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, crawl.StateFailed, tf.State())
		assert.Equal(t, crawl.StateStashed, tw.State())
	})

	t.Run("closes fetchers on exit", func(t *testing.T) {
		t.Parallel()

		closed := 0
		s := &site{}
		fetcher := s.fetcher()
		fetcher.CloseFn = func() error {
			closed++
			return nil
		}
		task := newTask(linkSpider(s), fetcher, mock.NewStashStore())
		env := newEnvironment(mock.NewStashStore(), recrawl.DecisionStash, &fakeSignals{})

		require.NoError(t, env.Run(context.Background(), task))
		assert.Equal(t, crawl.StateCompleted, task.State())
		assert.Equal(t, 1, closed)
	})

	t.Run("close errors are returned", func(t *testing.T) {
		t.Parallel()

		s := &site{}
		fetcher := s.fetcher()
		fetcher.CloseFn = func() error { return errors.New("close failed") }
		task := newTask(linkSpider(s), fetcher, mock.NewStashStore())
		env := newEnvironment(mock.NewStashStore(), recrawl.DecisionStash, &fakeSignals{})

		assert.Error(t, env.Run(context.Background(), task))
	})
}
