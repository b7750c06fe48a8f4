package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/bloom"
	"github.com/fwojciec/recrawl/crawl"
	"github.com/fwojciec/recrawl/etree"
	"github.com/fwojciec/recrawl/filter"
	"github.com/fwojciec/recrawl/goque"
	"github.com/fwojciec/recrawl/gokv"
	rechttp "github.com/fwojciec/recrawl/http"
	"github.com/fwojciec/recrawl/queue"
	"github.com/fwojciec/recrawl/rod"
	recslog "github.com/fwojciec/recrawl/slog"
	"github.com/fwojciec/recrawl/yaml"
)

// dataDir holds the durable queue and history of a spider. It lives in the
// stash directory under a name no spider stash can take.
func dataDir(stashDir, spider string) string {
	return filepath.Join(stashDir, ".data", spider)
}

// builder turns spider configs into tasks of one environment.
type builder struct {
	env      *crawl.Environment
	stashDir string
	items    recrawl.ItemSink
	logger   *slog.Logger

	// closers are resources the tasks do not close themselves.
	closers []io.Closer
}

// build creates, or recovers, the task for cfg.
func (b *builder) build(ctx context.Context, cfg yaml.Spider) (*crawl.Task, error) {
	exists, err := b.env.Store.Exists(cfg.Name)
	if err != nil {
		return nil, err
	}
	logger := b.logger.With("spider", cfg.Name)

	q, err := b.queue(cfg, !exists, logger)
	if err != nil {
		return nil, fmt.Errorf("spider %s: queue: %w", cfg.Name, err)
	}
	history, err := b.history(cfg)
	if err != nil {
		closeQueue(q)
		return nil, fmt.Errorf("spider %s: history: %w", cfg.Name, err)
	}
	scope, err := scopeFilter(cfg)
	if err != nil {
		closeQueue(q)
		return nil, fmt.Errorf("spider %s: %w", cfg.Name, err)
	}

	opts := []crawl.TaskOption{
		crawl.WithQueue(q),
		crawl.WithFilter(filter.And(scope, history)),
		crawl.WithLogger(logger),
	}
	if b.items != nil {
		opts = append(opts, crawl.WithItems(b.items))
	}
	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, crawl.WithLimiter(crawl.NewDomainLimiterBurst(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	f, err := fetcher(cfg, logger)
	if err != nil {
		closeQueue(q)
		return nil, fmt.Errorf("spider %s: fetcher: %w", cfg.Name, err)
	}
	t, err := b.env.NewTask(ctx, newConfigSpider(cfg, logger), f, opts...)
	if err != nil {
		closeQueue(q)
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

// queue builds the configured queue. A fresh crawl clears segments left
// behind by a discarded one.
func (b *builder) queue(cfg yaml.Spider, fresh bool, logger *slog.Logger) (recrawl.RequestQueue, error) {
	dir := filepath.Join(dataDir(b.stashDir, cfg.Name), "queue")
	diskOpts := []queue.DiskOption{queue.WithLogger(logger)}
	if fresh {
		diskOpts = append(diskOpts, queue.WithClear())
	}

	switch cfg.Queue.Kind {
	case yaml.QueueLevelDB:
		q, err := goque.Open(dir)
		if err != nil {
			return nil, err
		}
		if fresh {
			if err := q.Clear(); err != nil {
				q.Close()
				return nil, err
			}
		}
		return q, nil
	case yaml.QueueDisk:
		if len(cfg.Queue.Priorities) == 0 {
			return queue.NewDisk(dir, cfg.Queue.MaxSize, diskOpts...)
		}
		return queue.NewPriority(queue.DiskFactory(dir, cfg.Queue.MaxSize, diskOpts...), priorities(cfg), queue.Strict())
	default:
		if len(cfg.Queue.Priorities) == 0 {
			return queue.NewSimple(), nil
		}
		return queue.NewPriority(queue.SimpleFactory, priorities(cfg), queue.Strict())
	}
}

// priorities registers the configured priorities plus every priority a
// request of cfg can carry.
func priorities(cfg yaml.Spider) []recrawl.Priority {
	ps := []recrawl.Priority{0}
	for _, p := range cfg.Queue.Priorities {
		ps = append(ps, recrawl.Priority(p))
	}
	for _, sel := range newConfigSpider(cfg, slog.Default()).selectors {
		ps = append(ps, sel.Priority)
	}
	slices.Sort(ps)
	return slices.Compact(ps)
}

func (b *builder) history(cfg yaml.Spider) (recrawl.Filter, error) {
	switch cfg.History.Kind {
	case yaml.HistoryBloom:
		return bloom.NewHistory(cfg.History.Capacity, cfg.History.FPRate, filter.FirstGeneration), nil
	case yaml.HistoryLevelDB:
		h, err := gokv.Open(filepath.Join(dataDir(b.stashDir, cfg.Name), "history"), filter.FirstGeneration)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, h)
		return h, nil
	default:
		return filter.NewSetHistory(filter.FirstGeneration), nil
	}
}

// scopeFilter admits HTTP requests within the configured generation limit
// that pass the allow, deny and same-site rules. Sitemap discovery requests
// skip the URL rules.
func scopeFilter(cfg yaml.Spider) (*filter.Expr, error) {
	var rules []recrawl.Filter
	if len(cfg.Allow) > 0 || len(cfg.Deny) > 0 {
		re, err := filter.Regexp(cfg.Allow, cfg.Deny)
		if err != nil {
			return nil, err
		}
		rules = append(rules, re)
	}
	if cfg.SameSite {
		var sites []recrawl.Filter
		for _, u := range cfg.StartURLs {
			site, err := filter.SameSite(u)
			if err != nil {
				return nil, err
			}
			sites = append(sites, site)
		}
		rules = append(rules, filter.Or(sites...))
	}
	discovery := recrawl.FilterFunc(func(req *recrawl.Request) bool {
		return req.Callback == etree.CallbackRobots || req.Callback == etree.CallbackSitemap
	})

	scope := filter.And(filter.Scheme("http", "https"), filter.MaxGeneration(cfg.MaxGeneration))
	if len(rules) > 0 {
		scope = scope.And(filter.Or(discovery, filter.And(rules...)))
	}
	return scope, nil
}

// fetcher builds the configured fetcher with retries and logging.
func fetcher(cfg yaml.Spider, logger *slog.Logger) (recrawl.Fetcher, error) {
	var f recrawl.Fetcher
	if cfg.Fetcher == yaml.FetcherBrowser {
		var opts []rod.Option
		if cfg.Timeout > 0 {
			opts = append(opts, rod.WithFetchTimeout(cfg.Timeout))
		}
		bf, err := rod.NewFetcher(opts...)
		if err != nil {
			return nil, err
		}
		f = bf
	} else {
		var opts []rechttp.Option
		if cfg.UserAgent != "" {
			opts = append(opts, rechttp.WithUserAgent(cfg.UserAgent))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, rechttp.WithTimeout(cfg.Timeout))
		}
		f = rechttp.NewFetcher(opts...)
	}
	if cfg.Retries > 0 {
		delays := make([]time.Duration, cfg.Retries)
		for i := range delays {
			delays[i] = time.Second << i
		}
		f = crawl.NewRetryFetcher(f, delays, logger)
	}
	return recslog.NewLoggingFetcher(f, logger), nil
}

func closeQueue(q recrawl.RequestQueue) {
	if c, ok := q.(io.Closer); ok {
		_ = c.Close()
	}
}

// Close closes resources the tasks do not own.
func (b *builder) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
