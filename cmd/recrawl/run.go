package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/crawl"
	"github.com/fwojciec/recrawl/fs"
	recslog "github.com/fwojciec/recrawl/slog"
	"github.com/fwojciec/recrawl/sqlite"
	"github.com/fwojciec/recrawl/yaml"
)

// Run executes the run command.
func (c *RunCmd) Run(deps *Dependencies) error {
	ctx := deps.Ctx
	logger := deps.logger()

	cfg, err := yaml.Load(c.Config)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", recrawl.ErrorMessage(err))
		return err
	}
	dir := stashDir(deps, cfg)

	var decider recrawl.Decider
	if !c.Yes {
		decider = recslog.NewLoggingDecider(newPromptDecider(deps.Stdin, deps.Stderr), logger)
	}
	env := crawl.NewEnvironment(fs.NewStashStore(dir), decider, logger)
	env.Metrics = deps.Metrics

	var sinks multiSink
	var runs recrawl.RunService
	if cfg.Database != "" {
		db := sqlite.NewDB(cfg.Database)
		if err := db.Open(); err != nil {
			return fmt.Errorf("failed to open database at %q: %w", cfg.Database, err)
		}
		defer db.Close()
		sinks = append(sinks, sqlite.NewItemService(db))
		runs = sqlite.NewRunService(db)
	}
	if cfg.Items != "" {
		f, err := fs.OpenItemFile(cfg.Items)
		if err != nil {
			return err
		}
		defer f.Close()
		sinks = append(sinks, f)
	}

	b := &builder{env: env, stashDir: dir, logger: logger}
	if len(sinks) > 0 {
		b.items = recslog.NewLoggingItemSink(sinks, logger)
	}
	defer b.Close()

	var tasks []*crawl.Task
	var runnables []crawl.Runnable
	for _, sc := range cfg.Spiders {
		t, err := b.build(ctx, sc)
		if err != nil {
			for _, t := range tasks {
				_ = t.Close()
			}
			fmt.Fprintf(deps.Stderr, "error: %v\n", err)
			return err
		}
		if t.State() == crawl.StateRecovered {
			fmt.Fprintf(deps.Stdout, "Resuming %s (%s queued)\n", sc.Name, humanize.Comma(int64(t.Queue.Len())))
		}
		tasks = append(tasks, t)
		if sc.Checkpoint > 0 {
			runnables = append(runnables, crawl.NewCountDownTask(t, sc.Checkpoint))
		} else {
			runnables = append(runnables, t)
		}
	}

	ids := make([]string, len(tasks))
	if runs != nil {
		for i, t := range tasks {
			run := &recrawl.Run{Spider: t.Spider.Name(), TaskID: t.ID}
			if err := runs.StartRun(ctx, run); err != nil {
				for _, t := range tasks {
					_ = t.Close()
				}
				return fmt.Errorf("record run: %w", err)
			}
			ids[i] = run.ID
		}
	}

	runErr := env.Run(ctx, runnables...)

	if runs != nil {
		for i, t := range tasks {
			var taskErr error
			if t.State() == crawl.StateFailed {
				taskErr = runErr
			}
			// The run context may be canceled by now.
			if err := runs.FinishRun(context.WithoutCancel(ctx), ids[i], t.State().String(), t.Processed(), taskErr); err != nil {
				logger.Error("record run", "spider", t.Spider.Name(), "err", err)
			}
		}
	}

	printSummary(deps.Stdout, tasks)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(deps.Stderr, "error: %v\n", runErr)
	}
	return runErr
}

func printSummary(w io.Writer, tasks []*crawl.Task) {
	for _, t := range tasks {
		fmt.Fprintf(w, "%s  %s  %s requests\n", t.Spider.Name(), t.State(), humanize.Comma(int64(t.Processed())))
	}
}

func stashDir(deps *Dependencies, cfg *yaml.Config) string {
	if deps.StashDir != "" {
		return deps.StashDir
	}
	return cfg.StashDir
}

// multiSink writes every item to each sink in turn.
type multiSink []recrawl.ItemSink

func (m multiSink) WriteItem(ctx context.Context, item *recrawl.Item) error {
	for _, s := range m {
		if err := s.WriteItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
