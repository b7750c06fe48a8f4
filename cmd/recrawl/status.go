package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/fs"
	"github.com/fwojciec/recrawl/sqlite"
	"github.com/fwojciec/recrawl/yaml"
)

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	cfg, err := yaml.Load(c.Config)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", recrawl.ErrorMessage(err))
		return err
	}
	store := fs.NewStashStore(stashDir(deps, cfg))

	var runs recrawl.RunService
	if cfg.Database != "" {
		db := sqlite.NewDB(cfg.Database)
		if err := db.Open(); err != nil {
			return fmt.Errorf("failed to open database at %q: %w", cfg.Database, err)
		}
		defer db.Close()
		runs = sqlite.NewRunService(db)
	}

	for _, sc := range cfg.Spiders {
		info, err := store.Stat(sc.Name)
		switch {
		case recrawl.ErrorCode(err) == recrawl.ENOTFOUND:
			fmt.Fprintf(deps.Stdout, "%s  no stash\n", sc.Name)
		case err != nil:
			fmt.Fprintf(deps.Stdout, "%s  unreadable stash: %v\n", sc.Name, err)
		default:
			attrs := slices.Sorted(maps.Keys(info.Attrs))
			fmt.Fprintf(deps.Stdout, "%s  stashed %s  %s  [%s]\n", sc.Name,
				humanize.Time(info.Modified), humanize.Bytes(uint64(info.Size())), strings.Join(attrs, " "))
		}

		if runs == nil {
			continue
		}
		list, err := runs.FindRuns(deps.Ctx, sc.Name, c.Runs)
		if err != nil {
			return err
		}
		for _, r := range list {
			fmt.Fprintf(deps.Stdout, "  %s  %-9s  %s requests  started %s", shortID(r.ID), r.State,
				humanize.Comma(int64(r.Processed)), humanize.Time(r.StartedAt))
			if r.Error != "" {
				fmt.Fprintf(deps.Stdout, "  error: %s", r.Error)
			}
			fmt.Fprintln(deps.Stdout)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
