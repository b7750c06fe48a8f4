package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/fs"
	"github.com/fwojciec/recrawl/yaml"
)

// Run executes the discard command.
func (c *DiscardCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return recrawl.Errorf(recrawl.EINVALID, "use --force to confirm deletion")
	}

	cfg, err := yaml.Load(c.Config)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", recrawl.ErrorMessage(err))
		return err
	}
	dir := stashDir(deps, cfg)
	store := fs.NewStashStore(dir)

	for _, name := range c.Spiders {
		if !slices.ContainsFunc(cfg.Spiders, func(s yaml.Spider) bool { return s.Name == name }) {
			fmt.Fprintf(deps.Stderr, "error: spider %q not in %s\n", name, c.Config)
			return recrawl.Errorf(recrawl.ENOTFOUND, "spider %q not found", name)
		}
	}

	for _, sc := range cfg.Spiders {
		if len(c.Spiders) > 0 && !slices.Contains(c.Spiders, sc.Name) {
			continue
		}
		exists, err := store.Exists(sc.Name)
		if err != nil {
			return err
		}
		if exists {
			if err := store.Remove(sc.Name); err != nil {
				return err
			}
		}
		if err := os.RemoveAll(dataDir(dir, sc.Name)); err != nil {
			return fmt.Errorf("remove %s data: %w", sc.Name, err)
		}
		if exists {
			fmt.Fprintf(deps.Stdout, "Discarded stash for %q\n", sc.Name)
		} else {
			fmt.Fprintf(deps.Stdout, "No stash for %q\n", sc.Name)
		}
	}
	return nil
}
