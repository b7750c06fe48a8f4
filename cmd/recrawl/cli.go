package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/recrawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Metrics  recrawl.Metrics
	StashDir string // overrides the config when set
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	StashDir    string `name:"stash-dir" type:"path" help:"Override the stash directory from the config"`
	Verbose     bool   `short:"v" help:"Log every fetch and item"`
	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address while crawling"`

	Run     RunCmd     `cmd:"" help:"Run or resume the crawls in a config"`
	Status  StatusCmd  `cmd:"" help:"Show stashes and recent runs"`
	Discard DiscardCmd `cmd:"" help:"Delete stashed crawl state"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Config string `arg:"" help:"Crawl config file"`
	Yes    bool   `short:"y" help:"Stash on interrupt without prompting"`
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct {
	Config string `arg:"" help:"Crawl config file"`
	Runs   int    `short:"n" default:"5" help:"Number of recent runs to show per spider"`
}

// DiscardCmd is the "discard" subcommand.
type DiscardCmd struct {
	Config  string   `arg:"" help:"Crawl config file"`
	Spiders []string `short:"s" name:"spider" help:"Only discard these spiders (repeatable)"`
	Force   bool     `help:"Confirm deletion"`
}
