package slog

import (
	"context"
	"log/slog"

	"github.com/fwojciec/recrawl"
)

// Ensure LoggingDecider implements recrawl.Decider.
var _ recrawl.Decider = (*LoggingDecider)(nil)

// LoggingDecider wraps a Decider and logs every interrupt decision.
type LoggingDecider struct {
	next   recrawl.Decider
	logger *slog.Logger
}

// NewLoggingDecider creates a new LoggingDecider.
func NewLoggingDecider(next recrawl.Decider, logger *slog.Logger) *LoggingDecider {
	return &LoggingDecider{next: next, logger: logger}
}

func (d *LoggingDecider) Decide(ctx context.Context, spider string) (decision recrawl.Decision, err error) {
	defer func() {
		d.logger.Info("interrupt decision", "spider", spider, "decision", decision.String(), "err", err)
	}()
	return d.next.Decide(ctx, spider)
}
