package crawl

import (
	"context"

	"github.com/fwojciec/recrawl"
)

// CountDownTask is a Task that checkpoints itself: every Every processed
// requests it stashes the frontier and keeps running. A crash then loses at
// most Every requests worth of progress.
type CountDownTask struct {
	*Task
	Every int
}

// NewCountDownTask wraps t so it stashes every n processed requests.
func NewCountDownTask(t *Task, n int) *CountDownTask {
	return &CountDownTask{Task: t, Every: n}
}

// Run runs the wrapped task with checkpointing enabled.
func (c *CountDownTask) Run(ctx context.Context) error {
	if c.Every <= 0 {
		return recrawl.Errorf(recrawl.EINVALID, "checkpoint interval must be positive, got %d", c.Every)
	}
	c.Task.checkpoint = c.Every
	return c.Task.Run(ctx)
}
