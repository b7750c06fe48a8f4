package recrawl

import (
	"context"
	"time"
)

// Run records one execution of a spider's task.
type Run struct {
	ID         string
	Spider     string
	TaskID     string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Processed  int
	Error      string
}

// Validate returns an error if the run contains invalid fields.
func (r *Run) Validate() error {
	if r.Spider == "" {
		return Errorf(EINVALID, "run spider required")
	}
	return nil
}

// RunService records the history of runs.
type RunService interface {
	// StartRun stores a new run. ID and StartedAt are set.
	StartRun(ctx context.Context, run *Run) error

	// FinishRun records the outcome of a run.
	// Returns ENOTFOUND if the run does not exist.
	FinishRun(ctx context.Context, id, state string, processed int, runErr error) error

	// FindRuns returns the most recent runs of a spider, newest first.
	FindRuns(ctx context.Context, spider string, limit int) ([]*Run, error)
}
