package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fwojciec/recrawl"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ recrawl.RunService = (*RunService)(nil)

// RunService implements recrawl.RunService using SQLite.
type RunService struct {
	db *DB
}

// NewRunService creates a new RunService.
func NewRunService(db *DB) *RunService {
	return &RunService{db: db}
}

// StartRun stores a new run in the running state.
func (s *RunService) StartRun(ctx context.Context, run *recrawl.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	run.ID = uuid.New().String()
	run.StartedAt = time.Now().UTC()
	if run.State == "" {
		run.State = "running"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, spider, task_id, state, processed, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Spider, run.TaskID, run.State, run.Processed, run.Error, formatTime(run.StartedAt))
	return err
}

// FinishRun records the final state of a run.
func (s *RunService) FinishRun(ctx context.Context, id, state string, processed int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, processed = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, state, processed, msg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return recrawl.Errorf(recrawl.ENOTFOUND, "run not found")
	}
	return nil
}

// FindRuns returns the latest runs of spider, newest first.
func (s *RunService) FindRuns(ctx context.Context, spider string, limit int) ([]*recrawl.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spider, task_id, state, processed, error, started_at, finished_at
		FROM runs
		WHERE spider = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, spider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*recrawl.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (*recrawl.Run, error) {
	var run recrawl.Run
	var startedAt, finishedAt string
	if err := rows.Scan(&run.ID, &run.Spider, &run.TaskID, &run.State, &run.Processed,
		&run.Error, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	var err error
	if run.StartedAt, err = parseRFC3339(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseRFC3339(finishedAt, "finished_at"); err != nil {
		return nil, err
	}
	return &run, nil
}
