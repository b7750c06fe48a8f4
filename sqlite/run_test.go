package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunService(t *testing.T) {
	t.Parallel()

	t.Run("start then finish", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewRunService(setupTestDB(t))
		ctx := context.Background()

		run := &recrawl.Run{Spider: "docs", TaskID: "t1"}
		require.NoError(t, svc.StartRun(ctx, run))
		require.NotEmpty(t, run.ID)
		require.False(t, run.StartedAt.IsZero())

		require.NoError(t, svc.FinishRun(ctx, run.ID, "stashed", 42, errors.New("interrupted")))

		runs, err := svc.FindRuns(ctx, "docs", 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		got := runs[0]
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "t1", got.TaskID)
		assert.Equal(t, "stashed", got.State)
		assert.Equal(t, 42, got.Processed)
		assert.Equal(t, "interrupted", got.Error)
		assert.False(t, got.FinishedAt.IsZero())
	})

	t.Run("running run has no finish time", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewRunService(setupTestDB(t))
		ctx := context.Background()
		require.NoError(t, svc.StartRun(ctx, &recrawl.Run{Spider: "docs"}))

		runs, err := svc.FindRuns(ctx, "docs", 5)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "running", runs[0].State)
		assert.True(t, runs[0].FinishedAt.IsZero())
	})

	t.Run("newest first with limit", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewRunService(setupTestDB(t))
		ctx := context.Background()
		var ids []string
		for range 3 {
			run := &recrawl.Run{Spider: "docs"}
			require.NoError(t, svc.StartRun(ctx, run))
			ids = append(ids, run.ID)
		}

		runs, err := svc.FindRuns(ctx, "docs", 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, ids[2], runs[0].ID)
		assert.Equal(t, ids[1], runs[1].ID)
	})

	t.Run("finish unknown run", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewRunService(setupTestDB(t))

		err := svc.FinishRun(context.Background(), "missing", "completed", 0, nil)
		assert.Equal(t, recrawl.ENOTFOUND, recrawl.ErrorCode(err))
	})

	t.Run("rejects run without spider", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewRunService(setupTestDB(t))

		err := svc.StartRun(context.Background(), &recrawl.Run{})
		assert.Equal(t, recrawl.EINVALID, recrawl.ErrorCode(err))
	})
}
