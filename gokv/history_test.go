package gokv_test

import (
	"path/filepath"
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/filter"
	"github.com/fwojciec/recrawl/gokv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openHistory(t *testing.T, dir string) *gokv.History {
	t.Helper()
	h, err := gokv.Open(dir, filter.FirstGeneration)
	require.NoError(t, err)
	return h
}

func TestHistory_Accept(t *testing.T) {
	t.Parallel()

	t.Run("accepts first and rejects repeats", func(t *testing.T) {
		t.Parallel()

		h := openHistory(t, t.TempDir())
		defer h.Close()
		req := recrawl.NewRequest("https://example.com/a")

		assert.True(t, h.Accept(req))
		assert.False(t, h.Accept(req))
		assert.False(t, h.Accept(recrawl.NewRequest("https://example.com/a#top")))
		assert.True(t, h.Accept(recrawl.NewRequest("https://example.com/b")))
		require.NoError(t, h.Err())
	})

	t.Run("retries bypass history", func(t *testing.T) {
		t.Parallel()

		h := openHistory(t, t.TempDir())
		defer h.Close()
		req := recrawl.NewRequest("https://example.com/a")

		require.True(t, h.Accept(req))
		assert.True(t, h.Accept(req.Retry()))
	})

	t.Run("Seen does not record", func(t *testing.T) {
		t.Parallel()

		h := openHistory(t, t.TempDir())
		defer h.Close()
		req := recrawl.NewRequest("https://example.com/a")

		seen, err := h.Seen(req)
		require.NoError(t, err)
		assert.False(t, seen)
		assert.True(t, h.Accept(req))

		seen, err = h.Seen(req)
		require.NoError(t, err)
		assert.True(t, seen)
	})
}

func TestHistory_survives_reopen(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "history")
	h := openHistory(t, dir)
	require.True(t, h.Accept(recrawl.NewRequest("https://example.com/a")))
	require.NoError(t, h.Close())

	h = openHistory(t, dir)
	defer h.Close()

	assert.False(t, h.Accept(recrawl.NewRequest("https://example.com/a")))
}
