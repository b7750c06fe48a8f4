package fs_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemFile_AppendsJSONLines(t *testing.T) {
	t.Parallel()

	// Given an item file in a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "out", "items.jsonl")
	w, err := fs.OpenItemFile(path)
	require.NoError(t, err)

	// When I write two items and reopen to write a third
	require.NoError(t, w.WriteItem(context.Background(), &recrawl.Item{Spider: "s", URL: "https://a.test/1", Fields: map[string]any{"title": "One"}}))
	require.NoError(t, w.WriteItem(context.Background(), &recrawl.Item{Spider: "s", URL: "https://a.test/2"}))
	require.NoError(t, w.Close())

	w, err = fs.OpenItemFile(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteItem(context.Background(), &recrawl.Item{Spider: "s", URL: "https://a.test/3"}))
	require.NoError(t, w.Close())

	// Then the file has one JSON object per line in write order
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var item recrawl.Item
		require.NoError(t, json.Unmarshal(sc.Bytes(), &item))
		urls = append(urls, item.URL)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}, urls)
}
