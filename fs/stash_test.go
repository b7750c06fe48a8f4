package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Atomic Stash Storage
// Stashes are written to a temp directory and swapped into place

func TestStashStore_SaveThenLoad(t *testing.T) {
	t.Parallel()

	// Given a store
	store := fs.NewStashStore(t.TempDir())
	attrs := map[string][]byte{
		"queue":  []byte("queued requests"),
		"filter": []byte("seen fingerprints"),
		"empty":  {},
	}

	// When I save and load a stash
	require.NoError(t, store.Save("docs", attrs))
	got, err := store.Load("docs")

	// Then every attribute comes back
	require.NoError(t, err)
	assert.Equal(t, []byte("queued requests"), got["queue"])
	assert.Equal(t, []byte("seen fingerprints"), got["filter"])
	assert.Empty(t, got["empty"])
	assert.Len(t, got, 3)
}

func TestStashStore_Layout(t *testing.T) {
	t.Parallel()

	// Given a saved stash
	base := t.TempDir()
	store := fs.NewStashStore(base)
	require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("q")}))

	// Then the spider directory holds the manifest and one file per attribute
	assert.FileExists(t, filepath.Join(base, "docs", "MANIFEST"))
	assert.FileExists(t, filepath.Join(base, "docs", "queue.stash"))

	// And no temp or old directory is left behind
	assert.NoDirExists(t, filepath.Join(base, "docs.tmp"))
	assert.NoDirExists(t, filepath.Join(base, "docs.old"))
}

func TestStashStore_SaveReplacesPreviousStash(t *testing.T) {
	t.Parallel()

	// Given a stash with two attributes
	store := fs.NewStashStore(t.TempDir())
	require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("v1"), "extra": []byte("x")}))

	// When I save a new stash with one attribute
	require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("v2")}))

	// Then only the new stash is visible
	got, err := store.Load("docs")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"queue": []byte("v2")}, got)
}

func TestStashStore_Exists(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store := fs.NewStashStore(base)

	exists, err := store.Exists("docs")
	require.NoError(t, err)
	assert.False(t, exists)

	// An interrupted save leaves only a temp directory
	require.NoError(t, os.MkdirAll(filepath.Join(base, "docs.tmp"), 0755))
	exists, err = store.Exists("docs")
	require.NoError(t, err)
	assert.False(t, exists, "incomplete stash is not visible")

	require.NoError(t, store.Save("docs", map[string][]byte{"queue": nil}))
	exists, err = store.Exists("docs")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStashStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store := fs.NewStashStore(t.TempDir())
	_, err := store.Load("docs")
	assert.Equal(t, recrawl.ENOTFOUND, recrawl.ErrorCode(err))
}

func TestStashStore_DetectsCorruption(t *testing.T) {
	t.Parallel()

	t.Run("modified attribute", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		store := fs.NewStashStore(base)
		require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("abcdef")}))
		require.NoError(t, os.WriteFile(filepath.Join(base, "docs", "queue.stash"), []byte("abcdeg"), 0644))

		_, err := store.Load("docs")
		assert.Equal(t, recrawl.ECORRUPT, recrawl.ErrorCode(err))
	})

	t.Run("missing attribute", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		store := fs.NewStashStore(base)
		require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("abc")}))
		require.NoError(t, os.Remove(filepath.Join(base, "docs", "queue.stash")))

		_, err := store.Load("docs")
		assert.Equal(t, recrawl.ECORRUPT, recrawl.ErrorCode(err))
	})

	t.Run("malformed manifest", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		store := fs.NewStashStore(base)
		require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("abc")}))
		require.NoError(t, os.WriteFile(filepath.Join(base, "docs", "MANIFEST"), []byte("queue three\n"), 0644))

		_, err := store.Load("docs")
		assert.Equal(t, recrawl.ECORRUPT, recrawl.ErrorCode(err))
	})
}

func TestStashStore_FallsBackToOldStash(t *testing.T) {
	t.Parallel()

	// Given a crash between moving the old stash aside and committing the new one
	base := t.TempDir()
	store := fs.NewStashStore(base)
	require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("v1")}))
	require.NoError(t, os.Rename(filepath.Join(base, "docs"), filepath.Join(base, "docs.old")))

	// Then the previous stash is still loadable
	got, err := store.Load("docs")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got["queue"])

	// And the next save cleans it up
	require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("v2")}))
	assert.NoDirExists(t, filepath.Join(base, "docs.old"))
}

func TestStashStore_Remove(t *testing.T) {
	t.Parallel()

	store := fs.NewStashStore(t.TempDir())
	require.NoError(t, store.Save("docs", map[string][]byte{"queue": []byte("q")}))

	require.NoError(t, store.Remove("docs"))
	require.NoError(t, store.Remove("docs"), "removing twice is fine")

	exists, err := store.Exists("docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStashStore_RejectsUnsafeNames(t *testing.T) {
	t.Parallel()

	store := fs.NewStashStore(t.TempDir())
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		err := store.Save(name, nil)
		assert.Equal(t, recrawl.EINVALID, recrawl.ErrorCode(err), name)
	}
	err := store.Save("docs", map[string][]byte{"../escape": nil})
	assert.Equal(t, recrawl.EINVALID, recrawl.ErrorCode(err))
}

func TestStashStore_StatAndList(t *testing.T) {
	t.Parallel()

	store := fs.NewStashStore(t.TempDir())
	require.NoError(t, store.Save("b", map[string][]byte{"queue": []byte("1234"), "filter": []byte("12")}))
	require.NoError(t, store.Save("a", map[string][]byte{"queue": nil}))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	info, err := store.Stat("b")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"queue": 4, "filter": 2}, info.Attrs)
	assert.Equal(t, int64(6), info.Size())
	assert.False(t, info.Modified.IsZero())

	_, err = store.Stat("missing")
	assert.Equal(t, recrawl.ENOTFOUND, recrawl.ErrorCode(err))
}

func TestStashStore_ListWithoutDirectory(t *testing.T) {
	t.Parallel()

	store := fs.NewStashStore(filepath.Join(t.TempDir(), "nope"))
	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
