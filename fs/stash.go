// Package fs stores task stashes and scraped items on the local file system.
package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/recrawl"
)

// Ensure StashStore implements recrawl.StashStore at compile time.
var _ recrawl.StashStore = (*StashStore)(nil)

const (
	manifestName = "MANIFEST"
	attrExt      = ".stash"
)

// StashStore keeps one directory per spider below its base directory:
//
//	<dir>/<spider>/MANIFEST
//	<dir>/<spider>/<attr>.stash
//
// A stash is written to <spider>.tmp and swapped into place by renames, so
// readers only ever see a complete stash. The MANIFEST lists every
// attribute with its size and xxhash-64 checksum.
type StashStore struct {
	dir string
}

// NewStashStore creates a StashStore rooted at dir.
func NewStashStore(dir string) *StashStore {
	return &StashStore{dir: dir}
}

func (s *StashStore) finalDir(spider string) string {
	return filepath.Join(s.dir, spider)
}

func (s *StashStore) tempDir(spider string) string {
	return filepath.Join(s.dir, spider+".tmp")
}

func (s *StashStore) oldDir(spider string) string {
	return filepath.Join(s.dir, spider+".old")
}

// committed returns the directory holding the spider's stash. A crash
// between the two commit renames leaves only the previous stash in .old.
func (s *StashStore) committed(spider string) (string, bool) {
	for _, dir := range []string{s.finalDir(spider), s.oldDir(spider)} {
		if _, err := os.Stat(filepath.Join(dir, manifestName)); err == nil {
			return dir, true
		}
	}
	return "", false
}

func validName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return recrawl.Errorf(recrawl.EINVALID, "invalid %s name %q", kind, name)
	}
	return nil
}

func (s *StashStore) Exists(spider string) (bool, error) {
	if err := validName("spider", spider); err != nil {
		return false, err
	}
	_, ok := s.committed(spider)
	return ok, nil
}

func (s *StashStore) Save(spider string, attrs map[string][]byte) error {
	if err := validName("spider", spider); err != nil {
		return err
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if err := validName("attribute", name); err != nil {
			return err
		}
		names = append(names, name)
	}
	slices.Sort(names)

	tmp := s.tempDir(spider)
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear temp stash: %w", err)
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return fmt.Errorf("create temp stash: %w", err)
	}

	var manifest strings.Builder
	for _, name := range names {
		data := attrs[name]
		if err := os.WriteFile(filepath.Join(tmp, name+attrExt), data, 0644); err != nil {
			os.RemoveAll(tmp)
			return fmt.Errorf("write attribute %q: %w", name, err)
		}
		fmt.Fprintf(&manifest, "%s %d %016x\n", name, len(data), xxhash.Sum64(data))
	}
	// The manifest is written last; a directory without one is incomplete.
	if err := os.WriteFile(filepath.Join(tmp, manifestName), []byte(manifest.String()), 0644); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}

	return s.commit(spider)
}

// commit moves the temp stash into place, keeping the previous stash in
// .old until the new one is visible.
func (s *StashStore) commit(spider string) error {
	final, old := s.finalDir(spider), s.oldDir(spider)
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear old stash: %w", err)
	}
	if err := os.Rename(final, old); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move old stash: %w", err)
	}
	if err := os.Rename(s.tempDir(spider), final); err != nil {
		return fmt.Errorf("commit stash: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("remove old stash: %w", err)
	}
	return nil
}

type manifestEntry struct {
	name string
	size int64
	sum  uint64
}

func readManifest(dir string) ([]manifestEntry, error) {
	f, err := os.Open(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var entries []manifestEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "malformed manifest line %q", sc.Text())
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "malformed size in manifest line %q", sc.Text())
		}
		sum, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "malformed checksum in manifest line %q", sc.Text())
		}
		entries = append(entries, manifestEntry{name: fields[0], size: size, sum: sum})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return entries, nil
}

func (s *StashStore) Load(spider string) (map[string][]byte, error) {
	if err := validName("spider", spider); err != nil {
		return nil, err
	}
	dir, ok := s.committed(spider)
	if !ok {
		return nil, recrawl.Errorf(recrawl.ENOTFOUND, "no stash for spider %q", spider)
	}
	entries, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.name+attrExt))
		if errors.Is(err, os.ErrNotExist) {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "stash attribute %q missing", e.name)
		} else if err != nil {
			return nil, fmt.Errorf("read attribute %q: %w", e.name, err)
		}
		if int64(len(data)) != e.size || xxhash.Sum64(data) != e.sum {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "stash attribute %q fails checksum", e.name)
		}
		attrs[e.name] = data
	}
	return attrs, nil
}

func (s *StashStore) Remove(spider string) error {
	if err := validName("spider", spider); err != nil {
		return err
	}
	for _, dir := range []string{s.finalDir(spider), s.tempDir(spider), s.oldDir(spider)} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove stash: %w", err)
		}
	}
	return nil
}

// StashInfo describes a committed stash.
type StashInfo struct {
	Spider   string
	Modified time.Time
	Attrs    map[string]int64 // attribute sizes in bytes
}

// Size returns the total size of all attributes.
func (i *StashInfo) Size() int64 {
	var n int64
	for _, size := range i.Attrs {
		n += size
	}
	return n
}

// Stat describes the spider's stash without reading the attributes.
// Returns ENOTFOUND if there is none.
func (s *StashStore) Stat(spider string) (*StashInfo, error) {
	if err := validName("spider", spider); err != nil {
		return nil, err
	}
	dir, ok := s.committed(spider)
	if !ok {
		return nil, recrawl.Errorf(recrawl.ENOTFOUND, "no stash for spider %q", spider)
	}
	entries, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	info := &StashInfo{
		Spider:   spider,
		Modified: fi.ModTime(),
		Attrs:    make(map[string]int64, len(entries)),
	}
	for _, e := range entries {
		info.Attrs[e.name] = e.size
	}
	return info, nil
}

// List returns the names of spiders with a committed stash, sorted.
func (s *StashStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read stash directory: %w", err)
	}
	var spiders []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasSuffix(name, ".tmp") {
			continue
		}
		name = strings.TrimSuffix(name, ".old")
		if _, ok := s.committed(name); ok && !slices.Contains(spiders, name) {
			spiders = append(spiders, name)
		}
	}
	slices.Sort(spiders)
	return spiders, nil
}
