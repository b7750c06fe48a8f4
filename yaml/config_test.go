package yaml_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
stash_dir: /var/lib/recrawl
database: crawl.db
items: items.jsonl
spiders:
  - name: docs
    start_urls: [https://example.com/docs/]
    allow: ['^https://example\.com/docs/']
    deny: ['\.pdf$']
    same_site: true
    max_generation: 2
    sitemaps: true
    checkpoint: 50
    fetcher: browser
    user_agent: test-agent
    timeout: 5s
    retries: 3
    queue:
      kind: disk
      max_size: 200
      priorities: [0, 1, 2]
    history:
      kind: bloom
      capacity: 5000
      fp_rate: 0.001
    rate_limit:
      rps: 2
      burst: 4
    selectors:
      - selector: nav a[href]
        priority: 2
    fields:
      title: h1
      canonical: link[rel=canonical]@href
    content:
      extractor: readability
      markdown: true
`

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("decodes every field", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.Parse(strings.NewReader(fullConfig))
		require.NoError(t, err)

		assert.Equal(t, "/var/lib/recrawl", cfg.StashDir)
		assert.Equal(t, "crawl.db", cfg.Database)
		assert.Equal(t, "items.jsonl", cfg.Items)
		require.Len(t, cfg.Spiders, 1)
		s := cfg.Spiders[0]
		assert.Equal(t, "docs", s.Name)
		assert.Equal(t, []string{"https://example.com/docs/"}, s.StartURLs)
		assert.Equal(t, []string{`\.pdf$`}, s.Deny)
		assert.True(t, s.SameSite)
		assert.True(t, s.Sitemaps)
		assert.Equal(t, 2, s.MaxGeneration)
		assert.Equal(t, 50, s.Checkpoint)
		assert.Equal(t, 5*time.Second, s.Timeout)
		assert.Equal(t, 3, s.Retries)
		assert.Equal(t, yaml.Queue{Kind: yaml.QueueDisk, MaxSize: 200, Priorities: []int{0, 1, 2}}, s.Queue)
		assert.Equal(t, yaml.History{Kind: yaml.HistoryBloom, Capacity: 5000, FPRate: 0.001}, s.History)
		assert.Equal(t, yaml.RateLimit{RPS: 2, Burst: 4}, s.RateLimit)
		assert.Equal(t, []yaml.Selector{{Selector: "nav a[href]", Priority: 2}}, s.Selectors)
		assert.Equal(t, "link[rel=canonical]@href", s.Fields["canonical"])
		assert.Equal(t, yaml.FetcherBrowser, s.Fetcher)
		assert.Equal(t, yaml.Content{Extractor: yaml.ExtractorReadability, Markdown: true}, s.Content)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.Parse(strings.NewReader(`
spiders:
  - name: docs
    start_urls: [https://example.com/]
`))
		require.NoError(t, err)

		assert.Equal(t, yaml.DefaultStashDir, cfg.StashDir)
		s := cfg.Spiders[0]
		assert.Equal(t, yaml.FetcherHTTP, s.Fetcher)
		assert.Equal(t, yaml.QueueMemory, s.Queue.Kind)
		assert.Equal(t, yaml.DefaultQueueMaxSize, s.Queue.MaxSize)
		assert.Equal(t, yaml.HistorySet, s.History.Kind)
		assert.Equal(t, uint(yaml.DefaultBloomCapacity), s.History.Capacity)
		assert.InDelta(t, yaml.DefaultBloomFPRate, s.History.FPRate, 1e-12)
	})

	tests := map[string]string{
		"empty document": ``,
		"no spiders":     `stash_dir: x`,
		"unknown key": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    colour: blue`,
		"missing name": `
spiders:
  - start_urls: [https://example.com/]`,
		"relative start url": `
spiders:
  - name: docs
    start_urls: [/docs]`,
		"bad pattern": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    allow: ['(']`,
		"duplicate name": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
  - name: docs
    start_urls: [https://example.org/]`,
		"unknown queue": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    queue: {kind: redis}`,
		"leveldb with priorities": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    queue: {kind: leveldb, priorities: [0, 1]}`,
		"fp rate out of range": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    history: {kind: bloom, fp_rate: 1.5}`,
		"unknown fetcher": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    fetcher: curl`,
		"markdown without extractor": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    content: {markdown: true}`,
		"negative checkpoint": `
spiders:
  - name: docs
    start_urls: [https://example.com/]
    checkpoint: -1`,
	}
	for name, doc := range tests {
		t.Run("rejects "+name, func(t *testing.T) {
			t.Parallel()

			_, err := yaml.Parse(strings.NewReader(doc))
			assert.Equal(t, recrawl.EINVALID, recrawl.ErrorCode(err))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawl.yaml")
		require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

		cfg, err := yaml.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "docs", cfg.Spiders[0].Name)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Equal(t, recrawl.ENOTFOUND, recrawl.ErrorCode(err))
	})
}
