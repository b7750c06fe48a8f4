// Package yaml loads crawl configuration files.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/fwojciec/recrawl"
	"gopkg.in/yaml.v3"
)

// Queue kinds.
const (
	QueueMemory  = "memory"
	QueueDisk    = "disk"
	QueueLevelDB = "leveldb"
)

// History kinds.
const (
	HistorySet     = "set"
	HistoryBloom   = "bloom"
	HistoryLevelDB = "leveldb"
)

// Fetcher kinds.
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

// Content extractors.
const (
	ExtractorTrafilatura = "trafilatura"
	ExtractorReadability = "readability"
)

// Defaults applied by Load.
const (
	DefaultStashDir      = ".recrawl"
	DefaultQueueMaxSize  = 1000
	DefaultBloomCapacity = 100_000
	DefaultBloomFPRate   = 0.01
)

// Config is a crawl configuration file. Every spider it lists runs in the
// same environment and shares the stash directory and database.
type Config struct {
	StashDir string   `yaml:"stash_dir"`
	Database string   `yaml:"database"`
	Items    string   `yaml:"items"` // JSON lines file, optional
	Spiders  []Spider `yaml:"spiders"`
}

// Spider configures one crawl.
type Spider struct {
	Name          string            `yaml:"name"`
	StartURLs     []string          `yaml:"start_urls"`
	Allow         []string          `yaml:"allow"`
	Deny          []string          `yaml:"deny"`
	SameSite      bool              `yaml:"same_site"`
	MaxGeneration int               `yaml:"max_generation"`
	Sitemaps      bool              `yaml:"sitemaps"`
	Checkpoint    int               `yaml:"checkpoint"`
	Fetcher       string            `yaml:"fetcher"`
	UserAgent     string            `yaml:"user_agent"`
	Timeout       time.Duration     `yaml:"timeout"`
	Retries       int               `yaml:"retries"`
	Queue         Queue             `yaml:"queue"`
	History       History           `yaml:"history"`
	RateLimit     RateLimit         `yaml:"rate_limit"`
	Selectors     []Selector        `yaml:"selectors"`
	Fields        map[string]string `yaml:"fields"`
	Content       Content           `yaml:"content"`
}

// Content adds the page's main content to every item.
type Content struct {
	Extractor string `yaml:"extractor"`
	Markdown  bool   `yaml:"markdown"`
}

// Queue selects and sizes the request queue.
type Queue struct {
	Kind       string `yaml:"kind"`
	MaxSize    int    `yaml:"max_size"`
	Priorities []int  `yaml:"priorities"`
}

// History selects the duplicate filter.
type History struct {
	Kind     string  `yaml:"kind"`
	Capacity uint    `yaml:"capacity"`
	FPRate   float64 `yaml:"fp_rate"`
}

// RateLimit bounds requests per second per host. Zero disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Selector follows links matching a CSS selector.
type Selector struct {
	Selector string `yaml:"selector"`
	Priority int    `yaml:"priority"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, recrawl.Errorf(recrawl.ENOTFOUND, "config %s not found", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a configuration from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, recrawl.Errorf(recrawl.EINVALID, "config is empty")
		}
		return nil, recrawl.Errorf(recrawl.EINVALID, "decode config: %v", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.StashDir == "" {
		c.StashDir = DefaultStashDir
	}
	for i := range c.Spiders {
		s := &c.Spiders[i]
		if s.Fetcher == "" {
			s.Fetcher = FetcherHTTP
		}
		if s.Queue.Kind == "" {
			s.Queue.Kind = QueueMemory
		}
		if s.Queue.MaxSize == 0 {
			s.Queue.MaxSize = DefaultQueueMaxSize
		}
		if s.History.Kind == "" {
			s.History.Kind = HistorySet
		}
		if s.History.Capacity == 0 {
			s.History.Capacity = DefaultBloomCapacity
		}
		if s.History.FPRate == 0 {
			s.History.FPRate = DefaultBloomFPRate
		}
	}
}

// Validate returns an EINVALID error describing the first problem found.
func (c *Config) Validate() error {
	if len(c.Spiders) == 0 {
		return recrawl.Errorf(recrawl.EINVALID, "config lists no spiders")
	}
	names := make(map[string]bool, len(c.Spiders))
	for i := range c.Spiders {
		s := &c.Spiders[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if names[s.Name] {
			return recrawl.Errorf(recrawl.EINVALID, "duplicate spider %q", s.Name)
		}
		names[s.Name] = true
	}
	return nil
}

// Validate checks a single spider configuration.
func (s *Spider) Validate() error {
	if s.Name == "" {
		return recrawl.Errorf(recrawl.EINVALID, "spider name required")
	}
	if len(s.StartURLs) == 0 {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: start_urls required", s.Name)
	}
	for _, raw := range s.StartURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return recrawl.Errorf(recrawl.EINVALID, "spider %s: invalid start url %q", s.Name, raw)
		}
	}
	for _, pattern := range append(append([]string{}, s.Allow...), s.Deny...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return recrawl.Errorf(recrawl.EINVALID, "spider %s: invalid pattern %q: %v", s.Name, pattern, err)
		}
	}
	if s.MaxGeneration < 0 || s.Checkpoint < 0 || s.Retries < 0 || s.Timeout < 0 {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: negative limit", s.Name)
	}
	switch s.Queue.Kind {
	case QueueMemory, QueueDisk, QueueLevelDB:
	default:
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: unknown queue kind %q", s.Name, s.Queue.Kind)
	}
	if s.Queue.MaxSize < 1 {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: queue max_size must be positive", s.Name)
	}
	if s.Queue.Kind == QueueLevelDB && len(s.Queue.Priorities) > 0 {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: leveldb queue does not support priorities", s.Name)
	}
	switch s.History.Kind {
	case HistorySet, HistoryBloom, HistoryLevelDB:
	default:
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: unknown history kind %q", s.Name, s.History.Kind)
	}
	if s.History.FPRate <= 0 || s.History.FPRate >= 1 {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: fp_rate must be in (0, 1)", s.Name)
	}
	if s.RateLimit.RPS < 0 || s.RateLimit.Burst < 0 {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: negative rate limit", s.Name)
	}
	switch s.Fetcher {
	case FetcherHTTP, FetcherBrowser:
	default:
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: unknown fetcher %q", s.Name, s.Fetcher)
	}
	switch s.Content.Extractor {
	case "", ExtractorTrafilatura, ExtractorReadability:
	default:
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: unknown content extractor %q", s.Name, s.Content.Extractor)
	}
	if s.Content.Markdown && s.Content.Extractor == "" {
		return recrawl.Errorf(recrawl.EINVALID, "spider %s: markdown needs a content extractor", s.Name)
	}
	for _, sel := range s.Selectors {
		if sel.Selector == "" {
			return recrawl.Errorf(recrawl.EINVALID, "spider %s: empty selector", s.Name)
		}
	}
	return nil
}
