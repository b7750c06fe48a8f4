package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fwojciec/recrawl"
)

var _ recrawl.ItemSink = (*ItemFile)(nil)

// ItemFile appends scraped items to a file as JSON lines.
type ItemFile struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// OpenItemFile opens path for appending, creating it and its parent
// directories if needed.
func OpenItemFile(path string) (*ItemFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create item directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open item file: %w", err)
	}
	return &ItemFile{f: f, enc: json.NewEncoder(f)}, nil
}

func (w *ItemFile) WriteItem(_ context.Context, item *recrawl.Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(item); err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *ItemFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
