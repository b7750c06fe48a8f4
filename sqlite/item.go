package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/recrawl"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ recrawl.ItemSink = (*ItemService)(nil)

// ItemService stores scraped items. An item whose spider, URL and fields
// match one already stored is not stored again, so recrawling an unchanged
// page adds nothing.
type ItemService struct {
	db *DB
}

// NewItemService creates a new ItemService.
func NewItemService(db *DB) *ItemService {
	return &ItemService{db: db}
}

// WriteItem stores item.
func (s *ItemService) WriteItem(ctx context.Context, item *recrawl.Item) error {
	if item.Spider == "" || item.URL == "" {
		return recrawl.Errorf(recrawl.EINVALID, "item spider and URL required")
	}
	fields := item.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	// encoding/json sorts map keys, so equal fields hash equally.
	data, err := json.Marshal(fields)
	if err != nil {
		return recrawl.Errorf(recrawl.EINVALID, "item fields: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO items (id, spider, url, fields, content_hash, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), item.Spider, item.URL, string(data), hashContent(data), formatTime(time.Now()))
	return err
}

// ItemFilter selects items in FindItems.
type ItemFilter struct {
	Spider string
	URL    string
	Limit  int
	Offset int
}

// FindItems returns stored items in insertion order.
func (s *ItemService) FindItems(ctx context.Context, filter ItemFilter) ([]*recrawl.Item, error) {
	var query strings.Builder
	var args []any
	query.WriteString("SELECT spider, url, fields FROM items WHERE 1 = 1")
	if filter.Spider != "" {
		query.WriteString(" AND spider = ?")
		args = append(args, filter.Spider)
	}
	if filter.URL != "" {
		query.WriteString(" AND url = ?")
		args = append(args, filter.URL)
	}
	query.WriteString(" ORDER BY rowid")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*recrawl.Item
	for rows.Next() {
		var item recrawl.Item
		var fields string
		if err := rows.Scan(&item.Spider, &item.URL, &fields); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &item.Fields); err != nil {
			return nil, recrawl.Errorf(recrawl.ECORRUPT, "item %s fields: %v", item.URL, err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// CountItems returns the number of items stored for spider.
func (s *ItemService) CountItems(ctx context.Context, spider string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE spider = ?", spider).Scan(&n)
	return n, err
}
