package slog

import (
	"context"
	"log/slog"

	"github.com/fwojciec/recrawl"
)

// Ensure LoggingItemSink implements recrawl.ItemSink.
var _ recrawl.ItemSink = (*LoggingItemSink)(nil)

// LoggingItemSink wraps an ItemSink, logging items at debug level and
// failures at error level.
type LoggingItemSink struct {
	next   recrawl.ItemSink
	logger *slog.Logger
}

// NewLoggingItemSink creates a new LoggingItemSink.
func NewLoggingItemSink(next recrawl.ItemSink, logger *slog.Logger) *LoggingItemSink {
	return &LoggingItemSink{next: next, logger: logger}
}

func (s *LoggingItemSink) WriteItem(ctx context.Context, item *recrawl.Item) error {
	if err := s.next.WriteItem(ctx, item); err != nil {
		s.logger.Error("write item", "spider", item.Spider, "url", item.URL, "err", err)
		return err
	}
	s.logger.Debug("item", "spider", item.Spider, "url", item.URL, "fields", len(item.Fields))
	return nil
}
