package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/mock"
	recslog "github.com/fwojciec/recrawl/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("logs fetch with status, bytes and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Fetcher{
			FetchFn: func(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error) {
				return &recrawl.Response{Request: req, URL: req.URL, Status: 200, Body: []byte("<html>content</html>")}, nil
			},
		}

		fetcher := recslog.NewLoggingFetcher(inner, logger)
		resp, err := fetcher.Fetch(context.Background(), recrawl.NewRequest("https://example.com/docs"))

		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		output := buf.String()
		assert.Contains(t, output, "msg=fetch")
		assert.Contains(t, output, "method=GET")
		assert.Contains(t, output, "url=https://example.com/docs")
		assert.Contains(t, output, "status=200")
		assert.Contains(t, output, "bytes=20")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs error on failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Fetcher{
			FetchFn: func(ctx context.Context, req *recrawl.Request) (*recrawl.Response, error) {
				return nil, errors.New("network error")
			},
		}

		fetcher := recslog.NewLoggingFetcher(inner, logger)
		_, err := fetcher.Fetch(context.Background(), recrawl.NewRequest("https://example.com/docs"))

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "status=0")
		assert.Contains(t, output, "err=\"network error\"")
	})
}

func TestLoggingFetcher_Close(t *testing.T) {
	t.Parallel()

	t.Run("delegates to inner fetcher", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		closeCalled := false
		inner := &mock.Fetcher{
			CloseFn: func() error {
				closeCalled = true
				return nil
			},
		}

		fetcher := recslog.NewLoggingFetcher(inner, logger)
		err := fetcher.Close()

		require.NoError(t, err)
		assert.True(t, closeCalled)
	})
}
