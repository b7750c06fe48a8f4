package goquery_test

import (
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(rawURL, html string) *recrawl.Response {
	return &recrawl.Response{
		Request: recrawl.NewRequest(rawURL),
		URL:     rawURL,
		Status:  200,
		Body:    []byte(html),
		Text:    html,
	}
}

func TestLinks(t *testing.T) {
	t.Parallel()

	t.Run("resolves relative links and keeps document order", func(t *testing.T) {
		t.Parallel()

		resp := page("https://example.com/docs/intro", `<html><body>
			<a href="guide">Guide</a>
			<a href="/api#users">API</a>
			<a href="https://other.com/x">Other</a>
		</body></html>`)

		reqs, err := goquery.Links(resp, goquery.DefaultSelectors())
		require.NoError(t, err)

		require.Len(t, reqs, 3)
		assert.Equal(t, "https://example.com/docs/guide", reqs[0].URL)
		assert.Equal(t, "https://example.com/api", reqs[1].URL)
		assert.Equal(t, "https://other.com/x", reqs[2].URL, "scope is left to filters")
		assert.Equal(t, "Guide", reqs[0].Meta["text"])
		assert.Equal(t, "https://example.com/docs/intro", reqs[0].Meta["referer"])
	})

	t.Run("keeps the highest priority for duplicates", func(t *testing.T) {
		t.Parallel()

		resp := page("https://example.com/", `<html><body>
			<main><a href="/a">A</a></main>
			<nav><a href="/a">A</a><a href="/b">B</a></nav>
			<footer><a href="/c">C</a></footer>
		</body></html>`)

		reqs, err := goquery.Links(resp, goquery.DefaultSelectors())
		require.NoError(t, err)

		got := map[string]recrawl.Priority{}
		for _, r := range reqs {
			got[r.URL] = r.Priority
		}
		assert.Equal(t, map[string]recrawl.Priority{
			"https://example.com/a": goquery.PriorityNavigation,
			"https://example.com/b": goquery.PriorityNavigation,
			"https://example.com/c": goquery.PriorityFooter,
		}, got)
	})

	t.Run("skips non-HTTP and self links", func(t *testing.T) {
		t.Parallel()

		resp := page("https://example.com/page", `<html><body>
			<a href="javascript:void(0)">js</a>
			<a href="mailto:a@example.com">mail</a>
			<a href="tel:123">tel</a>
			<a href="#section">anchor</a>
			<a href="ftp://example.com/file">ftp</a>
			<a href="">empty</a>
			<a href="/ok">ok</a>
		</body></html>`)

		reqs, err := goquery.Links(resp, goquery.DefaultSelectors())
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "https://example.com/ok", reqs[0].URL)
	})

	t.Run("honors base href", func(t *testing.T) {
		t.Parallel()

		resp := page("https://example.com/a/b", `<html><head><base href="/root/"></head><body>
			<a href="child">child</a>
		</body></html>`)

		reqs, err := goquery.Links(resp, goquery.DefaultSelectors())
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "https://example.com/root/child", reqs[0].URL)
	})

	t.Run("assigns configured callbacks", func(t *testing.T) {
		t.Parallel()

		resp := page("https://example.com/", `<html><body>
			<a class="item" href="/p/1">1</a>
			<a class="next" href="/?page=2">next</a>
		</body></html>`)

		reqs, err := goquery.Links(resp, []goquery.SelectorConfig{
			{Selector: "a.item", Priority: 1, Callback: "item"},
			{Selector: "a.next", Priority: 2},
		})
		require.NoError(t, err)
		require.Len(t, reqs, 2)
		assert.Equal(t, "item", reqs[0].Callback)
		assert.Equal(t, recrawl.Priority(1), reqs[0].Priority)
		assert.Empty(t, reqs[1].Callback)
	})
}
