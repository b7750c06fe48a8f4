package trafilatura_test

import (
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/fwojciec/recrawl/trafilatura"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const article = `<!DOCTYPE html>
<html>
<head><title>Installing the CLI - Handbook</title></head>
<body>
<nav><ul><li><a href="/">Home</a></li><li><a href="/blog">Blog</a></li></ul></nav>
<article>
<h1>Installing the CLI</h1>
<p>Download the archive for your platform and unpack it somewhere on your PATH.
The binary has no runtime dependencies and can be copied between machines freely.</p>
<p>Verify the installation by printing the version, which should match the release you picked.</p>
<pre><code>recrawl --version</code></pre>
</article>
<footer>Copyright 2026 Example Corp. All rights reserved.</footer>
</body>
</html>`

func page(html string) *recrawl.Response {
	return &recrawl.Response{URL: "https://example.com/install", Status: 200, Text: html}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("keeps the article and drops boilerplate", func(t *testing.T) {
		t.Parallel()

		content, err := trafilatura.NewExtractor().Extract(page(article))

		require.NoError(t, err)
		assert.NotEmpty(t, content.Title)
		assert.Contains(t, content.HTML, "unpack it somewhere on your PATH")
		assert.Contains(t, content.HTML, "recrawl --version")
		assert.NotContains(t, content.HTML, "All rights reserved")
		assert.NotContains(t, content.HTML, `href="/blog"`)
	})

	t.Run("falls back to body bytes", func(t *testing.T) {
		t.Parallel()

		resp := &recrawl.Response{URL: "https://example.com/install", Status: 200, Body: []byte(article)}
		content, err := trafilatura.NewExtractor().Extract(resp)

		require.NoError(t, err)
		assert.Contains(t, content.HTML, "unpack it somewhere on your PATH")
	})

	t.Run("memoizes per response", func(t *testing.T) {
		t.Parallel()

		resp := page(article)
		ext := trafilatura.NewExtractor()
		first, err := ext.Extract(resp)
		require.NoError(t, err)
		second, err := ext.Extract(resp)
		require.NoError(t, err)

		assert.Same(t, first, second)
	})

	t.Run("rejects empty page", func(t *testing.T) {
		t.Parallel()

		_, err := trafilatura.NewExtractor().Extract(page("  \n"))

		assert.Equal(t, recrawl.EINVALID, recrawl.ErrorCode(err))
	})
}
