package goquery_test

import (
	"testing"

	"github.com/fwojciec/recrawl/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_is_parsed_once_per_response(t *testing.T) {
	t.Parallel()

	resp := page("https://example.com/", `<html><body><p>hi</p></body></html>`)

	first, err := goquery.Document(resp)
	require.NoError(t, err)
	second, err := goquery.Document(resp)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "hi", first.Find("p").Text())
	assert.Equal(t, "https://example.com/", first.Url.String())
}

func TestDocument_falls_back_to_body(t *testing.T) {
	t.Parallel()

	resp := page("https://example.com/", "")
	resp.Body = []byte(`<html><body><p>raw</p></body></html>`)

	doc, err := goquery.Document(resp)
	require.NoError(t, err)
	assert.Equal(t, "raw", doc.Find("p").Text())
}

func TestTitle(t *testing.T) {
	t.Parallel()

	resp := page("https://example.com/", "<html><head><title>\n  Hello\n  World </title></head></html>")
	title, err := goquery.Title(resp)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", title)
}

func TestFields(t *testing.T) {
	t.Parallel()

	resp := page("https://example.com/", `<html><head>
		<meta name="description" content=" A page ">
	</head><body>
		<h1>Heading</h1><h1>Second</h1>
	</body></html>`)

	fields, err := goquery.Fields(resp, map[string]string{
		"heading":     "h1",
		"description": "meta[name=description]@content",
		"missing":     "h2",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"heading":     "Heading",
		"description": "A page",
	}, fields)
}
