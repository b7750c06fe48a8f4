package recrawl

import "context"

// Item is a record scraped from a response.
type Item struct {
	Spider string         `json:"spider"`
	URL    string         `json:"url"`
	Fields map[string]any `json:"fields"`
}

// Result is what a parse callback produces: new requests to admit to the
// frontier and items to hand to the item sink.
type Result struct {
	Requests []*Request
	Items    []*Item
}

// ParseFunc parses a response. A returned error terminates the task.
type ParseFunc func(ctx context.Context, resp *Response) (Result, error)

// Spider is the caller-supplied crawl logic.
type Spider interface {
	// Name identifies the spider. Stashes are stored under this name.
	Name() string

	// StartRequests returns the seed requests for a fresh crawl.
	StartRequests() []*Request

	// Parse is the default callback for requests without a Callback name.
	Parse(ctx context.Context, resp *Response) (Result, error)

	// Handler resolves a named callback.
	// Returns false if the spider has no handler with that name.
	Handler(name string) (ParseFunc, bool)
}

// Errbacker is implemented by spiders that want to handle fetch failures,
// typically by returning req.Retry() or dropping the request.
// Spiders without it have failed requests dropped.
type Errbacker interface {
	Errback(ctx context.Context, req *Request, err error) (Result, error)
}

// StashableSpider is implemented by spiders carrying state of their own
// that must be stashed alongside the frontier.
type StashableSpider interface {
	StashAttrs() map[string]Stasher
}

// ItemSink receives scraped items.
type ItemSink interface {
	WriteItem(ctx context.Context, item *Item) error
}
