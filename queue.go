package recrawl

// RequestQueue holds requests that still have to be fetched.
//
// Get never blocks: it returns (nil, nil) when the queue is empty. Only
// implementations documented as safe for concurrent use may be shared
// between goroutines.
type RequestQueue interface {
	// Put appends a request to the queue.
	Put(req *Request) error

	// PutMany appends requests in order.
	PutMany(reqs []*Request) error

	// Get removes and returns the next request.
	// Returns (nil, nil) if the queue is empty.
	Get() (*Request, error)

	// Head returns the next request without removing it.
	// Returns (nil, nil) if the queue is empty.
	Head() (*Request, error)

	// Len returns the number of queued requests.
	Len() int

	// Empty reports whether Len is zero.
	Empty() bool

	// Clear drops every queued request.
	Clear() error
}

// FrontPutter is implemented by queues that can return a request ahead of
// everything already queued, e.g. an in-flight request that must be fetched
// first after a recover.
type FrontPutter interface {
	PutFront(req *Request) error
}
