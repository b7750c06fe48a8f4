package recrawl

import "context"

// StashStore persists stashes, one per spider name. Each stash is a set of
// named attributes.
type StashStore interface {
	// Exists reports whether a committed stash exists for the spider.
	Exists(spider string) (bool, error)

	// Save atomically replaces the stash for the spider.
	Save(spider string, attrs map[string][]byte) error

	// Load returns every attribute of the spider's stash.
	// Returns ENOTFOUND if no stash exists and ECORRUPT if it fails
	// verification.
	Load(spider string) (map[string][]byte, error)

	// Remove deletes the spider's stash. Removing a missing stash is not
	// an error.
	Remove(spider string) error
}

// Decision is the operator's answer to an interrupt.
type Decision int

// Interrupt decisions.
const (
	DecisionResume Decision = iota
	DecisionDiscard
	DecisionStash
)

func (d Decision) String() string {
	switch d {
	case DecisionResume:
		return "resume"
	case DecisionDiscard:
		return "discard"
	case DecisionStash:
		return "stash"
	default:
		return "unknown"
	}
}

// ParseDecision parses the string form of a Decision.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "resume", "r":
		return DecisionResume, nil
	case "discard", "d":
		return DecisionDiscard, nil
	case "stash", "s":
		return DecisionStash, nil
	}
	return 0, Errorf(EINVALID, "unknown decision %q", s)
}

// Decider decides what happens to an interrupted task. It is called from the
// task loop, never from signal context, so it may block (e.g. on a prompt).
type Decider interface {
	Decide(ctx context.Context, spider string) (Decision, error)
}

// DeciderFunc adapts an ordinary function to the Decider interface.
type DeciderFunc func(ctx context.Context, spider string) (Decision, error)

// Decide calls f(ctx, spider).
func (f DeciderFunc) Decide(ctx context.Context, spider string) (Decision, error) {
	return f(ctx, spider)
}

// Metrics receives task runtime events.
type Metrics interface {
	RequestProcessed(spider string)
	FetchFailed(spider string)
	ItemScraped(spider string)
	QueueDepth(spider string, n int)
	Stashed(spider string)
}
