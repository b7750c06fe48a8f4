package mock

import (
	"sync"

	"github.com/fwojciec/recrawl"
)

var _ recrawl.Metrics = (*Metrics)(nil)

// Metrics records runtime events per spider.
type Metrics struct {
	mu        sync.Mutex
	Processed map[string]int
	Failed    map[string]int
	Items     map[string]int
	Depth     map[string]int
	Stashes   map[string]int
}

// NewMetrics returns an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Processed: map[string]int{},
		Failed:    map[string]int{},
		Items:     map[string]int{},
		Depth:     map[string]int{},
		Stashes:   map[string]int{},
	}
}

func (m *Metrics) RequestProcessed(spider string) { m.inc(m.Processed, spider) }
func (m *Metrics) FetchFailed(spider string)      { m.inc(m.Failed, spider) }
func (m *Metrics) ItemScraped(spider string)      { m.inc(m.Items, spider) }
func (m *Metrics) Stashed(spider string)          { m.inc(m.Stashes, spider) }

func (m *Metrics) QueueDepth(spider string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Depth[spider] = n
}

func (m *Metrics) inc(counts map[string]int, spider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts[spider]++
}
