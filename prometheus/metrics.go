// Package prometheus exports task runtime metrics as Prometheus collectors.
package prometheus

import (
	"fmt"

	"github.com/fwojciec/recrawl"
	"github.com/prometheus/client_golang/prometheus"
)

// Ensure Metrics implements recrawl.Metrics.
var _ recrawl.Metrics = (*Metrics)(nil)

// Metrics records task events in per-spider counters and a queue depth gauge.
// It is safe for concurrent use.
type Metrics struct {
	processed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	items      *prometheus.CounterVec
	stashes    *prometheus.CounterVec
	queueDepth *prometheus.GaugeVec
}

// NewMetrics registers the collectors against reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recrawl_requests_processed_total",
			Help: "Requests fetched and handled by tasks.",
		}, []string{"spider"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recrawl_fetch_failures_total",
			Help: "Fetches that returned an error.",
		}, []string{"spider"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recrawl_items_scraped_total",
			Help: "Items handed to the item sink.",
		}, []string{"spider"}),
		stashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recrawl_stashes_total",
			Help: "Task stashes written.",
		}, []string{"spider"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recrawl_queue_depth",
			Help: "Requests waiting in the task queue.",
		}, []string{"spider"}),
	}
	for _, c := range []prometheus.Collector{m.processed, m.failed, m.items, m.stashes, m.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) RequestProcessed(spider string) { m.processed.WithLabelValues(spider).Inc() }
func (m *Metrics) FetchFailed(spider string)      { m.failed.WithLabelValues(spider).Inc() }
func (m *Metrics) ItemScraped(spider string)      { m.items.WithLabelValues(spider).Inc() }
func (m *Metrics) Stashed(spider string)          { m.stashes.WithLabelValues(spider).Inc() }

func (m *Metrics) QueueDepth(spider string, n int) {
	m.queueDepth.WithLabelValues(spider).Set(float64(n))
}
