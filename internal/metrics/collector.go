package metrics

import (
	"context"
	"time"

	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/logger"
)

// GraphCounter reports the size of the stored graph.
type GraphCounter interface {
	CountGraph(ctx context.Context) (nodes, links int64, err error)
}

// Collector periodically copies cache and store counters into gauges.
// Either source may be nil.
type Collector struct {
	cache    cache.Cache
	graph    GraphCounter
	interval time.Duration
	stop     chan struct{}
}

func NewCollector(c cache.Cache, g GraphCounter, interval time.Duration) *Collector {
	return &Collector{
		cache:    c,
		graph:    g,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start collects once and then on every tick until Stop or ctx is done.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) Stop() {
	close(c.stop)
}

func (c *Collector) collect(ctx context.Context) {
	c.collectCacheStats()
	c.collectGraphStats(ctx)
}

func (c *Collector) collectCacheStats() {
	if c.cache == nil {
		return
	}
	s := c.cache.Stats()
	CacheSize.Set(float64(s.Size))
	CacheItems.Set(float64(s.Items))
	CacheEvictions.Set(float64(s.Evictions))
}

func (c *Collector) collectGraphStats(ctx context.Context) {
	if c.graph == nil {
		return
	}
	nodes, links, err := c.graph.CountGraph(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Error counting graph", "error", err)
		MetricsCollectionErrors.WithLabelValues("graph").Inc()
		// Signal stale data
		GraphNodesTotal.Set(-1)
		GraphLinksTotal.Set(-1)
		return
	}
	GraphNodesTotal.Set(float64(nodes))
	GraphLinksTotal.Set(float64(links))
}
