package metrics

import (
	"sync"
	"time"
)

// Sizer reports the current size of something worth sampling.
type Sizer interface {
	Len() int
}

// Collector samples gauges that are cheaper to poll than to track inline.
type Collector struct {
	metrics   *Metrics
	cache     Sizer
	queue     Sizer
	interval  time.Duration
	startTime time.Time
	ticker    *time.Ticker
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewCollector creates a collector sampling the address cache and the
// transmit queue.
func NewCollector(metrics *Metrics, cache, queue Sizer) *Collector {
	return &Collector{
		metrics:   metrics,
		cache:     cache,
		queue:     queue,
		interval:  15 * time.Second,
		startTime: time.Now(),
	}
}

// Start starts the collector.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	c.running = true
	c.done = make(chan struct{})
	c.ticker = time.NewTicker(c.interval)

	go c.collectLoop(c.ticker, c.done)
}

// Stop stops the collector.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	close(c.done)
	c.ticker.Stop()
	c.running = false
}

func (c *Collector) collectLoop(ticker *time.Ticker, done chan struct{}) {
	c.collect()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// collect performs a single collection.
func (c *Collector) collect() {
	c.metrics.Uptime.Set(time.Since(c.startTime).Seconds())
	c.metrics.CacheEntries.Set(float64(c.cache.Len()))
	c.metrics.QueueDepth.Set(float64(c.queue.Len()))
}
