package metrics

import (
	"time"

	"media-converter/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current history and cache statistics
type Stats struct {
	ConversionsByStatus map[string]int
	ProbeCacheEntries   int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	total := 0
	for status, n := range stats.ConversionsByStatus {
		ConversionHistoryTotal.WithLabelValues(status).Set(float64(n))
		total += n
	}
	ProbeCacheEntries.Set(float64(stats.ProbeCacheEntries))

	logging.Debug("Metrics collected: conversions=%d, probe cache entries=%d", total, stats.ProbeCacheEntries)
}
