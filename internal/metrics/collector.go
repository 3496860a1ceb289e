package metrics

import (
	"context"
	"sync"
	"time"

	"hls-ingest/internal/logging"
)

// StatsProvider supplies asset counts keyed by lifecycle state.
type StatsProvider interface {
	CountAssetsByState(ctx context.Context) (map[string]int, error)
}

// DBMetricsUpdater refreshes database connection gauges.
type DBMetricsUpdater interface {
	UpdateDBMetrics()
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
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

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := c.statsProvider.CountAssetsByState(ctx)
	if err != nil {
		logging.Warn("metrics collection failed: %v", err)
		return
	}

	for _, state := range []string{"created", "validating", "transcoding", "published", "rejected"} {
		AssetsByState.WithLabelValues(state).Set(float64(counts[state]))
	}

	if u, ok := c.statsProvider.(DBMetricsUpdater); ok {
		u.UpdateDBMetrics()
	}

	logging.Debug("Metrics collected: %v", counts)
}
