package memcache

import "go.uber.org/atomic"

// metricsCollector accumulates engine-level counters. Counters are atomic so
// MetricsSnapshot can be read while a Ring drives several engines from
// different goroutines.
type metricsCollector struct {
	hits         atomic.Int64
	misses       atomic.Int64
	stores       atomic.Int64
	deletes      atomic.Int64
	errors       atomic.Int64
	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{}
}

func (m *metricsCollector) recordGet(hit bool) {
	if hit {
		m.hits.Inc()
	} else {
		m.misses.Inc()
	}
}

// MetricsSnapshot is a point-in-time copy of an engine's counters.
type MetricsSnapshot struct {
	Hits         int64
	Misses       int64
	Stores       int64
	Deletes      int64
	Errors       int64
	BytesRead    int64
	BytesWritten int64
}

// Metrics returns a snapshot of the engine's counters.
func (c *Client) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:         c.metrics.hits.Load(),
		Misses:       c.metrics.misses.Load(),
		Stores:       c.metrics.stores.Load(),
		Deletes:      c.metrics.deletes.Load(),
		Errors:       c.metrics.errors.Load(),
		BytesRead:    c.metrics.bytesRead.Load(),
		BytesWritten: c.metrics.bytesWritten.Load(),
	}
}
