package cache

// Metrics exposes cache-level observability hooks. A NoopMetrics
// implementation is provided and used by default; metrics/prom adapts this
// interface to Prometheus.
type Metrics interface {
	Hit()
	Miss()
	Evict()
	// Size reports the current resident entry count and live bytes after
	// a mutation settles.
	Size(entries int, bytes int64)
	// Compaction is called once per arena block compaction.
	Compaction()
	// FilterRebuild is called when a shard rebuilds its Bloom filter from
	// the live key set.
	FilterRebuild()
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                        {}
func (NoopMetrics) Miss()                       {}
func (NoopMetrics) Evict()                      {}
func (NoopMetrics) Size(entries int, bytes int64) {}
func (NoopMetrics) Compaction()                 {}
func (NoopMetrics) FilterRebuild()              {}

var _ Metrics = NoopMetrics{}
