package cache

import (
	"context"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/IvanBrykalov/memtier/policy"
)

// Defaults applied by New for zero-valued options.
const (
	DefaultExpectedItems       = 1 << 16
	DefaultBloomFalsePositive  = 0.01
	DefaultArenaBlockSize      = 1 << 20 // 1 MiB
	DefaultCompactionThreshold = 0.5
)

// Options configures the cache. Zero values get sane defaults in New;
// invalid values fail construction with ErrInvalidConfiguration.
type Options struct {
	// CapacityBytes is the total live-byte budget (keys + values) across
	// all shards. Required, must be > 0.
	CapacityBytes int64

	// Shards is the number of independently locked partitions, rounded up
	// to a power of two. 0 picks an automatic value from GOMAXPROCS;
	// negative values are invalid.
	Shards int

	// ExpectedItems sizes the per-shard Bloom filters and skip lists.
	// 0 => DefaultExpectedItems.
	ExpectedItems int

	// BloomFalsePositive is the target false-positive probability, in
	// (0, 1). 0 => DefaultBloomFalsePositive.
	BloomFalsePositive float64

	// ArenaBlockSize is the capacity of one arena block in bytes. A single
	// value larger than this is rejected with ErrAllocationTooLarge.
	// 0 => DefaultArenaBlockSize.
	ArenaBlockSize int

	// SkipListMaxLevel caps index node promotion. 0 derives it from
	// log2(ExpectedItems per shard).
	SkipListMaxLevel int

	// CompactionThreshold is the live-byte ratio below which a full arena
	// block is compacted, in (0, 1). 0 => DefaultCompactionThreshold.
	CompactionThreshold float64

	// StrictCapacity makes Put fail with ErrCapacityExhausted when
	// eviction cannot bring the shard under budget. When false, the write
	// succeeds and Put reports capacity pressure instead.
	StrictCapacity bool

	// Policy is the pluggable eviction policy; nil selects the hybrid
	// frequency/recency default (policy/lfru).
	Policy policy.Policy

	// Loader fetches a value on cache miss. Used by GetOrLoad; typically
	// backed by the disk tier this cache fronts.
	Loader func(ctx context.Context, key []byte) ([]byte, error)

	// OnEvict is called for each capacity eviction, under the shard lock;
	// keep callbacks lightweight. The key slice must not be retained.
	OnEvict func(key []byte)

	// Metrics receives observability events; nil => NoopMetrics.
	Metrics Metrics
}

// validate checks hard constraints. Only zero values are defaulted; any
// explicitly wrong value is a construction error.
func (o *Options) validate() error {
	if o.CapacityBytes <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "CapacityBytes %d, must be > 0", o.CapacityBytes)
	}
	if o.Shards < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "Shards %d, must be >= 0", o.Shards)
	}
	if o.ExpectedItems < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "ExpectedItems %d, must be >= 0", o.ExpectedItems)
	}
	if o.BloomFalsePositive < 0 || o.BloomFalsePositive >= 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "BloomFalsePositive %g, must be in (0, 1)", o.BloomFalsePositive)
	}
	if o.ArenaBlockSize < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "ArenaBlockSize %d, must be >= 0", o.ArenaBlockSize)
	}
	if o.SkipListMaxLevel < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "SkipListMaxLevel %d, must be >= 0", o.SkipListMaxLevel)
	}
	if o.CompactionThreshold < 0 || o.CompactionThreshold >= 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "CompactionThreshold %g, must be in (0, 1)", o.CompactionThreshold)
	}
	return nil
}

// withDefaults fills zero values. Shard count is resolved separately in New
// because it feeds per-shard sizing.
func (o *Options) withDefaults() {
	if o.ExpectedItems == 0 {
		o.ExpectedItems = DefaultExpectedItems
	}
	if o.BloomFalsePositive == 0 {
		o.BloomFalsePositive = DefaultBloomFalsePositive
	}
	if o.ArenaBlockSize == 0 {
		o.ArenaBlockSize = DefaultArenaBlockSize
	}
	if o.CompactionThreshold == 0 {
		o.CompactionThreshold = DefaultCompactionThreshold
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
}

// maxLevelFor derives a skip list level cap from the expected per-shard
// population: log2(n), clamped to [4, 32].
func maxLevelFor(perShardItems int) int {
	lvl := bits.Len(uint(perShardItems))
	if lvl < 4 {
		lvl = 4
	}
	if lvl > 32 {
		lvl = 32
	}
	return lvl
}
