package cache

import (
	"context"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/memtier/internal/util"
	"github.com/IvanBrykalov/memtier/policy/lfru"
)

// memtier is the sharded implementation behind the Cache interface. The
// keyspace is partitioned by xxhash; each shard owns its own skip list,
// arena blocks, policy state, and Bloom filter behind one lock, so
// operations on different shards run fully in parallel.
type memtier struct {
	shards []*shard
	closed atomic.Bool
	opt    Options

	// coalesces concurrent loads in GetOrLoad.
	sf singleflight.Group
}

// New constructs a cache from the provided Options.
// Defaults:
//   - nil Policy   -> hybrid frequency/recency (lfru)
//   - nil Metrics  -> NoopMetrics
//   - Shards == 0  -> auto, rounded up to the next power of two
//
// The capacity budget and expected item count are split evenly across
// shards (ceil).
func New(opt Options) (Cache, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	opt.withDefaults()

	sh := opt.Shards
	if sh == 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}
	opt.Shards = sh

	pol := opt.Policy
	if pol == nil {
		pol = lfru.New()
	}

	perShardCap := (opt.CapacityBytes + int64(sh) - 1) / int64(sh)
	perShardItems := (opt.ExpectedItems + sh - 1) / sh

	c := &memtier{
		shards: make([]*shard, sh),
		opt:    opt,
	}
	for i := range c.shards {
		c.shards[i] = newShard(perShardCap, perShardItems, &opt, pol)
	}
	return c, nil
}

// shardFor picks a shard by hashing the key and masking with len-1;
// the shard count is guaranteed to be a power of two.
func (c *memtier) shardFor(key []byte) *shard {
	return c.shards[util.ShardIndex(xxhash.Sum64(key), len(c.shards))]
}

func (c *memtier) Get(key []byte) ([]byte, bool, error) {
	if c.closed.Load() {
		return nil, false, ErrClosed
	}
	return c.shardFor(key).get(key)
}

func (c *memtier) Put(key, value []byte) (PutResult, error) {
	if c.closed.Load() {
		return PutResult{}, ErrClosed
	}
	return c.shardFor(key).put(key, value)
}

func (c *memtier) Delete(key []byte) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	return c.shardFor(key).delete(key)
}

// GetOrLoad returns the value for key; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight) before
// caching the result.
func (c *memtier) GetOrLoad(ctx context.Context, key []byte) ([]byte, error) {
	v, ok, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		return nil, ErrNoLoader
	}

	out, err, _ := c.sf.Do(string(key), func() (interface{}, error) {
		// Double-check after flight join.
		if v, ok, err := c.Get(key); err != nil || ok {
			return v, err
		}
		loaded, err := c.opt.Loader(ctx, key)
		if err != nil {
			return nil, err
		}
		if _, err := c.Put(key, loaded); err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *memtier) Pin(key []byte) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(key).pin(key)
}

func (c *memtier) Unpin(key []byte) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(key).unpin(key)
}

func (c *memtier) Range(start, end []byte) *Iterator {
	if c.closed.Load() {
		return &Iterator{err: ErrClosed, done: true}
	}
	return newIterator(c, start, end)
}

func (c *memtier) SnapshotIterator() *Iterator {
	if c.closed.Load() {
		return &Iterator{err: ErrClosed, done: true}
	}
	return newIterator(c, nil, nil)
}

func (c *memtier) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.len()
	}
	return total
}

func (c *memtier) Stats() Stats {
	st := Stats{
		CapacityBytes: c.opt.CapacityBytes,
		ShardCount:    len(c.shards),
	}
	for _, s := range c.shards {
		st.SizeBytes += s.bytes()
		st.Entries += s.len()
		st.HitCount += uint64(s.hits.Load())
		st.MissCount += uint64(s.misses.Load())
		st.EvictionCount += s.evicts.Load()
		st.CompactionCount += s.compacts.Load()
		st.FilterRebuilds += s.rebuilds.Load()
	}
	return st
}

// Close marks the cache as closed. Shard state is dropped with the value;
// there are no background workers to stop.
func (c *memtier) Close() error {
	c.closed.Store(true)
	return nil
}
