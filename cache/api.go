package cache

import "context"

// Cache is a sharded, in-memory byte-oriented cache/index tier: an ordered
// map of opaque keys to opaque values with a bounded live-byte budget.
// All methods are safe for concurrent use by multiple goroutines.
//
// Keys and values are copied on the way in and on the way out; callers may
// reuse their slices freely.
type Cache interface {
	// Get returns the value stored for key. A miss is not an error; err is
	// non-nil only for a closed cache or a corrupted shard.
	Get(key []byte) (value []byte, found bool, err error)

	// GetOrLoad returns the value for key, loading it through
	// Options.Loader on miss. Concurrent loads for the same key are
	// coalesced. Returns ErrNoLoader when no Loader is configured.
	GetOrLoad(ctx context.Context, key []byte) ([]byte, error)

	// Put inserts or overwrites key. Overwritten bytes are relocated and
	// the old span reclaimed. When the write pushes the shard over its
	// byte budget, victims are evicted synchronously until the budget is
	// met or no unpinned candidate remains; the result reports both.
	Put(key, value []byte) (PutResult, error)

	// Delete removes key and reclaims its arena space. Deleting an absent
	// key is a defined no-op with existed=false, not an error.
	Delete(key []byte) (existed bool, err error)

	// Range returns a lazy ascending cursor over [start, end). A nil or
	// empty start begins at the smallest key; a nil or empty end is
	// unbounded. start > end yields an empty cursor. Restart by calling
	// Range again.
	Range(start, end []byte) *Iterator

	// SnapshotIterator iterates every live record in ascending key order.
	// This is the interface the persistence layer consumes to flush the
	// cache to durable storage.
	SnapshotIterator() *Iterator

	// Pin marks key unevictable until a matching Unpin. Callers must
	// unpin on every exit path or the entry stays resident forever.
	// Reports whether the key is present.
	Pin(key []byte) bool

	// Unpin releases one pin on key.
	Unpin(key []byte) bool

	// Stats returns current size, capacity, and operation counters.
	Stats() Stats

	// Len returns the number of resident entries across all shards.
	Len() int

	// Close marks the cache closed; subsequent operations fail with
	// ErrClosed.
	Close() error
}

// PutResult reports what a Put did besides storing the record.
type PutResult struct {
	// EvictionOccurred is true when at least one victim was evicted to
	// make room.
	EvictionOccurred bool

	// CapacityPressure is true when the shard is still over budget after
	// eviction (every remaining candidate was pinned). In strict mode the
	// Put fails with ErrCapacityExhausted instead.
	CapacityPressure bool
}

// Stats is a point-in-time aggregate across all shards.
type Stats struct {
	SizeBytes       int64
	CapacityBytes   int64
	Entries         int
	HitCount        uint64
	MissCount       uint64
	EvictionCount   uint64
	CompactionCount uint64
	FilterRebuilds  uint64
	ShardCount      int
}
