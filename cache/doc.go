// Package cache implements the in-memory cache/index tier that fronts a
// log-structured key-value storage engine: recently and frequently used
// records are answered from memory, point and range lookups never touch
// disk, and a byte budget decides what gets evicted when memory is bounded.
//
// # Architecture
//
// The keyspace is partitioned into a fixed number of shards by an xxhash of
// the key. Each shard owns four cooperating structures behind a single lock:
//
//   - a Bloom filter that short-circuits lookups for keys that were never
//     written (no false negatives, tunable false-positive rate);
//   - a skip list mapping keys to arena handles, in byte-lexicographic
//     order, which also serves range scans;
//   - an arena of fixed-capacity append-only blocks that physically store
//     value bytes and are compacted when their live ratio decays;
//   - an eviction policy instance tracking per-key frequency and recency,
//     with pinning support.
//
// Control flow for a read: Bloom filter (fast negative) -> skip list
// (locate) -> arena (fetch bytes) -> policy (record the access). A write
// stores bytes in the arena, upserts the index, reclaims any overwritten
// span, and evicts synchronously until the shard is back under budget.
//
// # Capacity
//
// CapacityBytes bounds the total live key+value bytes across shards. When a
// Put pushes a shard over its slice of the budget, victims are selected by
// the policy (hybrid frequency/recency by default: lowest frequency bucket
// first, least recent within it) and removed until the budget is met or
// only pinned entries remain. In the latter case the write still succeeds
// and the result reports capacity pressure, unless StrictCapacity was set,
// in which case the write is rolled back with ErrCapacityExhausted.
//
// # Consistency
//
// Operations on keys in the same shard are strictly serialized; a Get
// observes either all of a preceding Put/Delete or none of it. Operations
// on different shards have no relative ordering. Range cursors re-seek by
// key on every advance, so they tolerate concurrent mutation without
// holding any lock across calls.
//
// Internal invariant violations (a handle resolving to reclaimed memory)
// poison the affected shard: every later operation on it fails with
// ErrShardCorrupted rather than risking silently wrong data.
//
// # Example
//
//	c, err := cache.New(cache.Options{
//		CapacityBytes: 64 << 20,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	if _, err := c.Put([]byte("user:1"), []byte("ada")); err != nil {
//		log.Fatal(err)
//	}
//	v, ok, _ := c.Get([]byte("user:1"))
//	_ = ok // true, v == []byte("ada")
//
//	it := c.Range([]byte("user:"), []byte("user;"))
//	for it.Next() {
//		fmt.Printf("%s=%s\n", it.Key(), it.Value())
//	}
package cache
