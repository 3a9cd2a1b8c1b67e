// Package policy defines the pluggable eviction contract used by the cache
// shards. A Policy is a factory; each shard binds its own ShardPolicy
// instance, so policy state never crosses a shard boundary.
package policy

// ShardPolicy tracks access recency/frequency for the keys of one shard and
// selects eviction victims. All methods are invoked under the shard lock.
//
// Semantics:
//   - OnInsert registers a key the shard just admitted.
//   - OnAccess records a hit (an overwrite of an existing key counts as
//     an access).
//   - Pin/Unpin adjust a reference count; a key with pins > 0 is never
//     returned by SelectVictim. Both report whether the key is tracked.
//   - SelectVictim proposes the next key to evict, or false when every
//     tracked key is pinned (or none is tracked). It does not remove the
//     key; the shard calls Remove once the eviction has been applied.
//   - Remove forgets a key (evicted or explicitly deleted).
type ShardPolicy interface {
	OnInsert(key string)
	OnAccess(key string)
	Pin(key string) bool
	Unpin(key string) bool
	SelectVictim() (key string, ok bool)
	Remove(key string)
	Len() int
}

// Policy is a factory that creates shard-local policy instances.
type Policy interface {
	New() ShardPolicy
}
