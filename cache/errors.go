package cache

import (
	"github.com/pkg/errors"

	"github.com/IvanBrykalov/memtier/internal/arena"
)

var (
	// ErrInvalidConfiguration is returned by New when Options fail
	// validation. Construction-time only, never recovered.
	ErrInvalidConfiguration = errors.New("cache: invalid configuration")

	// ErrAllocationTooLarge is returned by Put when a single value exceeds
	// the configured arena block size. The write is rejected and no state
	// is mutated.
	ErrAllocationTooLarge = arena.ErrAllocationTooLarge

	// ErrCapacityExhausted is returned by Put in strict capacity mode when
	// eviction cannot bring the shard under budget (every candidate is
	// pinned). The write is rolled back; callers may retry after unpinning.
	ErrCapacityExhausted = errors.New("cache: capacity exhausted")

	// ErrShardCorrupted reports an internal invariant violation (a handle
	// resolved to a reclaimed or out-of-range span). The affected shard is
	// halted: every subsequent operation on it fails with this error,
	// since continuing would risk serving corrupted bytes.
	ErrShardCorrupted = errors.New("cache: shard corrupted")

	// ErrClosed is returned for any operation on a closed cache.
	ErrClosed = errors.New("cache: closed")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
	ErrNoLoader = errors.New("cache: no Loader provided")
)
