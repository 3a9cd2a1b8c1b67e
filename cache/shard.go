package cache

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"github.com/IvanBrykalov/memtier/internal/arena"
	"github.com/IvanBrykalov/memtier/internal/bloom"
	"github.com/IvanBrykalov/memtier/internal/skiplist"
	"github.com/IvanBrykalov/memtier/internal/util"
	"github.com/IvanBrykalov/memtier/policy"
)

// A shard rebuilds its Bloom filter from the live key set once accumulated
// deletions (each leaving a stale positive behind) outnumber both this
// floor and the live population.
const minFilterRebuildDeletes = 64

// shard is an independent partition of the keyspace with its own lock,
// ordered index, arena blocks, eviction policy state, and Bloom filter.
// Operations on keys within one shard are strictly serialized by mu.
type shard struct {
	// ---- guarded by mu ----
	mu        sync.Mutex
	index     *skiplist.SkipList
	mem       *arena.Arena
	pol       policy.ShardPolicy
	filter    *bloom.Filter
	liveBytes int64 // key + value bytes of resident records
	deletes   int   // deletions since the last filter rebuild
	corrupted bool

	capacity  int64 // per-shard byte budget
	blockSize int
	strict    bool
	compactAt float64
	metrics   Metrics
	onEvict   func(key []byte)

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_        util.CacheLinePad
	hits     util.PaddedAtomicInt64
	misses   util.PaddedAtomicInt64
	evicts   util.PaddedAtomicUint64
	compacts util.PaddedAtomicUint64
	rebuilds util.PaddedAtomicUint64
}

func newShard(capacity int64, expectedItems int, opt *Options, pol policy.Policy) *shard {
	maxLevel := opt.SkipListMaxLevel
	if maxLevel == 0 {
		maxLevel = maxLevelFor(expectedItems)
	}
	return &shard{
		index:     skiplist.New(maxLevel),
		mem:       arena.New(opt.ArenaBlockSize),
		pol:       pol.New(),
		filter:    bloom.New(expectedItems, opt.BloomFalsePositive),
		capacity:  capacity,
		blockSize: opt.ArenaBlockSize,
		strict:    opt.StrictCapacity,
		compactAt: opt.CompactionThreshold,
		metrics:   opt.Metrics,
		onEvict:   opt.OnEvict,
	}
}

// fail poisons the shard after an internal invariant violation. Every later
// operation observes corrupted and returns ErrShardCorrupted; masking the
// fault could serve corrupted bytes.
func (s *shard) fail(cause error) error {
	s.corrupted = true
	return errors.Wrapf(ErrShardCorrupted, "%v", cause)
}

func (s *shard) get(key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupted {
		return nil, false, ErrShardCorrupted
	}

	// Fast negative: a filter "no" is authoritative.
	if !s.filter.MightContain(key) {
		s.misses.Add(1)
		s.metrics.Miss()
		return nil, false, nil
	}

	h, ok := s.index.Find(key)
	if !ok {
		// Filter false positive: a defined miss, eviction state untouched.
		s.misses.Add(1)
		s.metrics.Miss()
		return nil, false, nil
	}

	raw, err := s.mem.Load(h)
	if err != nil {
		return nil, false, s.fail(err)
	}
	val := make([]byte, len(raw))
	copy(val, raw)

	s.pol.OnAccess(string(key))
	s.hits.Add(1)
	s.metrics.Hit()
	return val, true, nil
}

func (s *shard) put(key, value []byte) (PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PutResult
	if s.corrupted {
		return res, ErrShardCorrupted
	}
	// Reject oversized values before any state is touched.
	if len(value) > s.blockSize {
		return res, errors.Wrapf(ErrAllocationTooLarge, "%d bytes, block capacity %d", len(value), s.blockSize)
	}

	h, err := s.mem.Store(value)
	if err != nil {
		return res, err
	}

	// The previous span of an overwrite is reclaimed only after eviction
	// settles, so a strict-mode rollback can restore it intact.
	prev, overwrote := s.index.Upsert(key, h)
	if overwrote {
		s.liveBytes += int64(len(value)) - int64(prev.Length)
		s.pol.OnAccess(string(key))
	} else {
		s.liveBytes += int64(len(key)) + int64(len(value))
		s.filter.Add(key)
		s.pol.OnInsert(string(key))
	}

	// Synchronous eviction down to budget. The record being written is
	// pinned for the duration so it can never select itself as victim.
	// Each round removes one entry, so the loop is bounded by the resident
	// population; it stops early when only pinned entries remain and
	// reports pressure instead.
	ks := string(key)
	s.pol.Pin(ks)
	for s.liveBytes > s.capacity {
		victim, ok := s.pol.SelectVictim()
		if !ok {
			res.CapacityPressure = true
			break
		}
		if err := s.evict(victim); err != nil {
			return res, err
		}
		res.EvictionOccurred = true
	}
	s.pol.Unpin(ks)

	if res.CapacityPressure && s.strict {
		// Roll the write back: an overwrite restores the previous record,
		// an insert is removed entirely. The filter bit stays set
		// (accepted stale positive).
		if overwrote {
			s.index.Upsert(key, prev)
			if err := s.mem.Reclaim(h); err != nil {
				return res, s.fail(err)
			}
			s.liveBytes += int64(prev.Length) - int64(len(value))
		} else if h2, ok := s.index.Remove(key); ok {
			if err := s.mem.Reclaim(h2); err != nil {
				return res, s.fail(err)
			}
			s.liveBytes -= int64(len(key)) + int64(h2.Length)
			s.pol.Remove(ks)
		}
		return res, errors.Wrapf(ErrCapacityExhausted, "%d live bytes over %d budget, all candidates pinned", s.liveBytes, s.capacity)
	}

	if overwrote {
		if err := s.mem.Reclaim(prev); err != nil {
			return res, s.fail(err)
		}
	}

	if err := s.maybeCompact(); err != nil {
		return res, err
	}
	s.metrics.Size(s.index.Len(), s.liveBytes)
	return res, nil
}

// evict removes one victim selected by the policy. Called under mu.
func (s *shard) evict(victim string) error {
	vk := []byte(victim)
	h, ok := s.index.Remove(vk)
	if !ok {
		// The policy tracked a key the index does not hold: state diverged.
		return s.fail(errors.Errorf("victim %q missing from index", victim))
	}
	if err := s.mem.Reclaim(h); err != nil {
		return s.fail(err)
	}
	s.liveBytes -= int64(len(vk)) + int64(h.Length)
	s.pol.Remove(victim)
	s.evicts.Add(1)
	s.metrics.Evict()
	if s.onEvict != nil {
		s.onEvict(vk)
	}
	return nil
}

func (s *shard) delete(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupted {
		return false, ErrShardCorrupted
	}

	h, ok := s.index.Remove(key)
	if !ok {
		return false, nil
	}
	if err := s.mem.Reclaim(h); err != nil {
		return false, s.fail(err)
	}
	s.liveBytes -= int64(len(key)) + int64(h.Length)
	s.pol.Remove(string(key))

	// The filter is not updated; its stale positive persists until the
	// deletion counter forces a rebuild from the live key set.
	s.deletes++
	if s.deletes >= minFilterRebuildDeletes && s.deletes > s.index.Len() {
		s.rebuildFilter()
	}

	if err := s.maybeCompact(); err != nil {
		return true, err
	}
	s.metrics.Size(s.index.Len(), s.liveBytes)
	return true, nil
}

// rebuildFilter resets the Bloom filter and re-adds every live key,
// shedding the false positives accumulated by deletions. Called under mu.
func (s *shard) rebuildFilter() {
	s.filter.Reset()
	for it := s.index.Seek(nil); it.Valid(); it.Next() {
		s.filter.Add(it.Key())
	}
	s.deletes = 0
	s.rebuilds.Add(1)
	s.metrics.FilterRebuild()
}

// maybeCompact rewrites the most fragmented full block, if any, and points
// the index at the relocated spans before the old block is freed. Called
// under mu.
func (s *shard) maybeCompact() error {
	id, ok := s.mem.FragmentedBlock(s.compactAt)
	if !ok {
		return nil
	}
	remap, err := s.mem.Compact(id)
	if err != nil {
		return s.fail(err)
	}
	s.index.RemapHandles(remap)
	s.compacts.Add(1)
	s.metrics.Compaction()
	return nil
}

func (s *shard) pin(key []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted {
		return false
	}
	return s.pol.Pin(string(key))
}

func (s *shard) unpin(key []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted {
		return false
	}
	return s.pol.Unpin(string(key))
}

func (s *shard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

func (s *shard) bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveBytes
}

// nextEntry returns a copy of the first record with key > after (>= after
// when inclusive) and, if end is non-empty, key < end. Range reads do not
// touch eviction state. The cursor re-seeks by key on every call, so it
// stays correct under concurrent mutation between calls.
func (s *shard) nextEntry(after []byte, inclusive bool, end []byte) (k, v []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupted {
		return nil, nil, false, ErrShardCorrupted
	}

	var it *skiplist.Iterator
	if inclusive {
		it = s.index.Seek(after)
	} else {
		it = s.index.SeekAfter(after)
	}
	if !it.Valid() {
		return nil, nil, false, nil
	}
	key := it.Key()
	if len(end) > 0 && bytes.Compare(key, end) >= 0 {
		return nil, nil, false, nil
	}

	raw, lerr := s.mem.Load(it.Handle())
	if lerr != nil {
		return nil, nil, false, s.fail(lerr)
	}

	k = make([]byte, len(key))
	copy(k, key)
	v = make([]byte, len(raw))
	copy(v, raw)
	return k, v, true, nil
}
