// Package skiplist implements the ordered index mapping keys to arena
// handles. Forward links are indices into a node pool rather than pointers,
// so removed slots can be recycled and the structure stays cheap to walk.
// Keys are compared byte-lexicographically.
package skiplist

import (
	"bytes"
	"math/rand"
	"time"

	"github.com/IvanBrykalov/memtier/internal/arena"
)

// promotion probability is 1/2: each node reaches level l+1 with the odds
// of l consecutive coin flips.
const promotionDenominator = 2

// node index 0 is the head sentinel; a next link of 0 means "end of level".
type node struct {
	key    []byte
	handle arena.Handle
	next   []int32
}

// SkipList is a probabilistically balanced ordered map. It is not safe for
// concurrent use; the owning shard serializes access under its lock.
type SkipList struct {
	nodes    []node
	free     []int32 // recycled pool slots
	maxLevel int
	level    int // highest level currently populated
	length   int
	rng      *rand.Rand
}

// New returns an empty list. maxLevel caps node promotion; it is typically
// derived from log2 of the expected entry count and must be at least 1.
func New(maxLevel int) *SkipList {
	if maxLevel < 1 {
		maxLevel = 1
	}
	s := &SkipList{
		maxLevel: maxLevel,
		level:    1,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.nodes = append(s.nodes, node{next: make([]int32, maxLevel)})
	return s
}

// findPrev fills prev with the rightmost node index strictly before key at
// every level and returns the level-0 candidate (first node >= key, 0 if none).
func (s *SkipList) findPrev(key []byte, prev []int32) int32 {
	x := int32(0)
	for i := s.level - 1; i >= 0; i-- {
		for {
			nxt := s.nodes[x].next[i]
			if nxt == 0 || bytes.Compare(s.nodes[nxt].key, key) >= 0 {
				break
			}
			x = nxt
		}
		prev[i] = x
	}
	return s.nodes[prev[0]].next[0]
}

func (s *SkipList) randLevel() int {
	lvl := 1
	for lvl < s.maxLevel && s.rng.Intn(promotionDenominator) == 0 {
		lvl++
	}
	return lvl
}

func (s *SkipList) alloc(key []byte, h arena.Handle, lvl int) int32 {
	k := make([]byte, len(key))
	copy(k, key)

	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		nd := &s.nodes[idx]
		nd.key = k
		nd.handle = h
		if cap(nd.next) >= lvl {
			nd.next = nd.next[:lvl]
			for i := range nd.next {
				nd.next[i] = 0
			}
		} else {
			nd.next = make([]int32, lvl)
		}
		return idx
	}
	s.nodes = append(s.nodes, node{key: k, handle: h, next: make([]int32, lvl)})
	return int32(len(s.nodes) - 1)
}

// Upsert inserts key with the given handle, or replaces the handle of an
// existing node. It returns the previous handle when the key was already
// present; reclaiming it is the caller's job. A node's level is fixed at
// insertion and never changes.
func (s *SkipList) Upsert(key []byte, h arena.Handle) (prev arena.Handle, replaced bool) {
	prevs := make([]int32, s.maxLevel)
	cand := s.findPrev(key, prevs)
	if cand != 0 && bytes.Equal(s.nodes[cand].key, key) {
		old := s.nodes[cand].handle
		s.nodes[cand].handle = h
		return old, true
	}

	lvl := s.randLevel()
	if lvl > s.level {
		for i := s.level; i < lvl; i++ {
			prevs[i] = 0
		}
		s.level = lvl
	}

	idx := s.alloc(key, h, lvl)
	for i := 0; i < lvl; i++ {
		s.nodes[idx].next[i] = s.nodes[prevs[i]].next[i]
		s.nodes[prevs[i]].next[i] = idx
	}
	s.length++
	return arena.Handle{}, false
}

// Find returns the handle stored for key.
func (s *SkipList) Find(key []byte) (arena.Handle, bool) {
	prevs := make([]int32, s.maxLevel)
	cand := s.findPrev(key, prevs)
	if cand != 0 && bytes.Equal(s.nodes[cand].key, key) {
		return s.nodes[cand].handle, true
	}
	return arena.Handle{}, false
}

// Remove unlinks key from every level it participates in and returns its
// last handle for reclamation.
func (s *SkipList) Remove(key []byte) (arena.Handle, bool) {
	prevs := make([]int32, s.maxLevel)
	cand := s.findPrev(key, prevs)
	if cand == 0 || !bytes.Equal(s.nodes[cand].key, key) {
		return arena.Handle{}, false
	}

	nd := &s.nodes[cand]
	for i := range nd.next {
		if s.nodes[prevs[i]].next[i] == cand {
			s.nodes[prevs[i]].next[i] = nd.next[i]
		}
	}
	h := nd.handle
	nd.key = nil
	nd.handle = arena.Handle{}
	s.free = append(s.free, cand)
	s.length--

	for s.level > 1 && s.nodes[0].next[s.level-1] == 0 {
		s.level--
	}
	return h, true
}

// RemapHandles rewrites node handles after an arena compaction. Every node
// whose handle appears as a key in remap is pointed at the new location.
func (s *SkipList) RemapHandles(remap map[arena.Handle]arena.Handle) {
	for x := s.nodes[0].next[0]; x != 0; x = s.nodes[x].next[0] {
		if nh, ok := remap[s.nodes[x].handle]; ok {
			s.nodes[x].handle = nh
		}
	}
}

// Len returns the number of keys in the list.
func (s *SkipList) Len() int { return s.length }

// Iterator is a forward level-0 cursor. It is only valid while the owning
// shard lock is held; cross-lock traversal re-seeks by key instead.
type Iterator struct {
	s   *SkipList
	cur int32
}

// Seek positions an iterator at the first node >= start. A nil or empty
// start begins at the smallest key.
func (s *SkipList) Seek(start []byte) *Iterator {
	if len(start) == 0 {
		return &Iterator{s: s, cur: s.nodes[0].next[0]}
	}
	prevs := make([]int32, s.maxLevel)
	cand := s.findPrev(start, prevs)
	return &Iterator{s: s, cur: cand}
}

// SeekAfter positions an iterator at the first node with key > after.
func (s *SkipList) SeekAfter(after []byte) *Iterator {
	it := s.Seek(after)
	if it.Valid() && bytes.Equal(it.Key(), after) {
		it.Next()
	}
	return it
}

// Valid reports whether the iterator points at a node.
func (it *Iterator) Valid() bool { return it.cur != 0 }

// Next advances to the following node in key order.
func (it *Iterator) Next() { it.cur = it.s.nodes[it.cur].next[0] }

// Key returns the current node's key. The slice is owned by the list.
func (it *Iterator) Key() []byte { return it.s.nodes[it.cur].key }

// Handle returns the current node's arena handle.
func (it *Iterator) Handle() arena.Handle { return it.s.nodes[it.cur].handle }
