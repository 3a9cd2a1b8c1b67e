// Package twoq implements the 2Q eviction policy on the shard contract.
//
// Resident queues:
//   - A1in (younger queue) admits first-time keys; scan traffic dies here.
//   - Am (mature queue) holds keys that proved reuse.
//
// Ghost A1out keeps recently evicted A1in keys (keys only, no values) so a
// quick re-insert bypasses A1in and lands directly in Am.
//
// Concurrency: all methods are called under the shard lock.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/memtier/policy"
)

type queue uint8

const (
	queueIn queue = iota
	queueMain
)

type entry struct {
	key  string
	q    queue
	pins int
	elem *list.Element
}

type twoQ struct {
	capGhost int

	entries map[string]*entry

	// MRU at Front() -> LRU at Back() for all three lists.
	in    *list.List
	main  *list.List
	ghost *list.List
	// key -> element in ghost (element.Value is the key string)
	ghostIdx map[string]*list.Element
}

type twoQPolicy struct{ capGhost int }

// New constructs a 2Q policy factory. capGhost bounds the ghost queue;
// a common choice is 50-100% of the per-shard entry count.
func New(capGhost int) policy.Policy {
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy{capGhost: capGhost}
}

func (p twoQPolicy) New() policy.ShardPolicy {
	return &twoQ{
		capGhost: p.capGhost,
		entries:  make(map[string]*entry),
		in:       list.New(),
		main:     list.New(),
		ghost:    list.New(),
		ghostIdx: make(map[string]*list.Element),
	}
}

// OnInsert admits a first-time key into A1in. A key remembered by the ghost
// queue gets its second chance: straight into Am at MRU.
func (q *twoQ) OnInsert(key string) {
	if e, ok := q.entries[key]; ok {
		q.promote(e)
		return
	}
	e := &entry{key: key}
	if ge, ok := q.ghostIdx[key]; ok {
		q.ghost.Remove(ge)
		delete(q.ghostIdx, key)
		e.q = queueMain
		e.elem = q.main.PushFront(e)
	} else {
		e.q = queueIn
		e.elem = q.in.PushFront(e)
	}
	q.entries[key] = e
}

// OnAccess promotes A1in keys into Am and refreshes recency in Am.
func (q *twoQ) OnAccess(key string) {
	if e, ok := q.entries[key]; ok {
		q.promote(e)
	}
}

func (q *twoQ) promote(e *entry) {
	if e.q == queueIn {
		q.in.Remove(e.elem)
		e.q = queueMain
		e.elem = q.main.PushFront(e)
		return
	}
	q.main.MoveToFront(e.elem)
}

func (q *twoQ) Pin(key string) bool {
	e, ok := q.entries[key]
	if !ok {
		return false
	}
	e.pins++
	return true
}

func (q *twoQ) Unpin(key string) bool {
	e, ok := q.entries[key]
	if !ok {
		return false
	}
	if e.pins > 0 {
		e.pins--
	}
	return true
}

// SelectVictim drains the younger queue first (LRU end, unpinned only) and
// falls back to the mature queue.
func (q *twoQ) SelectVictim() (string, bool) {
	for _, l := range []*list.List{q.in, q.main} {
		for el := l.Back(); el != nil; el = el.Prev() {
			e := el.Value.(*entry)
			if e.pins == 0 {
				return e.key, true
			}
		}
	}
	return "", false
}

// Remove forgets the key. Keys leaving A1in are remembered in the ghost
// queue; removals from Am are not.
func (q *twoQ) Remove(key string) {
	e, ok := q.entries[key]
	if !ok {
		return
	}
	switch e.q {
	case queueIn:
		q.in.Remove(e.elem)
		q.remember(key)
	case queueMain:
		q.main.Remove(e.elem)
	}
	delete(q.entries, key)
}

// remember inserts the key at the ghost MRU and trims overflow.
func (q *twoQ) remember(key string) {
	if old, ok := q.ghostIdx[key]; ok {
		q.ghost.Remove(old)
	}
	q.ghostIdx[key] = q.ghost.PushFront(key)

	for q.ghost.Len() > q.capGhost {
		tail := q.ghost.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(string))
		q.ghost.Remove(tail)
	}
}

func (q *twoQ) Len() int { return len(q.entries) }
