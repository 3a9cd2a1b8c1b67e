// Package lru implements a pure Least-Recently-Used eviction policy. It is
// the frequency-blind alternative to the default hybrid policy: useful when
// the workload has no stable hot set and recency alone is the best signal.
package lru

import (
	"container/list"

	"github.com/IvanBrykalov/memtier/policy"
)

type entry struct {
	key  string
	pins int
	elem *list.Element
}

type lru struct {
	entries map[string]*entry
	order   *list.List // Front = MRU, Back = LRU
}

type lruPolicy struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New() policy.Policy { return lruPolicy{} }

func (lruPolicy) New() policy.ShardPolicy {
	return &lru{
		entries: make(map[string]*entry),
		order:   list.New(),
	}
}

// OnInsert places the key at MRU.
func (p *lru) OnInsert(key string) {
	if e, ok := p.entries[key]; ok {
		p.order.MoveToFront(e.elem)
		return
	}
	e := &entry{key: key}
	e.elem = p.order.PushFront(e)
	p.entries[key] = e
}

// OnAccess promotes the key to MRU.
func (p *lru) OnAccess(key string) {
	if e, ok := p.entries[key]; ok {
		p.order.MoveToFront(e.elem)
	}
}

func (p *lru) Pin(key string) bool {
	e, ok := p.entries[key]
	if !ok {
		return false
	}
	e.pins++
	return true
}

func (p *lru) Unpin(key string) bool {
	e, ok := p.entries[key]
	if !ok {
		return false
	}
	if e.pins > 0 {
		e.pins--
	}
	return true
}

// SelectVictim returns the least recently used unpinned key.
func (p *lru) SelectVictim() (string, bool) {
	for el := p.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.pins == 0 {
			return e.key, true
		}
	}
	return "", false
}

func (p *lru) Remove(key string) {
	e, ok := p.entries[key]
	if !ok {
		return
	}
	p.order.Remove(e.elem)
	delete(p.entries, key)
}

func (p *lru) Len() int { return len(p.entries) }
