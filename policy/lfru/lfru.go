// Package lfru implements the default hybrid frequency/recency eviction
// policy. Keys are partitioned into frequency buckets (bucket f holds keys
// with exactly f recorded accesses); each bucket keeps its keys in recency
// order, most recent at the front. Victims come from the lowest non-empty
// bucket, least recent first, which shields hot keys from single-pass scans
// without LFU's cold-start starvation.
package lfru

import (
	"container/list"
	"sort"

	"github.com/IvanBrykalov/memtier/policy"
)

type entry struct {
	key  string
	freq int
	pins int
	elem *list.Element
}

type lfru struct {
	entries map[string]*entry
	// buckets[f]: Front = most recently used at frequency f.
	buckets map[int]*list.List
}

type lfruPolicy struct{}

// New returns a Policy factory that constructs per-shard hybrid instances.
func New() policy.Policy { return lfruPolicy{} }

func (lfruPolicy) New() policy.ShardPolicy {
	return &lfru{
		entries: make(map[string]*entry),
		buckets: make(map[int]*list.List),
	}
}

func (p *lfru) bucket(f int) *list.List {
	l, ok := p.buckets[f]
	if !ok {
		l = list.New()
		p.buckets[f] = l
	}
	return l
}

// detach removes e from its current bucket, dropping the bucket when it
// empties so victim scans never visit dead frequencies.
func (p *lfru) detach(e *entry) {
	l := p.buckets[e.freq]
	l.Remove(e.elem)
	if l.Len() == 0 {
		delete(p.buckets, e.freq)
	}
}

// OnInsert places a new key in bucket 1 at the most-recent position.
// Re-inserting a tracked key is treated as an access.
func (p *lfru) OnInsert(key string) {
	if _, ok := p.entries[key]; ok {
		p.OnAccess(key)
		return
	}
	e := &entry{key: key, freq: 1}
	e.elem = p.bucket(1).PushFront(e)
	p.entries[key] = e
}

// OnAccess bumps the key's frequency by one and makes it the most recent
// entry of its new bucket. Unknown keys are ignored.
func (p *lfru) OnAccess(key string) {
	e, ok := p.entries[key]
	if !ok {
		return
	}
	p.detach(e)
	e.freq++
	e.elem = p.bucket(e.freq).PushFront(e)
}

// Pin marks the key unevictable until a matching Unpin.
func (p *lfru) Pin(key string) bool {
	e, ok := p.entries[key]
	if !ok {
		return false
	}
	e.pins++
	return true
}

// Unpin releases one pin. Unpinning below zero is clamped.
func (p *lfru) Unpin(key string) bool {
	e, ok := p.entries[key]
	if !ok {
		return false
	}
	if e.pins > 0 {
		e.pins--
	}
	return true
}

// SelectVictim scans frequency buckets from lowest to highest and returns
// the least-recently-used unpinned key of the first bucket that has one.
func (p *lfru) SelectVictim() (string, bool) {
	freqs := make([]int, 0, len(p.buckets))
	for f := range p.buckets {
		freqs = append(freqs, f)
	}
	sort.Ints(freqs)

	for _, f := range freqs {
		for el := p.buckets[f].Back(); el != nil; el = el.Prev() {
			e := el.Value.(*entry)
			if e.pins == 0 {
				return e.key, true
			}
		}
	}
	return "", false
}

// Remove forgets the key entirely, pinned or not.
func (p *lfru) Remove(key string) {
	e, ok := p.entries[key]
	if !ok {
		return
	}
	p.detach(e)
	delete(p.entries, key)
}

// Len returns the number of tracked keys.
func (p *lfru) Len() int { return len(p.entries) }
