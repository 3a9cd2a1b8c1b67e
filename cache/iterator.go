package cache

import "bytes"

// Iterator is a lazy ascending cursor over [start, end) merged across all
// shards. It materializes one record per shard at a time: each advance
// re-seeks the source shard by the last key it produced, briefly taking
// that shard's lock. The cursor therefore stays valid under concurrent
// mutation; records inserted or deleted mid-scan in not-yet-visited
// positions may or may not be observed, which is the usual contract for a
// live ordered scan.
//
// Usage:
//
//	it := c.Range(start, end)
//	for it.Next() {
//	    use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	cursors []*shardCursor
	key     []byte
	value   []byte
	err     error
	started bool
	done    bool
}

// shardCursor tracks one shard's position by key, not by node, so the
// underlying skip list is free to mutate between advances.
type shardCursor struct {
	s    *shard
	end  []byte
	last []byte // last key handed to the merge; nil until primed
	k, v []byte // buffered head record
	ok   bool
}

func newIterator(c *memtier, start, end []byte) *Iterator {
	it := &Iterator{}
	// start > end is a defined empty range, not an error.
	if len(start) > 0 && len(end) > 0 && bytes.Compare(start, end) > 0 {
		it.done = true
		return it
	}
	it.cursors = make([]*shardCursor, len(c.shards))
	for i, s := range c.shards {
		it.cursors[i] = &shardCursor{s: s, end: end, last: start}
	}
	return it
}

// advance refills the cursor's buffered record with the next key after its
// current position.
func (sc *shardCursor) advance(inclusive bool) error {
	k, v, ok, err := sc.s.nextEntry(sc.last, inclusive, sc.end)
	if err != nil {
		return err
	}
	sc.k, sc.v, sc.ok = k, v, ok
	if ok {
		sc.last = k
	}
	return nil
}

// Next advances to the following record. It returns false at the end of
// the range or on error; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	if !it.started {
		it.started = true
		for _, sc := range it.cursors {
			if err := sc.advance(true); err != nil {
				it.err = err
				return false
			}
		}
	}

	// Pick the smallest buffered key across shards. Shards partition the
	// keyspace, so no two cursors ever buffer the same key.
	var min *shardCursor
	for _, sc := range it.cursors {
		if !sc.ok {
			continue
		}
		if min == nil || bytes.Compare(sc.k, min.k) < 0 {
			min = sc
		}
	}
	if min == nil {
		it.done = true
		return false
	}

	it.key, it.value = min.k, min.v
	// A failed refill must not swallow the record already buffered; the
	// error surfaces on the following Next via the check at the top.
	if err := min.advance(false); err != nil {
		it.err = err
	}
	return true
}

// Key returns the current record's key. Valid after a true Next; the slice
// is owned by the caller.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current record's value.
func (it *Iterator) Value() []byte { return it.value }

// Err reports the first failure encountered while scanning.
func (it *Iterator) Err() error { return it.err }
