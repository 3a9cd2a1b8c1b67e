// Package arena implements an append-only allocator over fixed-capacity
// blocks. Record bytes are copied in at a monotonically advancing write
// cursor and addressed through stable handles; freed spans are only marked
// dead and reclaimed in bulk when a block is compacted.
package arena

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrAllocationTooLarge is returned by Store when a single record
	// exceeds the configured block capacity.
	ErrAllocationTooLarge = errors.New("arena: allocation exceeds block capacity")

	// ErrInvalidHandle is returned when a handle references a freed block,
	// a reclaimed span, or a range outside the block's written region.
	// Callers treat it as an internal-consistency fault.
	ErrInvalidHandle = errors.New("arena: invalid handle")
)

// Handle addresses one stored record. It is only meaningful to the Arena
// that issued it and stays valid until its span is reclaimed or its block
// compacted away.
type Handle struct {
	Block  uint32
	Offset uint32
	Length uint32
}

// span tracks one allocation inside a block. Spans are recorded in write
// order, so the slice is sorted by offset.
type span struct {
	offset uint32
	length uint32
	live   bool
}

type block struct {
	id     uint32
	buf    []byte
	cursor uint32 // next write offset
	live   uint32 // live byte count, drops on Reclaim
	spans  []span
	freed  bool
}

// findSpan locates the live span starting at offset, or -1.
func (b *block) findSpan(offset uint32) int {
	i := sort.Search(len(b.spans), func(i int) bool { return b.spans[i].offset >= offset })
	if i < len(b.spans) && b.spans[i].offset == offset {
		return i
	}
	return -1
}

// Arena allocates from a chain of fixed-capacity blocks. It is not safe for
// concurrent use; the owning shard serializes access under its lock.
type Arena struct {
	blockSize uint32
	blocks    map[uint32]*block
	current   *block
	nextID    uint32
}

// New returns an arena whose blocks hold blockSize bytes each.
func New(blockSize int) *Arena {
	a := &Arena{
		blockSize: uint32(blockSize),
		blocks:    make(map[uint32]*block),
	}
	a.current = a.newBlock()
	return a
}

func (a *Arena) newBlock() *block {
	b := &block{
		id:  a.nextID,
		buf: make([]byte, a.blockSize),
	}
	a.nextID++
	a.blocks[b.id] = b
	return b
}

// Store copies p into the current block and returns its handle. When the
// current block cannot fit p, a fresh block is started. A record larger
// than one block fails with ErrAllocationTooLarge and mutates nothing.
func (a *Arena) Store(p []byte) (Handle, error) {
	n := uint32(len(p))
	if n > a.blockSize {
		return Handle{}, errors.Wrapf(ErrAllocationTooLarge, "%d bytes, block capacity %d", n, a.blockSize)
	}
	if n == 0 {
		// Zero-length records occupy no span; their handles resolve
		// regardless of block lifetime, so compaction never remaps them.
		return Handle{Block: a.current.id, Offset: a.current.cursor}, nil
	}

	b := a.current
	if b.cursor+n > a.blockSize {
		b = a.newBlock()
		a.current = b
	}

	off := b.cursor
	copy(b.buf[off:off+n], p)
	b.cursor += n
	b.live += n
	b.spans = append(b.spans, span{offset: off, length: n, live: true})

	return Handle{Block: b.id, Offset: off, Length: n}, nil
}

// Load resolves h to a read-only view of the stored bytes. The view aliases
// arena memory and is invalidated by Compact; callers that retain bytes
// across the shard lock must copy.
func (a *Arena) Load(h Handle) ([]byte, error) {
	// Zero-length handles stay valid even after their block is compacted
	// away; they reference no bytes.
	if h.Length == 0 {
		return []byte{}, nil
	}
	b, ok := a.blocks[h.Block]
	if !ok || b.freed {
		return nil, errors.Wrapf(ErrInvalidHandle, "block %d reclaimed", h.Block)
	}
	if h.Offset+h.Length > b.cursor {
		return nil, errors.Wrapf(ErrInvalidHandle, "span [%d,%d) beyond cursor %d", h.Offset, h.Offset+h.Length, b.cursor)
	}
	i := b.findSpan(h.Offset)
	if i < 0 || b.spans[i].length != h.Length || !b.spans[i].live {
		return nil, errors.Wrapf(ErrInvalidHandle, "span at %d reclaimed or unknown", h.Offset)
	}
	return b.buf[h.Offset : h.Offset+h.Length : h.Offset+h.Length], nil
}

// Reclaim marks h's span as dead and lowers the block's live byte count.
// The space is not reused until the block is compacted.
func (a *Arena) Reclaim(h Handle) error {
	if h.Length == 0 {
		return nil
	}
	b, ok := a.blocks[h.Block]
	if !ok || b.freed {
		return errors.Wrapf(ErrInvalidHandle, "block %d reclaimed", h.Block)
	}
	i := b.findSpan(h.Offset)
	if i < 0 || b.spans[i].length != h.Length || !b.spans[i].live {
		return errors.Wrapf(ErrInvalidHandle, "span at %d already reclaimed or unknown", h.Offset)
	}
	b.spans[i].live = false
	b.live -= h.Length
	return nil
}

// Compact copies every live span of the given block into a fresh block in
// the original relative order and frees the old one. It returns the old
// handle -> new handle mapping so the index can be rewritten before any
// further lookup.
func (a *Arena) Compact(blockID uint32) (map[Handle]Handle, error) {
	old, ok := a.blocks[blockID]
	if !ok || old.freed {
		return nil, errors.Wrapf(ErrInvalidHandle, "block %d reclaimed", blockID)
	}

	fresh := a.newBlock()
	remap := make(map[Handle]Handle)
	for _, s := range old.spans {
		if !s.live {
			continue
		}
		off := fresh.cursor
		copy(fresh.buf[off:off+s.length], old.buf[s.offset:s.offset+s.length])
		fresh.cursor += s.length
		fresh.live += s.length
		fresh.spans = append(fresh.spans, span{offset: off, length: s.length, live: true})

		remap[Handle{Block: old.id, Offset: s.offset, Length: s.length}] =
			Handle{Block: fresh.id, Offset: off, Length: s.length}
	}

	old.freed = true
	old.buf = nil
	old.spans = nil
	delete(a.blocks, old.id)

	if a.current == old {
		a.current = fresh
	}
	return remap, nil
}

// FragmentedBlock reports the block with the lowest live ratio strictly
// below threshold, excluding the current write block (it is still filling).
// Returns false when no block qualifies.
func (a *Arena) FragmentedBlock(threshold float64) (uint32, bool) {
	bestID, bestRatio, found := uint32(0), threshold, false
	for id, b := range a.blocks {
		if b == a.current || b.freed || b.cursor == 0 {
			continue
		}
		ratio := float64(b.live) / float64(b.cursor)
		if ratio < bestRatio {
			bestID, bestRatio, found = id, ratio, true
		}
	}
	return bestID, found
}

// LiveBytes returns the total bytes still referenced by live spans.
func (a *Arena) LiveBytes() int64 {
	var n int64
	for _, b := range a.blocks {
		n += int64(b.live)
	}
	return n
}

// OccupiedBytes returns the total written bytes, dead spans included.
// The gap between this and LiveBytes is the fragmentation compaction
// will win back.
func (a *Arena) OccupiedBytes() int64 {
	var n int64
	for _, b := range a.blocks {
		n += int64(b.cursor)
	}
	return n
}

// Blocks returns the number of resident blocks.
func (a *Arena) Blocks() int { return len(a.blocks) }
