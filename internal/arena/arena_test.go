package arena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArena_StoreLoad(t *testing.T) {
	t.Parallel()

	a := New(1024)
	h1, err := a.Store([]byte("hello"))
	require.NoError(t, err)
	h2, err := a.Store([]byte("world"))
	require.NoError(t, err)

	v1, err := a.Load(h1)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v1)

	v2, err := a.Load(h2)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), v2)

	require.EqualValues(t, 10, a.LiveBytes())
	require.EqualValues(t, 10, a.OccupiedBytes())
}

// A record that cannot fit in the current block rolls over to a fresh one;
// a record larger than any block is rejected outright.
func TestArena_BlockRollover(t *testing.T) {
	t.Parallel()

	a := New(8)
	h1, err := a.Store([]byte("aaaaaa")) // 6 of 8 bytes
	require.NoError(t, err)
	h2, err := a.Store([]byte("bbbb")) // does not fit, new block
	require.NoError(t, err)
	require.NotEqual(t, h1.Block, h2.Block)
	require.Equal(t, 2, a.Blocks())

	_, err = a.Store(bytes.Repeat([]byte("x"), 9))
	require.ErrorIs(t, err, ErrAllocationTooLarge)
	// The failed store must not have advanced anything.
	require.EqualValues(t, 10, a.OccupiedBytes())
}

func TestArena_Reclaim(t *testing.T) {
	t.Parallel()

	a := New(64)
	h, err := a.Store([]byte("gone"))
	require.NoError(t, err)
	require.NoError(t, a.Reclaim(h))
	require.EqualValues(t, 0, a.LiveBytes())
	require.EqualValues(t, 4, a.OccupiedBytes()) // space not reused yet

	_, err = a.Load(h)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.ErrorIs(t, a.Reclaim(h), ErrInvalidHandle) // double reclaim
}

func TestArena_ZeroLengthRecord(t *testing.T) {
	t.Parallel()

	a := New(64)
	h, err := a.Store(nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, h.Length)

	v, err := a.Load(h)
	require.NoError(t, err)
	require.Empty(t, v)
	require.NoError(t, a.Reclaim(h))
}

// A zero-length handle has no span to relocate, so it must keep resolving
// after the block it was issued against is compacted away.
func TestArena_ZeroLengthSurvivesCompaction(t *testing.T) {
	t.Parallel()

	a := New(8)
	hEmpty, err := a.Store(nil)
	require.NoError(t, err)
	hDead, err := a.Store([]byte("aaaaaaaa")) // fills block 0
	require.NoError(t, err)
	_, err = a.Store([]byte("b")) // block 1 becomes current
	require.NoError(t, err)

	require.NoError(t, a.Reclaim(hDead))
	remap, err := a.Compact(hDead.Block)
	require.NoError(t, err)
	require.NotContains(t, remap, hEmpty)

	v, err := a.Load(hEmpty)
	require.NoError(t, err)
	require.Empty(t, v)
	require.NoError(t, a.Reclaim(hEmpty))
}

// Compaction must preserve every live record byte-for-byte, drop dead
// spans, and invalidate old handles.
func TestArena_Compact(t *testing.T) {
	t.Parallel()

	a := New(64)
	hKeep1, err := a.Store([]byte("keep-1"))
	require.NoError(t, err)
	hDead, err := a.Store([]byte("dead"))
	require.NoError(t, err)
	hKeep2, err := a.Store([]byte("keep-2"))
	require.NoError(t, err)
	require.NoError(t, a.Reclaim(hDead))

	remap, err := a.Compact(hKeep1.Block)
	require.NoError(t, err)
	require.Len(t, remap, 2)

	n1, ok := remap[hKeep1]
	require.True(t, ok)
	n2, ok := remap[hKeep2]
	require.True(t, ok)

	v1, err := a.Load(n1)
	require.NoError(t, err)
	require.Equal(t, []byte("keep-1"), v1)
	v2, err := a.Load(n2)
	require.NoError(t, err)
	require.Equal(t, []byte("keep-2"), v2)

	// Relative order survives and the dead gap is squeezed out.
	require.Equal(t, n1.Block, n2.Block)
	require.Less(t, n1.Offset, n2.Offset)
	require.EqualValues(t, n1.Offset+n1.Length, n2.Offset)

	// Old handles now point at a reclaimed block.
	_, err = a.Load(hKeep1)
	require.ErrorIs(t, err, ErrInvalidHandle)

	require.EqualValues(t, 12, a.LiveBytes())
	require.EqualValues(t, 12, a.OccupiedBytes())
}

func TestArena_FragmentedBlock(t *testing.T) {
	t.Parallel()

	a := New(8)
	h1, err := a.Store([]byte("aaaaaaaa")) // fills block 0
	require.NoError(t, err)
	_, err = a.Store([]byte("b")) // block 1 becomes current
	require.NoError(t, err)

	// Block 0 is fully live: nothing to compact.
	_, ok := a.FragmentedBlock(0.5)
	require.False(t, ok)

	require.NoError(t, a.Reclaim(h1))
	id, ok := a.FragmentedBlock(0.5)
	require.True(t, ok)
	require.Equal(t, h1.Block, id)

	// Compacting a fully dead block yields an empty mapping.
	remap, err := a.Compact(id)
	require.NoError(t, err)
	require.Empty(t, remap)
}
