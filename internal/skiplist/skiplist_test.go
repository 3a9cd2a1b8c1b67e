package skiplist

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/memtier/internal/arena"
)

func h(n uint32) arena.Handle { return arena.Handle{Block: n, Offset: n, Length: n} }

func TestSkipList_UpsertFindRemove(t *testing.T) {
	t.Parallel()

	s := New(12)
	_, replaced := s.Upsert([]byte("b"), h(1))
	require.False(t, replaced)
	_, replaced = s.Upsert([]byte("a"), h(2))
	require.False(t, replaced)

	got, ok := s.Find([]byte("b"))
	require.True(t, ok)
	require.Equal(t, h(1), got)

	// Upsert on an existing key swaps the handle and returns the old one.
	old, replaced := s.Upsert([]byte("b"), h(3))
	require.True(t, replaced)
	require.Equal(t, h(1), old)
	got, _ = s.Find([]byte("b"))
	require.Equal(t, h(3), got)
	require.Equal(t, 2, s.Len())

	old, ok = s.Remove([]byte("b"))
	require.True(t, ok)
	require.Equal(t, h(3), old)
	_, ok = s.Find([]byte("b"))
	require.False(t, ok)
	require.Equal(t, 1, s.Len())

	_, ok = s.Remove([]byte("missing"))
	require.False(t, ok)
}

// Level-0 traversal must stay strictly ascending with no duplicates under
// a randomized insert/overwrite/delete workload.
func TestSkipList_OrderingUnderChurn(t *testing.T) {
	t.Parallel()

	s := New(14)
	r := rand.New(rand.NewSource(42))
	live := map[string]bool{}

	for i := 0; i < 5000; i++ {
		k := fmt.Sprintf("key:%04d", r.Intn(800))
		switch r.Intn(3) {
		case 0:
			s.Remove([]byte(k))
			delete(live, k)
		default:
			s.Upsert([]byte(k), h(uint32(i)))
			live[k] = true
		}
	}
	require.Equal(t, len(live), s.Len())

	want := make([]string, 0, len(live))
	for k := range live {
		want = append(want, k)
	}
	sort.Strings(want)

	var got []string
	for it := s.Seek(nil); it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, want, got)
}

func TestSkipList_Seek(t *testing.T) {
	t.Parallel()

	s := New(12)
	for _, k := range []string{"a", "c", "e", "g"} {
		s.Upsert([]byte(k), h(1))
	}

	it := s.Seek([]byte("c"))
	require.True(t, it.Valid())
	require.Equal(t, "c", string(it.Key()))

	it = s.Seek([]byte("d")) // between keys: first >= start
	require.True(t, it.Valid())
	require.Equal(t, "e", string(it.Key()))

	it = s.SeekAfter([]byte("c")) // strictly greater
	require.True(t, it.Valid())
	require.Equal(t, "e", string(it.Key()))

	it = s.Seek([]byte("z"))
	require.False(t, it.Valid())

	// Empty list: any seek is immediately exhausted.
	empty := New(12)
	require.False(t, empty.Seek(nil).Valid())
}

func TestSkipList_RemapHandles(t *testing.T) {
	t.Parallel()

	s := New(12)
	s.Upsert([]byte("a"), h(1))
	s.Upsert([]byte("b"), h(2))
	s.Upsert([]byte("c"), h(3))

	s.RemapHandles(map[arena.Handle]arena.Handle{
		h(1): h(10),
		h(3): h(30),
	})

	got, _ := s.Find([]byte("a"))
	require.Equal(t, h(10), got)
	got, _ = s.Find([]byte("b"))
	require.Equal(t, h(2), got) // untouched
	got, _ = s.Find([]byte("c"))
	require.Equal(t, h(30), got)
}

// Removed slots are recycled through the free list instead of growing the
// node pool forever.
func TestSkipList_PoolReuse(t *testing.T) {
	t.Parallel()

	s := New(12)
	for i := 0; i < 64; i++ {
		s.Upsert([]byte(fmt.Sprintf("k%02d", i)), h(uint32(i)))
	}
	poolSize := len(s.nodes)
	for i := 0; i < 64; i++ {
		s.Remove([]byte(fmt.Sprintf("k%02d", i)))
	}
	for i := 0; i < 64; i++ {
		s.Upsert([]byte(fmt.Sprintf("r%02d", i)), h(uint32(i)))
	}
	require.Equal(t, poolSize, len(s.nodes))
}
