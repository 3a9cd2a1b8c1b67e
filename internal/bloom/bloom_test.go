package bloom

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// Every added key must answer true: the filter may lie about presence,
// never about absence.
func TestFilter_NoFalseNegatives(t *testing.T) {
	t.Parallel()

	f := New(10_000, 0.01)
	for i := 0; i < 10_000; i++ {
		f.Add([]byte("key:" + strconv.Itoa(i)))
	}
	for i := 0; i < 10_000; i++ {
		require.True(t, f.MightContain([]byte("key:"+strconv.Itoa(i))), "key %d", i)
	}
}

// The empirical false-positive rate over a large sample of absent keys
// should stay near the configured target. The tolerance is loose (3x)
// because the probe positions are not truly independent.
func TestFilter_BoundedFalsePositives(t *testing.T) {
	t.Parallel()

	const (
		n      = 10_000
		target = 0.01
	)
	f := New(n, target)
	for i := 0; i < n; i++ {
		f.Add([]byte("present:" + strconv.Itoa(i)))
	}

	positives := 0
	const probes = 50_000
	for i := 0; i < probes; i++ {
		if f.MightContain([]byte("absent:" + strconv.Itoa(i))) {
			positives++
		}
	}
	rate := float64(positives) / float64(probes)
	require.Less(t, rate, 3*target, "observed fp rate %f", rate)
}

func TestFilter_Reset(t *testing.T) {
	t.Parallel()

	f := New(100, 0.01)
	f.Add([]byte("a"))
	require.True(t, f.MightContain([]byte("a")))

	f.Reset()
	require.False(t, f.MightContain([]byte("a")))

	// Re-adding after a reset restores membership.
	f.Add([]byte("a"))
	require.True(t, f.MightContain([]byte("a")))
}

// Sizing must respect the minimum bitmap and scale with the entry count.
func TestFilter_Sizing(t *testing.T) {
	t.Parallel()

	small := New(1, 0.5)
	require.GreaterOrEqual(t, small.Bits(), 64)

	big := New(100_000, 0.01)
	require.Greater(t, big.Bits(), small.Bits())
}
