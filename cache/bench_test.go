package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// Key formatting includes strconv/concat costs and often allocates, which
// is fine for an end-to-end benchmark.
func benchmarkMix(b *testing.B, readsPct int) {
	c, err := New(Options{
		CapacityBytes: 64 << 20,
		Shards:        32,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	// Preload a hot keyspace to get a realistic hit-rate.
	val := []byte("vvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvv")
	for i := 0; i < 50_000; i++ {
		if _, err := c.Put([]byte("k:"+strconv.Itoa(i)), val); err != nil {
			b.Fatal(err)
		}
	}

	// Report per-op allocations for a rough idea where costs go.
	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1 // hot keyspace (power of two for fast &-mask)

	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := []byte("k:" + strconv.Itoa(i&keyMask))
			if r.Intn(100) < readsPct {
				_, _, _ = c.Get(k)
			} else {
				_, _ = c.Put(k, val)
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// BenchmarkCache_Range measures ordered scans over a populated cache.
// Scans re-seek per record, so this is the worst case for the merge cursor.
func BenchmarkCache_Range(b *testing.B) {
	c, err := New(Options{
		CapacityBytes: 64 << 20,
		Shards:        16,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	val := []byte("vvvvvvvv")
	for i := 0; i < 10_000; i++ {
		if _, err := c.Put([]byte("k:"+strconv.Itoa(i)), val); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		it := c.Range([]byte("k:1"), []byte("k:2"))
		for it.Next() {
		}
		if err := it.Err(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCache_MissPath measures lookups answered by the Bloom filter
// alone, without touching the index.
func BenchmarkCache_MissPath(b *testing.B) {
	c, err := New(Options{
		CapacityBytes: 1 << 20,
		Shards:        16,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 1_000; i++ {
		if _, err := c.Put([]byte("present:"+strconv.Itoa(i)), []byte("v")); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = c.Get([]byte("absent:" + strconv.Itoa(i)))
			i++
		}
	})
}
