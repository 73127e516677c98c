package heap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFuzz_RandomAllocFree_GuardInvariants drives a Buckets instance
// through random small-object alloc/free sequences and checks, after
// every step, part of the invariants spec.md §8 calls universal: no live
// allocation has its free_bits bit set, no two live allocations overlap,
// and free_pages stays within [0, npages].
func TestFuzz_RandomAllocFree_GuardInvariants(t *testing.T) {
	pool, _ := newTestPool(t, 64, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	moreMemory := func() (*Pool, error) { return pool, nil }

	rng := rand.New(rand.NewSource(42))
	live := make(map[uintptr]int32) // addr -> size

	for step := 0; step < 2000; step++ {
		op := rng.Intn(2) // 0=alloc, 1=free

		switch op {
		case 0:
			size := binSizes[rng.Intn(len(binSizes))]
			addr, allocated, err := buckets.Alloc(size, None, moreMemory)
			if err != nil {
				continue // pool exhausted, expected eventually
			}
			requireNoOverlap(t, live, addr, allocated, step)
			live[addr] = allocated
			// Simulate the driver writing its own payload into the slot,
			// the way a live object would — this must not corrupt a later
			// Free of this address.
			for i := int32(0); i < allocated; i++ {
				storeByte(addr+uintptr(i), 0xAB)
			}

		case 1:
			if len(live) == 0 {
				continue
			}
			for addr := range live {
				buckets.Free(addr)
				delete(live, addr)
				break
			}
		}

		validateBucketsInvariants(t, pool, buckets, live, step)
	}

	t.Logf("2000 random alloc/free steps completed, %d live allocations remain", len(live))
}

// requireNoOverlap fails the test if [addr, addr+size) intersects any
// currently-live allocation, which would mean Alloc handed out a slot
// that's still reachable through another live address.
func requireNoOverlap(t *testing.T, live map[uintptr]int32, addr uintptr, size int32, step int) {
	t.Helper()
	for other, otherSize := range live {
		if addr < other+uintptr(otherSize) && other < addr+uintptr(size) {
			t.Fatalf("step %d: new allocation 0x%x..0x%x overlaps live allocation 0x%x..0x%x",
				step, addr, addr+uintptr(size), other, other+uintptr(otherSize))
		}
	}
}

// validateBucketsInvariants checks that free_bits agrees with bucket
// free-list membership for every live allocation, and that the pool's
// free_pages bookkeeping stays within bounds.
func validateBucketsInvariants(t *testing.T, pool *Pool, buckets *Buckets, live map[uintptr]int32, step int) {
	t.Helper()
	require.GreaterOrEqual(t, pool.NumFreePages(), int32(0), "step %d: free_pages went negative", step)
	require.LessOrEqual(t, pool.NumFreePages(), pool.NPages(), "step %d: free_pages exceeds total pages", step)

	for addr := range live {
		biti := pool.BitIndex(addr)
		require.False(t, pool.freeBits.Test(biti), "step %d: live allocation 0x%x has free_bits set", step, addr)
	}
}

// TestFuzz_StressAllocFreeAcrossPages exercises page-carving pressure by
// allocating up to 50 slots per round across the four smallest bin
// classes, then freeing them all, over 10 rounds, checking that
// free_pages never exceeds the pool's total. The number of moreMemory
// calls is logged, not asserted.
func TestFuzz_StressAllocFreeAcrossPages(t *testing.T) {
	pool, _ := newTestPool(t, 16, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	calls := 0
	moreMemory := func() (*Pool, error) {
		calls++
		return pool, nil
	}

	rng := rand.New(rand.NewSource(12345))

	for round := 0; round < 10; round++ {
		var refs []uintptr
		for i := 0; i < 50; i++ {
			size := binSizes[rng.Intn(4)] // stick to the smaller classes to force page reuse
			addr, _, err := buckets.Alloc(size, None, moreMemory)
			if err != nil {
				break
			}
			refs = append(refs, addr)
		}

		for _, addr := range refs {
			buckets.Free(addr)
		}

		require.LessOrEqual(t, pool.NumFreePages(), pool.NPages())
	}

	t.Logf("stress test: 10 rounds of up to 50 alloc/free cycles completed, moreMemory invoked %d times", calls)
}
