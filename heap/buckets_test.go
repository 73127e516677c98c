package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuckets_AllocCarvesPageOnFirstUse(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})

	moreMemory := func() (*Pool, error) { return pool, nil }

	addr, size, err := buckets.Alloc(16, None, moreMemory)
	require.NoError(t, err)
	assert.Equal(t, int32(16), size)
	assert.Equal(t, pool.Base(), addr)
	assert.Equal(t, int32(3), pool.NumFreePages(), "carving a page consumes exactly one page")

	idx := binClassIndex(tag16)
	assert.NotZero(t, buckets.lists[idx].head, "the rest of the carved page is still on the free list")
}

func TestBuckets_AllocSetsRequestedFlags(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	moreMemory := func() (*Pool, error) { return pool, nil }

	addr, _, err := buckets.Alloc(32, Finalize|NoScan, moreMemory)
	require.NoError(t, err)

	biti := pool.BitIndex(addr)
	assert.True(t, pool.GetBits(biti).Has(Finalize|NoScan))
	assert.False(t, pool.freeBits.Test(biti), "an allocated slot is no longer on the free list")
}

func TestBuckets_AllocReusesFreedSlotBeforeCarvingAnotherPage(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	moreMemory := func() (*Pool, error) { return pool, nil }

	a, _, err := buckets.Alloc(16, None, moreMemory)
	require.NoError(t, err)
	buckets.Free(a)

	freePagesBefore := pool.NumFreePages()
	b, _, err := buckets.Alloc(16, None, moreMemory)
	require.NoError(t, err)

	assert.Equal(t, a, b, "the freed slot must be reused before a new page is carved")
	assert.Equal(t, freePagesBefore, pool.NumFreePages(), "no new page was needed")
}

func TestBuckets_AllocPropagatesMoreMemoryFailure(t *testing.T) {
	buckets := NewBuckets(DebugOptions{})
	wantErr := ErrNoSpace
	moreMemory := func() (*Pool, error) { return nil, wantErr }

	_, _, err := buckets.Alloc(16, None, moreMemory)
	assert.ErrorIs(t, err, wantErr)
}

func TestBuckets_FreeClearsAttributesAndSetsFreeBits(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	moreMemory := func() (*Pool, error) { return pool, nil }

	addr, _, err := buckets.Alloc(16, Finalize|NoScan|Appendable, moreMemory)
	require.NoError(t, err)

	buckets.Free(addr)

	biti := pool.BitIndex(addr)
	assert.True(t, pool.freeBits.Test(biti))
	assert.False(t, pool.GetBits(biti).Has(Finalize|NoScan|Appendable))
}

// TestBuckets_FreeSurvivesPayloadOverwritingHostWord guards against
// resolving the owning pool from the FreeNode.host word at addr+8: that
// word sits inside the payload the driver is free to write into between
// Alloc and Free, so Free must resolve the pool some other way.
func TestBuckets_FreeSurvivesPayloadOverwritingHostWord(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	moreMemory := func() (*Pool, error) { return pool, nil }

	addr, size, err := buckets.Alloc(32, None, moreMemory)
	require.NoError(t, err)

	for i := int32(0); i < size; i++ {
		storeByte(addr+uintptr(i), 0xAB)
	}

	buckets.Free(addr)

	biti := pool.BitIndex(addr)
	assert.True(t, pool.freeBits.Test(biti), "the slot must still be freed correctly despite the overwritten host word")
}

func TestBuckets_ReclaimRelinksSweptSlots(t *testing.T) {
	pool, rt := newTestPool(t, 4, false)
	defer pool.Destroy()
	buckets := NewBuckets(DebugOptions{})
	moreMemory := func() (*Pool, error) { return pool, nil }

	addr, _, err := buckets.Alloc(16, Finalize, moreMemory)
	require.NoError(t, err)
	rt.finalizable[addr] = true

	freed := pool.RunFinalizersSmall(0)
	require.Equal(t, []uintptr{addr}, freed)

	idx := binClassIndex(tag16)
	headBefore := buckets.lists[idx].head
	buckets.Reclaim(pool, freed)
	assert.NotEqual(t, headBefore, buckets.lists[idx].head, "the swept slot must be relinked onto its bin's free list")

	reused, _, err := buckets.Alloc(16, None, moreMemory)
	require.NoError(t, err)
	assert.Equal(t, addr, reused, "the relinked slot must be the next one served")
}
