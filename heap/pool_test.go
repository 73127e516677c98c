package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heapcore-go/heapcore/internal/bitvector"
)

func TestNewPool_AllPagesFreeInitially(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()

	assert.Equal(t, int32(4), pool.NPages())
	assert.Equal(t, int32(4), pool.NumFreePages())
	assert.False(t, pool.IsLarge())
	assert.Equal(t, pool.Base()+4*PageSize, pool.Top())
}

func TestNewPool_RejectsBadInputs(t *testing.T) {
	rt := newFakeRuntime()
	_, err := NewPool(0, false, FakeOSMemory{}, rt, DebugOptions{})
	assert.Error(t, err)

	_, err = NewPool(4, false, nil, rt, DebugOptions{})
	assert.Error(t, err)
}

func TestBits_RoundTrip(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()

	mask := Finalize | NoScan | Appendable | StructFinal
	pool.SetBits(3, mask)
	assert.Equal(t, mask, pool.GetBits(3)&mask)

	pool.ClearBits(3, mask)
	assert.Equal(t, None, pool.GetBits(3)&mask)
}

func TestBits_LazyBitmapsReadZeroBeforeFirstSet(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()

	assert.Equal(t, None, pool.GetBits(0))
	pool.ClearBits(0, Finalize|StructFinal|NoInterior) // no-op, must not panic
}

func TestBits_NoInteriorIgnoredOnSmallPools(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()

	pool.SetBits(0, NoInterior)
	assert.False(t, pool.GetBits(0).Has(NoInterior))
}

func TestBits_NoInteriorHonoredOnLargePools(t *testing.T) {
	pool, _ := newTestPool(t, 4, true)
	defer pool.Destroy()

	pool.SetBits(0, NoInterior)
	assert.True(t, pool.GetBits(0).Has(NoInterior))
}

func TestPageOf_AndContains(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()

	assert.True(t, pool.Contains(pool.Base()))
	assert.False(t, pool.Contains(pool.Top()))
	assert.Equal(t, int32(2), pool.PageOf(pool.Base()+2*PageSize+10))
}

func TestFreePageBits_SetsFreeBitsAndClearsAttrs(t *testing.T) {
	pool, _ := newTestPool(t, 1, false)
	defer pool.Destroy()

	pool.pageTable[0] = tag64
	slotBiti := int(64 / 16) // second slot in the page, in 16-byte units
	pool.SetBits(slotBiti, NoScan|Appendable|Finalize|StructFinal)

	toFree := bitvector.New(slotsPerPage)
	toFree.Set(slotBiti)

	pool.FreePageBits(0, toFree)

	assert.True(t, pool.freeBits.Test(slotBiti))
	assert.False(t, pool.GetBits(slotBiti).Has(NoScan|Appendable|Finalize|StructFinal))
}
