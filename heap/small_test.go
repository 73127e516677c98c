package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmall_AllocPageTagsAndAdvances(t *testing.T) {
	pool, _ := newTestPool(t, 4, false)
	defer pool.Destroy()

	addr, ok := pool.AllocPage(tag16)
	require.True(t, ok)
	assert.Equal(t, pool.Base(), addr)
	assert.Zero(t, addr%16)
	assert.Equal(t, int32(3), pool.NumFreePages())
	assert.Equal(t, int32(1), pool.searchStart)
	assert.Equal(t, tag16, pool.pageTable[0])
}

func TestSmall_AllocPageExhaustion(t *testing.T) {
	pool, _ := newTestPool(t, 2, false)
	defer pool.Destroy()

	_, ok := pool.AllocPage(tag16)
	require.True(t, ok)
	_, ok = pool.AllocPage(tag16)
	require.True(t, ok)
	_, ok = pool.AllocPage(tag16)
	assert.False(t, ok)
}

func TestSmall_GetSizeAndGetInfo(t *testing.T) {
	pool, _ := newTestPool(t, 1, false)
	defer pool.Destroy()

	pageAddr, ok := pool.AllocPage(tag64)
	require.True(t, ok)

	assert.Equal(t, uintptr(64), pool.GetSizeSmall(pageAddr))

	interior := pageAddr + 64 + 5 // second slot, 5 bytes in
	info := pool.GetInfoSmall(interior)
	assert.True(t, info.Owned())
	assert.Equal(t, pageAddr+64, info.Base)
	assert.Equal(t, uintptr(64), info.Size)
}

func TestSmall_GetInfoOnNonBinPageIsEmpty(t *testing.T) {
	pool, _ := newTestPool(t, 1, false)
	defer pool.Destroy()

	info := pool.GetInfoSmall(pool.Base())
	assert.False(t, info.Owned())
}

func TestSmall_RunFinalizersSweepsSlotBitsWithoutRelinking(t *testing.T) {
	pool, rt := newTestPool(t, 1, false)
	defer pool.Destroy()

	pageAddr, ok := pool.AllocPage(tag64)
	require.True(t, ok)

	slotAddr := pageAddr + 64 // second slot
	biti := pool.BitIndex(slotAddr)
	pool.SetBits(biti, Finalize|NoScan)
	rt.finalizable[slotAddr] = true

	pool.RunFinalizersSmall(0)

	assert.True(t, pool.freeBits.Test(biti))
	assert.False(t, pool.GetBits(biti).Has(NoScan|Finalize))
	assert.Len(t, rt.finalizedCalls, 1)
	// The sweep never touches the page's own bin tag or free_pages: it only
	// updates bitmaps, per spec.md §4.4's note that relinking happens
	// elsewhere.
	assert.Equal(t, tag64, pool.pageTable[0])
}
