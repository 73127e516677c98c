package heap

import "github.com/heapcore-go/heapcore/internal/bitvector"

// small.go implements the SmallObjectPool view of Pool: fixed-size bin
// pages, per-slot attribute bits, and the small-object sweep (spec.md
// §4.4).

// slotsPerPage is the number of 16-byte slots per page, the unit
// free_page_bits and run_finalizers iterate over.
const slotsPerPage = int(PageSize >> smallShift)

// AllocPage linear-scans from search_start for the first free page, tags it
// bin, decrements FreePages, advances search_start past it, and returns the
// page's base address. Returns (0, false) on exhaustion.
func (p *Pool) AllocPage(bin pageTag) (uintptr, bool) {
	assertInvariant(!p.isLarge, "AllocPage is small-pool only")
	for pn := p.searchStart; pn < p.npages; pn++ {
		if p.pageTable[pn] == tagFree {
			p.pageTable[pn] = bin
			p.freePages--
			p.searchStart = pn + 1
			p.debug.collectf("alloc_page: page %d tagged %v in pool base=0x%x", pn, bin, p.base)
			return p.base + uintptr(pn)*PageSize, true
		}
	}
	return 0, false
}

// GetSizeSmall returns the bin size backing the allocation at addr.
// Precondition: the page containing addr is tagged with a small-bin tag.
func (p *Pool) GetSizeSmall(addr uintptr) uintptr {
	assertInvariant(!p.isLarge, "GetSizeSmall is small-pool only")
	pn := p.PageOf(addr)
	tag := p.pageTable[pn]
	assertInvariant(isSmallBinTag(tag), "GetSizeSmall: page %d is not a small-bin page", pn)
	return uintptr(binSizeByTag[tag])
}

// GetInfoSmall resolves an arbitrary (possibly interior) pointer to its
// enclosing bin-sized slot by rounding down to the bin boundary.
func (p *Pool) GetInfoSmall(addr uintptr) BlkInfo {
	assertInvariant(!p.isLarge, "GetInfoSmall is small-pool only")
	if !p.Contains(addr) {
		return BlkInfo{}
	}
	pn := p.PageOf(addr)
	tag := p.pageTable[pn]
	if !isSmallBinTag(tag) {
		return BlkInfo{}
	}
	binSize := uintptr(binSizeByTag[tag])
	pageBase := p.base + uintptr(pn)*PageSize
	slotBase := pageBase + (addr-pageBase)&^(binSize-1)
	return BlkInfo{
		Base: slotBase,
		Size: binSize,
		Attr: p.GetBits(p.bitIndex(slotBase)),
	}
}

// RunFinalizersSmall walks every small-bin page; for each slot whose finals
// bit is set and whose finalizer lives in segment, finalizes it and
// accumulates its in-page bit index into a page-local to_free bitmap,
// flushed via FreePageBits once per page (spec.md §4.4).
//
// This does not relink freed slots into any FreeList — per spec.md §9's
// open question, that is a companion routine's job; see Buckets.Reclaim.
// The returned slice holds exactly the slot addresses freed by this call,
// since free_bits alone can't tell a slot freed by this sweep apart from
// one that was already sitting on a free list before the sweep ran (both
// read as set) — Reclaim needs the precise delta, not the whole bitmap.
func (p *Pool) RunFinalizersSmall(segment uintptr) []uintptr {
	assertInvariant(!p.isLarge, "RunFinalizersSmall is small-pool only")
	var freed []uintptr
	for pn := int32(0); pn < p.npages; pn++ {
		tag := p.pageTable[pn]
		if !isSmallBinTag(tag) {
			continue
		}
		size := uintptr(binSizeByTag[tag])
		baseBit := int(pn) * slotsPerPage
		toFree := bitvector.New(slotsPerPage)
		freedAny := false

		for s := 0; s < slotsPerPage; s += int(size >> smallShift) {
			biti := baseBit + s
			if p.finals == nil || !p.finals.Test(biti) {
				continue
			}
			slotAddr := p.base + uintptr(pn)*PageSize + uintptr(s)<<smallShift
			attr := p.GetBits(biti)
			runtimeAddr := sentinelAdd(slotAddr, p.debug.Sentinel)
			if !p.rt.HasFinalizerInSegment(runtimeAddr, size, attr, segment) {
				continue
			}
			p.rt.FinalizeFromGC(runtimeAddr, size, attr)
			toFree.Set(s)
			freedAny = true
			freed = append(freed, slotAddr)
			if p.debug.Memstomp {
				memstomp(p.view, int32(uintptr(pn)*PageSize)+int32(s)<<smallShift, int32(size), memstompFree)
			}
		}

		if freedAny {
			p.FreePageBits(pn, toFree)
			p.debug.collectf("small_sweep: freed slots on page %d (bin %d) in pool base=0x%x", pn, size, p.base)
			p.debug.logEvent("small_sweep_page", map[string]any{"page": pn, "bin": int(size)})
		}
	}
	return freed
}
