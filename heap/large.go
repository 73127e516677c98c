package heap

// large.go implements the LargeObjectPool view of Pool: multi-page
// allocations tracked by a leading tagPage entry and zero or more trailing
// tagPagePlus entries, per spec.md §4.3.

// NotFound is returned by AllocPages as the "no fit" sentinel
// control value (spec.md §7.3) — not an error, a normal outcome the driver
// branches on.
const NotFound int32 = -1

// AllocPages finds the lowest page index i such that pages [i, i+n) are
// all free, following the search_start/largest_free/b_page_offsets
// bookkeeping in spec.md §4.3. It does not mark the run: the caller must
// invoke MarkLargeRun(i, n) to claim it, mirroring the "on successful
// reservation, the caller must mark the run" contract — kept as a
// caller-visible step, rather than folded into AllocPages, so a driver can
// interleave its own bookkeeping between "found a fit" and "committed it"
// exactly as spec.md's UpdateOffsets is listed as a separately callable
// operation.
//
// Returns NotFound if no run of length n exists.
func (p *Pool) AllocPages(n int32) int32 {
	assertInvariant(p.isLarge, "AllocPages is large-pool only")
	assertInvariant(n >= 1, "AllocPages: n must be >= 1, got %d", n)

	if p.largestFree < n || p.searchStart+n > p.npages {
		return NotFound
	}

	// Normalize search_start: step back out of a B_PAGEPLUS, then skip
	// whole B_PAGE runs in O(1) via b_page_offsets.
	i := p.searchStart
	if i < p.npages && p.pageTable[i] == tagPagePlus {
		i -= p.bPageOffsets[i]
	}
	for i < p.npages && p.pageTable[i] == tagPage {
		i += p.bPageOffsets[i]
	}
	p.searchStart = i

	pos := i
	var largest int32
	for pos < p.npages {
		switch p.pageTable[pos] {
		case tagFree:
			runStart := pos
			for pos < p.npages && p.pageTable[pos] == tagFree && pos-runStart < n {
				pos++
			}
			runLen := pos - runStart
			if runLen >= n {
				return runStart
			}
			if runLen > largest {
				largest = runLen
			}
		case tagPage:
			// Skip the entire run in O(1).
			pos += p.bPageOffsets[pos]
		default: // tagPagePlus: only reachable if b_page_offsets is inconsistent.
			pos++
		}
	}

	p.largestFree = largest
	return NotFound
}

// MarkLargeRun commits a run found by AllocPages: tags pages [start,
// start+n) as B_PAGE/B_PAGEPLUS, decrements FreePages by n, and calls
// UpdateOffsets(start). Precondition: pages [start, start+n) are all free
// (i.e. start came from a just-returned AllocPages(n) with no intervening
// mutation).
func (p *Pool) MarkLargeRun(start, n int32) {
	assertInvariant(p.isLarge, "MarkLargeRun is large-pool only")
	assertInvariant(start >= 0 && start+n <= p.npages, "MarkLargeRun: run [%d,%d) out of range", start, start+n)
	if checkPreconditions {
		for k := int32(0); k < n; k++ {
			assertInvariant(p.pageTable[start+k] == tagFree, "MarkLargeRun: page %d not free", start+k)
		}
	}

	p.pageTable[start] = tagPage
	for k := int32(1); k < n; k++ {
		p.pageTable[start+k] = tagPagePlus
	}
	p.freePages -= n
	p.UpdateOffsets(start)
	p.debug.collectf("alloc_pages: reserved [%d,%d) in pool base=0x%x", start, start+n, p.base)
}

// UpdateOffsets walks forward from a freshly-tagged B_PAGE at start,
// assigning each B_PAGEPLUS its distance back to start, and writes
// b_page_offsets[start] = run length.
func (p *Pool) UpdateOffsets(start int32) {
	assertInvariant(p.isLarge, "UpdateOffsets is large-pool only")
	assertInvariant(p.pageTable[start] == tagPage, "UpdateOffsets: page %d is not a B_PAGE start", start)

	k := int32(1)
	pos := start + 1
	for pos < p.npages && p.pageTable[pos] == tagPagePlus {
		p.bPageOffsets[pos] = k
		k++
		pos++
	}
	p.bPageOffsets[start] = k
}

// FreePages returns count pages starting at pageNum to the free pool,
// updating FreePages, SearchStart and (pessimistically) LargestFree per
// spec.md §4.3.
func (p *Pool) FreePages(pageNum, count int32) {
	assertInvariant(p.isLarge, "FreePages is large-pool only")
	assertInvariant(pageNum >= 0 && pageNum+count <= p.npages, "FreePages: range [%d,%d) out of range", pageNum, pageNum+count)

	for i := pageNum; i < pageNum+count; i++ {
		if p.pageTable[i] != tagFree {
			p.freePages++
		}
		p.pageTable[i] = tagFree
	}
	if pageNum < p.searchStart {
		p.searchStart = pageNum
	}
	// Invalidate largest_free to an upper bound; tightened again on the
	// next failed AllocPages.
	p.largestFree = p.freePages
	p.debug.collectf("free_pages: released [%d,%d) in pool base=0x%x", pageNum, pageNum+count, p.base)
}

// GetSizeLarge returns the size in bytes of the large allocation starting
// at addr. Precondition: addr lies in this Pool and names a B_PAGE start.
func (p *Pool) GetSizeLarge(addr uintptr) uintptr {
	assertInvariant(p.isLarge, "GetSizeLarge is large-pool only")
	pn := p.PageOf(addr)
	assertInvariant(p.pageTable[pn] == tagPage, "GetSizeLarge: page %d is not a B_PAGE start", pn)
	return uintptr(p.bPageOffsets[pn]) * PageSize
}

// GetInfoLarge resolves an arbitrary (possibly interior) pointer to its
// enclosing large allocation, per spec.md §4.3 and the interior-pointer
// semantics in §9.
func (p *Pool) GetInfoLarge(addr uintptr) BlkInfo {
	assertInvariant(p.isLarge, "GetInfoLarge is large-pool only")
	if !p.Contains(addr) {
		return BlkInfo{}
	}
	pn := p.PageOf(addr)
	switch p.pageTable[pn] {
	case tagPagePlus:
		pn -= p.bPageOffsets[pn]
	case tagPage:
		// already at the start
	default:
		return BlkInfo{}
	}
	return BlkInfo{
		Base: p.base + uintptr(pn)*PageSize,
		Size: uintptr(p.bPageOffsets[pn]) * PageSize,
		Attr: p.GetBits(int(pn)),
	}
}

// RunFinalizersLarge walks every B_PAGE start, and for any whose finals bit
// is set and whose finalizer code lives in segment, finalizes and frees the
// object. Grounded on spec.md §4.3.
func (p *Pool) RunFinalizersLarge(segment uintptr) {
	assertInvariant(p.isLarge, "RunFinalizersLarge is large-pool only")
	for pn := int32(0); pn < p.npages; pn++ {
		if p.pageTable[pn] != tagPage {
			continue
		}
		if p.finals == nil || !p.finals.Test(int(pn)) {
			continue
		}
		addr := p.base + uintptr(pn)*PageSize
		size := uintptr(p.bPageOffsets[pn]) * PageSize
		attr := p.GetBits(int(pn))
		if !p.rt.HasFinalizerInSegment(addr, size, attr, segment) {
			continue
		}
		p.rt.FinalizeFromGC(addr, size, attr)
		p.ClearBits(int(pn), Finalize|StructFinal|NoScan|NoInterior|Appendable)
		if pn < p.searchStart {
			p.searchStart = pn
		}
		runLen := p.bPageOffsets[pn]
		p.debug.logEvent("large_finalize", map[string]any{"page": pn, "run": runLen, "base": addr})
		p.FreePages(pn, runLen)
	}
}
