// Package heap implements the pool-and-bin allocator core of a
// conservative, non-moving, mark-and-sweep garbage collector: virtual
// address regions sliced into size classes, per-object attribute bitmaps,
// and the sweep/finalize protocol for both small (bin-packed) and large
// (page-spanning) objects.
//
// This package owns none of root scanning, marking, collection scheduling,
// or OS-mapping policy beyond the raw map/unmap primitive — those remain
// the embedding runtime's responsibility, expressed here as the Runtime
// and OSMemory interfaces.
package heap

import (
	"fmt"

	"github.com/heapcore-go/heapcore/internal/bitvector"
)

// divisor shift: one bit per 16 bytes for small pools, one bit per page
// for large pools (spec.md §3, "a divisor shift of 4 ... or 12").
const (
	smallShift = 4
	largeShift = 12
)

// Pool represents one contiguous virtual-address region of
// npages*PageSize bytes. A single struct serves both the small-object and
// large-object "views" described in spec.md, discriminated by IsLarge —
// the representation choice spec.md §9 calls out as matching the source.
type Pool struct {
	base uintptr
	top  uintptr
	view []byte // owned memory backing [base, top)

	npages     int32
	freePages  int32
	pageTable  []pageTag
	isLarge    bool
	shift      uint

	mark       *bitvector.BitVector // always allocated
	noScan     *bitvector.BitVector // always allocated
	appendable *bitvector.BitVector // always allocated

	freeBits *bitvector.BitVector // small pools only

	finals       *bitvector.BitVector // lazy
	structFinals *bitvector.BitVector // lazy
	noInterior   *bitvector.BitVector // lazy, large pools only

	searchStart int32
	largestFree int32 // large pools only; upper bound, see AllocPages

	// bPageOffsets[i]: for a B_PAGE start, the run length; for a
	// B_PAGEPLUS continuation, the offset back to the owning B_PAGE.
	// Large pools only.
	bPageOffsets []int32

	osmem OSMemory
	rt    Runtime
	debug DebugOptions
}

// NewPool allocates and initializes a Pool of nPages pages from osmem,
// matching the Pool/"initialize" lifecycle of spec.md §3: memory is mapped,
// bitmaps are allocated, and every page starts out B_FREE.
//
// rt and osmem must be non-nil; debug may be the zero value (all toggles
// off).
func NewPool(nPages int32, isLarge bool, osmem OSMemory, rt Runtime, debug DebugOptions) (*Pool, error) {
	if nPages <= 0 {
		return nil, fmt.Errorf("heap: NewPool requires a positive page count, got %d", nPages)
	}
	if osmem == nil || rt == nil {
		return nil, fmt.Errorf("heap: NewPool requires non-nil OSMemory and Runtime")
	}
	if debug.Logging && debug.Logger == nil {
		debug.Logger = defaultLogger()
	}

	size := uintptr(nPages) * PageSize
	addr, view, err := osmem.Map(size)
	if err != nil {
		rt.OnOutOfMemory()
		return nil, err // unreachable unless rt.OnOutOfMemory returns in a test double
	}

	shift := uint(smallShift)
	if isLarge {
		shift = largeShift
	}
	nbits := int((uintptr(nPages) * PageSize) >> shift)

	p := &Pool{
		base:       addr,
		top:        addr + size,
		view:       view,
		npages:     nPages,
		freePages:  nPages,
		pageTable:  make([]pageTag, nPages), // zero value is tagFree
		isLarge:    isLarge,
		shift:      shift,
		mark:       bitvector.New(nbits),
		noScan:     bitvector.New(nbits),
		appendable: bitvector.New(nbits),
		osmem:      osmem,
		rt:         rt,
		debug:      debug,
	}
	if isLarge {
		p.bPageOffsets = make([]int32, nPages)
		p.largestFree = nPages
	} else {
		p.freeBits = bitvector.New(nbits)
	}

	p.debug.collectf("pool created: %d pages, large=%v, base=0x%x", nPages, isLarge, addr)
	return p, nil
}

// Destroy frees the bitmaps, page table and backing memory. Calling any
// other method on p afterward is undefined, matching spec.md §3's
// "Destruction while any live allocation references the pool is
// undefined."
func (p *Pool) Destroy() error {
	p.debug.collectf("pool destroyed: base=0x%x", p.base)
	err := p.osmem.Unmap(p.base, p.top-p.base)
	p.mark.Destroy()
	p.noScan.Destroy()
	p.appendable.Destroy()
	if p.freeBits != nil {
		p.freeBits.Destroy()
	}
	if p.finals != nil {
		p.finals.Destroy()
	}
	if p.structFinals != nil {
		p.structFinals.Destroy()
	}
	if p.noInterior != nil {
		p.noInterior.Destroy()
	}
	p.pageTable = nil
	p.view = nil
	p.base, p.top = 0, 0
	return err
}

// IsLarge reports whether this Pool serves page-spanning allocations
// (true) or fixed-size bins (false).
func (p *Pool) IsLarge() bool { return p.isLarge }

// Base and Top report the half-open address range this Pool owns.
func (p *Pool) Base() uintptr { return p.base }
func (p *Pool) Top() uintptr  { return p.top }

// NPages and NumFreePages report the pool's total and currently-free page
// counts. NumFreePages is distinct from the LargeObjectPool FreePages(p,n)
// operation in large.go, which releases pages rather than counting them.
func (p *Pool) NPages() int32       { return p.npages }
func (p *Pool) NumFreePages() int32 { return p.freePages }

// PageOf returns the page index containing address addr. Precondition:
// base <= addr < top (spec.md §4.2).
func (p *Pool) PageOf(addr uintptr) int32 {
	assertInvariant(addr >= p.base && addr < p.top, "PageOf: address 0x%x outside pool [0x%x,0x%x)", addr, p.base, p.top)
	return int32((addr - p.base) / PageSize)
}

// Contains reports whether addr falls in this Pool's owned range.
func (p *Pool) Contains(addr uintptr) bool {
	return addr >= p.base && addr < p.top
}

// bitIndex converts a runtime address to its index into the attribute
// bitmaps: offset/16 for small pools, offset/PageSize for large pools
// (spec.md GLOSSARY, "Bit index (biti)").
func (p *Pool) bitIndex(addr uintptr) int {
	return int((addr - p.base) >> p.shift)
}

// BitIndex exposes bitIndex for callers (e.g. Buckets) that must compute a
// biti from an address they just carved a slot from.
func (p *Pool) BitIndex(addr uintptr) int { return p.bitIndex(addr) }

// GetBits folds the set attribute bits at biti into a single mask.
// Bitmaps with zero NBits() (lazily unallocated) read as zero, per
// spec.md §4.2.
func (p *Pool) GetBits(biti int) Attr {
	var a Attr
	if p.finals != nil && p.finals.Test(biti) {
		a |= Finalize
	}
	if p.structFinals != nil && p.structFinals.Test(biti) {
		a |= StructFinal
	}
	if p.noScan.Test(biti) {
		a |= NoScan
	}
	if p.isLarge && p.noInterior != nil && p.noInterior.Test(biti) {
		a |= NoInterior
	}
	if p.appendable.Test(biti) {
		a |= Appendable
	}
	return a
}

// SetBits lazily allocates any bitmap it needs (sized to match mark) and
// sets the requested bits. NoInterior is ignored on small-object pools
// (spec.md §4.2).
func (p *Pool) SetBits(biti int, mask Attr) {
	nbits := p.mark.NBits()
	if mask.Has(Finalize) {
		if p.finals == nil {
			p.finals = bitvector.New(nbits)
		}
		p.finals.Set(biti)
	}
	if mask.Has(StructFinal) {
		if p.structFinals == nil {
			p.structFinals = bitvector.New(nbits)
		}
		p.structFinals.Set(biti)
	}
	if mask.Has(NoScan) {
		p.noScan.Set(biti)
	}
	if mask.Has(NoInterior) && p.isLarge {
		if p.noInterior == nil {
			p.noInterior = bitvector.New(nbits)
		}
		p.noInterior.Set(biti)
	}
	if mask.Has(Appendable) {
		p.appendable.Set(biti)
	}
}

// ClearBits clears the requested bits. A bitmap with zero NBits() is a
// no-op, per spec.md §4.2.
func (p *Pool) ClearBits(biti int, mask Attr) {
	if mask.Has(Finalize) && p.finals != nil {
		p.finals.Clear(biti)
	}
	if mask.Has(StructFinal) && p.structFinals != nil {
		p.structFinals.Clear(biti)
	}
	if mask.Has(NoScan) {
		p.noScan.Clear(biti)
	}
	if mask.Has(NoInterior) && p.noInterior != nil {
		p.noInterior.Clear(biti)
	}
	if mask.Has(Appendable) {
		p.appendable.Clear(biti)
	}
}

// FreePageBits is the small-pool-only page-bit sweep helper: for every bit
// set in toFree (a bitmap covering one page's worth of 16-byte slots), set
// the corresponding free_bits bit and clear no_scan/appendable/finals/
// struct_finals (spec.md §4.2).
func (p *Pool) FreePageBits(pageNum int32, toFree *bitvector.BitVector) {
	assertInvariant(!p.isLarge, "FreePageBits is small-pool only")
	slotsPerPage := int(PageSize >> smallShift)
	base := int(pageNum) * slotsPerPage
	nWords := (slotsPerPage + 63) / 64
	for w := 0; w < nWords; w++ {
		bits := toFree.Word(w)
		if bits == 0 {
			continue
		}
		for b := 0; b < 64; b++ {
			if bits&(1<<uint(b)) == 0 {
				continue
			}
			i := base + w*64 + b
			if i >= base+slotsPerPage {
				break
			}
			p.freeBits.Set(i)
			p.noScan.Clear(i)
			p.appendable.Clear(i)
			if p.finals != nil {
				p.finals.Clear(i)
			}
			if p.structFinals != nil {
				p.structFinals.Clear(i)
			}
		}
	}
}
