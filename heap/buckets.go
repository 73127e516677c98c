package heap

// buckets.go implements FreeList, the in-place FreeNode pair, and Buckets —
// the size-class-indexed allocator sitting in front of SmallObjectPool
// (spec.md §3 "FreeNode"/"FreeList", §4.4 "Buckets.alloc").
//
// FreeNode layout, grounded on spec.md §9 "FreeNode in-place": a free
// slot's first machine word holds the address of the next free slot (0 for
// the list tail), and its second word holds a "host" identifier — the
// owning Pool's base address, not a raw Go pointer. Storing an actual
// unsafe.Pointer-to-Pool inside mmap'd memory would hide that reference
// from the Go garbage collector (a GC-visible pointer can't live in memory
// the runtime doesn't scan), so the weak back-reference described in
// spec.md §9 is instead an opaque uintptr handle, resolved back to a *Pool
// through Buckets' own registry. This keeps the raw memory free of
// Go-managed pointers while preserving the same "host" semantics.
const nodeWordSize = unsafeSizeofUintptr

// FreeList is a singly-linked stack of FreeNodes threaded through a single
// bin class's reclaimed slots. head is a raw slot address, 0 meaning empty.
type FreeList struct {
	head uintptr
}

// Free pushes node onto the list head. O(1). No validation that node
// actually belongs to a bin page of this list's size class — enforced by
// the caller (spec.md §4.4).
func (fl *FreeList) Free(node uintptr) {
	storeUintptr(node, fl.head)
	fl.head = node
}

// pop removes and returns the head node, or ok=false if the list is empty.
func (fl *FreeList) pop() (addr uintptr, ok bool) {
	if fl.head == 0 {
		return 0, false
	}
	addr = fl.head
	fl.head = loadUintptr(addr)
	return addr, true
}

// nodeHost reads the FreeNode.host word written when the slot was linked.
func nodeHost(addr uintptr) uintptr { return loadUintptr(addr + nodeWordSize) }

func setNodeHost(addr, hostBase uintptr) { storeUintptr(addr+nodeWordSize, hostBase) }

// Buckets is the size-class-indexed small-object allocator: one FreeList
// per bin class, shared across every Pool that has ever contributed a page
// to a given class (spec.md §3, "One per small-bin class per Buckets
// instance").
type Buckets struct {
	lists [NumBinClasses]FreeList
	pools map[uintptr]*Pool // Pool.Base() -> Pool, resolves FreeNode.host
	debug DebugOptions
}

// NewBuckets constructs an empty Buckets instance.
func NewBuckets(debug DebugOptions) *Buckets {
	return &Buckets{pools: make(map[uintptr]*Pool), debug: debug}
}

func binClassIndex(tag pageTag) int {
	for i, t := range binTagByIndex {
		if t == tag {
			return i
		}
	}
	return -1
}

// adoptPool registers pool in the host registry so later frees of its slots
// can resolve FreeNode.host back to a *Pool.
func (b *Buckets) adoptPool(pool *Pool) {
	b.pools[pool.Base()] = pool
}

// resolveHost looks up the Pool owning a FreeNode, given its raw address.
// Only safe for addresses still on a free list: nothing but Buckets
// itself has touched that memory since it was linked, so the host word
// it wrote is still intact. Never use this to resolve an address the
// driver has been holding — see poolContaining.
func (b *Buckets) resolveHost(addr uintptr) *Pool {
	return b.pools[nodeHost(addr)]
}

// poolContaining finds the Pool owning addr by address-range containment
// over every pool Buckets has ever drawn a page from. Unlike resolveHost,
// this never reads the target memory itself — an address handed back to
// Free may be a live allocation the driver has spent its whole lifetime
// writing payload bytes into, so the FreeNode.host word that would sit at
// addr+8 has long since been overwritten by application data.
func (b *Buckets) poolContaining(addr uintptr) *Pool {
	for _, pool := range b.pools {
		if pool.Contains(addr) {
			return pool
		}
	}
	return nil
}

// Alloc serves a request of requested bytes (<=2048) with the given
// attribute flags, pulling a new page via moreMemory when the bin's free
// list runs dry. Grounded on spec.md §4.4 "Buckets.alloc".
func (b *Buckets) Alloc(requested int32, flags Attr, moreMemory func() (*Pool, error)) (uintptr, int32, error) {
	tag, allocatedSize := binSizeFor(requested)
	idx := binClassIndex(tag)
	assertInvariant(idx >= 0, "Alloc: no bin class for tag %v", tag)
	fl := &b.lists[idx]

	if fl.head == 0 {
		pool, err := moreMemory()
		if err != nil {
			return 0, 0, err
		}
		b.adoptPool(pool)
		pageAddr, ok := pool.AllocPage(tag)
		if !ok {
			return 0, 0, ErrNoSpace
		}
		b.populatePage(pool, pageAddr, allocatedSize, fl)
	}

	addr, ok := fl.pop()
	if !ok {
		return 0, 0, ErrNoSpace
	}
	pool := b.resolveHost(addr)
	assertInvariant(pool != nil, "Alloc: unrecognized FreeNode host for 0x%x", addr)
	biti := pool.BitIndex(addr)
	pool.freeBits.Clear(biti)
	if flags != None {
		pool.SetBits(biti, flags)
	}
	if pool.debug.Memstomp {
		memstomp(pool.view, int32(addr-pool.base), allocatedSize, memstompAlloc)
	}

	// With Sentinel on, the bin's own bytes pay for the canary words: the
	// driver gets bin_size - sentinelOverhead usable bytes instead of the
	// full bin. The B_16 class degenerates to a zero-byte payload under
	// sentinels; still a valid (if useless) allocation.
	visible, payloadSize := addr, allocatedSize
	if pool.debug.Sentinel {
		payloadSize = allocatedSize - sentinelOverhead
		assertInvariant(payloadSize >= 0, "Alloc: bin size %d too small to carry a sentinel", allocatedSize)
		sentinelWrite(addr, uintptr(payloadSize))
		visible = sentinelAdd(addr, true)
	}

	b.debug.collectf("bucket alloc: bin=%v addr=0x%x size=%d", tag, visible, payloadSize)
	return visible, payloadSize, nil
}

// populatePage carves a freshly-tagged bin page into slotSize-byte slots,
// chaining each onto fl with FreeNode.next/host written in place, and
// marking every slot's free_bits bit (spec.md invariant: free_bits set iff
// linked into a free list).
func (b *Buckets) populatePage(pool *Pool, pageAddr uintptr, slotSize int32, fl *FreeList) {
	n := PageSize / slotSize
	for i := int32(n) - 1; i >= 0; i-- {
		slotAddr := pageAddr + uintptr(i)*uintptr(slotSize)
		fl.Free(slotAddr)
		setNodeHost(slotAddr, pool.Base())
		pool.freeBits.Set(pool.BitIndex(slotAddr))
	}
}

// Free returns a previously allocated slot to its bin's free list,
// resolving the owning pool by address-range containment and the bin
// class from the pool's page table.
func (b *Buckets) Free(addr uintptr) {
	pool := b.poolContaining(addr)
	assertInvariant(pool != nil, "Free: unrecognized address 0x%x", addr)
	internal := sentinelSub(addr, pool.debug.Sentinel)
	pn := pool.PageOf(internal)
	tag := pool.pageTable[pn]
	assertInvariant(isSmallBinTag(tag), "Free: page %d is not a small-bin page", pn)
	idx := binClassIndex(tag)
	size := binSizeByTag[tag]
	if pool.debug.Sentinel {
		sentinelInvariant(pool.rt, internal, uintptr(size-sentinelOverhead))
	}
	// Stomp before linking, so the FreeNode next/host words written below
	// survive.
	if pool.debug.Memstomp {
		memstomp(pool.view, int32(internal-pool.base), size, memstompFree)
	}

	b.lists[idx].Free(internal)
	setNodeHost(internal, pool.Base())
	biti := pool.BitIndex(internal)
	pool.freeBits.Set(biti)
	pool.ClearBits(biti, NoScan|Appendable|Finalize|StructFinal)
}

// Reclaim is the companion routine spec.md §9's open question calls for:
// the small-object sweep (Pool.RunFinalizersSmall) only updates free_bits
// and clears attributes, it does not relink slots into any FreeList.
// Reclaim links exactly the slots named in freedSlots (the value
// RunFinalizersSmall/Pool.RunFinalizers just returned) onto their bin's
// free list, restoring the invariant that free_bits set implies "linked
// into some free list" for the slots the sweep just broke it for.
//
// Taking the precise freed set rather than re-deriving it from free_bits
// is deliberate: free_bits reads identically for "freed by this sweep,
// not yet linked" and "freed earlier, already linked and still on a free
// list" — scanning the whole bitmap would relink already-linked slots a
// second time and corrupt their FreeList chains.
func (b *Buckets) Reclaim(pool *Pool, freedSlots []uintptr) {
	assertInvariant(!pool.isLarge, "Reclaim is small-pool only")
	if len(freedSlots) == 0 {
		return
	}
	b.adoptPool(pool)
	for _, slotAddr := range freedSlots {
		pn := pool.PageOf(slotAddr)
		tag := pool.pageTable[pn]
		assertInvariant(isSmallBinTag(tag), "Reclaim: page %d is not a small-bin page", pn)
		idx := binClassIndex(tag)
		b.lists[idx].Free(slotAddr)
		setNodeHost(slotAddr, pool.Base())
	}
}
