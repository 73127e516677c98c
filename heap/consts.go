package heap

// PageSize is the unit of virtual-address bookkeeping for every Pool.
const PageSize = 4096

// PoolSizeMin is the smallest Pool the driver should ever request — 256
// pages (1MB). It is exported for driver convenience; nothing in this
// package enforces it directly.
const PoolSizeMin = PageSize * 256

// binSizes lists the small-object size classes in ascending order. Any
// requested allocation larger than the last entry is routed to the large
// (page-spanning) path by the driver.
var binSizes = [...]int32{16, 32, 64, 128, 256, 512, 1024, 2048}

// NumBinClasses is the number of small-bin size classes.
const NumBinClasses = len(binSizes)

// Attr is the attribute bitmask carried through the external interface.
// The numeric values are frozen ABI shared with the driver — see spec.md §6.
type Attr uint32

const (
	None        Attr = 0
	Finalize    Attr = 1
	NoScan      Attr = 2
	Appendable  Attr = 4
	NoInterior  Attr = 8
	StructFinal Attr = 64
)

// Has reports whether all bits in mask are set in a.
func (a Attr) Has(mask Attr) bool { return a&mask == mask }
