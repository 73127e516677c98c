package heap

// pageTag is the closed tag union stored in a Pool's page table. Per
// spec.md §9 Design Notes, the value space is closed — new tags are added
// centrally here, not scattered through the package.
type pageTag uint8

const (
	tagFree pageTag = iota
	tag16
	tag32
	tag64
	tag128
	tag256
	tag512
	tag1024
	tag2048
	tagPage     // start of a large run
	tagPagePlus // continuation of a large run
)

// binTagByIndex maps a bin class index (0..NumBinClasses-1, matching
// binSizes) to its page tag.
var binTagByIndex = [NumBinClasses]pageTag{
	tag16, tag32, tag64, tag128, tag256, tag512, tag1024, tag2048,
}

// binSizeByTag maps a small-bin tag back to its slot size in bytes. Only
// valid for tags in [tag16, tag2048].
var binSizeByTag = map[pageTag]int32{
	tag16:   16,
	tag32:   32,
	tag64:   64,
	tag128:  128,
	tag256:  256,
	tag512:  512,
	tag1024: 1024,
	tag2048: 2048,
}

// isSmallBinTag reports whether t names one of the fixed small-bin size
// classes (as opposed to tagFree/tagPage/tagPagePlus).
func isSmallBinTag(t pageTag) bool {
	_, ok := binSizeByTag[t]
	return ok
}

// binTable maps a requested byte size (0..2048 inclusive) to the smallest
// bin tag that can hold it. Sizes above 2048 have no entry — the driver
// must route those to the large-object path (spec.md §3, "Size classes").
var binTable = buildBinTable()

func buildBinTable() [2049]pageTag {
	var t [2049]pageTag
	bi := 0
	for s := 0; s <= 2048; s++ {
		for int32(s) > binSizes[bi] {
			bi++
		}
		t[s] = binTagByIndex[bi]
	}
	return t
}

// binSizeFor returns the bin tag and allocated size for a requested size in
// [0,2048]. Callers must route larger requests to the large path themselves.
func binSizeFor(requested int32) (pageTag, int32) {
	tag := binTable[requested]
	return tag, binSizeByTag[tag]
}
