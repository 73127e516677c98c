package heap

import "unsafe"

// addrOf returns the address of a []byte's backing storage. Used to give a
// Pool's mmap'd arena a uintptr identity independent of the Go slice header,
// matching the C original's "base is a raw pointer" model.
func addrOf(view []byte) uintptr {
	if len(view) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&view[0]))
}

// loadUintptr and storeUintptr read/write a machine word at a raw address.
// They back the in-place FreeNode.next/FreeNode.host fields threaded
// directly through reclaimed bin slots (spec.md §3, "FreeNode ... exists
// in-place inside reclaimed bin slots").
func loadUintptr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr)) //nolint:gosec // conservative-GC style in-place field access
}

func storeUintptr(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v //nolint:gosec // see loadUintptr
}

// storeByte writes a single byte at a raw address, standing in for the
// application payload writes a live allocation receives between Alloc and
// Free.
func storeByte(addr uintptr, v byte) {
	*(*byte)(unsafe.Pointer(addr)) = v //nolint:gosec // see loadUintptr
}
