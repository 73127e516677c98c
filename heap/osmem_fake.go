package heap

// FakeOSMemory is a plain-Go-heap-backed OSMemory, used by tests and by
// drivers that want to exercise the allocator without taking a real mmap
// (e.g. under a restrictive sandbox). It honors the same page-alignment
// contract as the platform-backed implementations.
type FakeOSMemory struct{}

func (FakeOSMemory) Map(size uintptr) (uintptr, []byte, error) {
	if size == 0 || size%PageSize != 0 {
		return 0, nil, ErrBadRef
	}
	view := make([]byte, size)
	return addrOf(view), view, nil
}

func (FakeOSMemory) Unmap(uintptr, uintptr) error {
	// Backed by the Go GC; nothing to release explicitly. The view simply
	// becomes unreachable once the Pool drops its reference.
	return nil
}
