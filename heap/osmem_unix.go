//go:build linux || darwin

package heap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// osMemory is the production OSMemory backed by an anonymous mmap, the
// direct analogue of the teacher's hive.Open/Append mmap use
// (hive/loader_unix.go) and hive/dirty/flush_unix.go's golang.org/x/sys/unix
// dependency, repointed at anonymous (non-file-backed) pages since a GC
// heap region has no file behind it.
type osMemory struct{}

// NewOSMemory returns the platform OSMemory implementation used when a
// driver does not supply its own (e.g. for testing with a fake arena).
func NewOSMemory() OSMemory { return osMemory{} }

func (osMemory) Map(size uintptr) (uintptr, []byte, error) {
	if size == 0 || size%PageSize != 0 {
		return 0, nil, fmt.Errorf("heap: map size %d is not a multiple of page size", size)
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, nil, fmt.Errorf("heap: mmap failed: %w", err)
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	return addr, data, nil
}

func (osMemory) Unmap(addr uintptr, size uintptr) error {
	if addr == 0 || size == 0 {
		return nil
	}
	view := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	if err := unix.Munmap(view); err != nil {
		return fmt.Errorf("heap: munmap failed: %w", err)
	}
	return nil
}
