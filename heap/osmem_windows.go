//go:build windows

package heap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// osMemory on Windows is backed by VirtualAlloc/VirtualFree, mirroring the
// windows.FlushViewOfFile use in hive/dirty/flush_windows.go — same
// golang.org/x/sys dependency, applied to the anonymous-mapping half of the
// Windows virtual memory API instead of the mapped-file-flush half.
type osMemory struct{}

// NewOSMemory returns the platform OSMemory implementation.
func NewOSMemory() OSMemory { return osMemory{} }

func (osMemory) Map(size uintptr) (uintptr, []byte, error) {
	if size == 0 || size%PageSize != 0 {
		return 0, nil, fmt.Errorf("heap: map size %d is not a multiple of page size", size)
	}
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, nil, fmt.Errorf("heap: VirtualAlloc failed: %w", err)
	}
	view := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	return addr, view, nil
}

func (osMemory) Unmap(addr uintptr, _ uintptr) error {
	if addr == 0 {
		return nil
	}
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("heap: VirtualFree failed: %w", err)
	}
	return nil
}
