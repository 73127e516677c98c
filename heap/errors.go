package heap

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors are the "expected control value" tier of the error
// taxonomy in spec.md §7: normal outcomes the driver is expected to branch
// on, never panics. Grounded on hive/alloc/errors.go's package-level
// errors.New style.
var (
	// ErrNoSpace is returned by Buckets.Alloc when alloc_page finds no free
	// page; the driver must grow the pool or try a different one.
	// AllocPages reports its own "no fit" as NotFound instead.
	ErrNoSpace = errors.New("heap: no free page run large enough")

	// ErrBadRef indicates a pointer or page/bit index outside the owning
	// Pool's range.
	ErrBadRef = errors.New("heap: address or index out of range")
)

// assertf panics with a message carrying the caller's file/line, the Go
// analogue of an abort-with-file/line precondition check (spec.md §7.1).
// Debug-only checks that a release build might elide are gated behind the
// checkPreconditions package variable in debug.go.
func assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	panic(fmt.Sprintf("heap: assertion failed at %s:%d: %s", file, line, fmt.Sprintf(format, args...)))
}
