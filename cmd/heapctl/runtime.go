package main

import (
	"fmt"
	"os"

	"github.com/heapcore-go/heapcore/heap"
)

// demoRuntime is a minimal heap.Runtime for CLI demonstrations: it has no
// real managed-object layout, so HasFinalizerInSegment simply reports
// whatever the caller asked it to simulate, and FinalizeFromGC just prints.
type demoRuntime struct {
	// simulateFinalizers makes HasFinalizerInSegment report true for every
	// FINALIZE-tagged object, as if every object's finalizer code happened
	// to live in the requested segment.
	simulateFinalizers bool
	finalizedCount     int
}

func (d *demoRuntime) HasFinalizerInSegment(p uintptr, size uintptr, attr heap.Attr, segment uintptr) bool {
	return d.simulateFinalizers && attr.Has(heap.Finalize)
}

func (d *demoRuntime) FinalizeFromGC(p uintptr, size uintptr, attr heap.Attr) {
	d.finalizedCount++
	printVerbose("  finalized object at 0x%x (size=%d)\n", p, size)
}

func (d *demoRuntime) OnOutOfMemory() {
	fmt.Fprintln(os.Stderr, "heapctl: out of memory")
	os.Exit(1)
}

func (d *demoRuntime) OnInvalidMemoryOperation(reason string) {
	fmt.Fprintf(os.Stderr, "heapctl: invalid memory operation: %s\n", reason)
	os.Exit(1)
}
