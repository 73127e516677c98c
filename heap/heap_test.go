package heap

import "github.com/stretchr/testify/require"

// fakeRuntime is a Runtime double for tests: HasFinalizerInSegment is
// driven by an explicit set of addresses so tests can control exactly
// which objects the sweep treats as finalizable, and the abort-style
// upcalls record their invocation instead of exiting the process.
type fakeRuntime struct {
	finalizable      map[uintptr]bool
	finalizedCalls   []uintptr
	oomCalled        bool
	invalidOpReasons []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{finalizable: make(map[uintptr]bool)}
}

func (f *fakeRuntime) HasFinalizerInSegment(p uintptr, size uintptr, attr Attr, segment uintptr) bool {
	return f.finalizable[p]
}

func (f *fakeRuntime) FinalizeFromGC(p uintptr, size uintptr, attr Attr) {
	f.finalizedCalls = append(f.finalizedCalls, p)
}

func (f *fakeRuntime) OnOutOfMemory() {
	f.oomCalled = true
}

func (f *fakeRuntime) OnInvalidMemoryOperation(reason string) {
	f.invalidOpReasons = append(f.invalidOpReasons, reason)
}

func newTestPool(t require.TestingT, nPages int32, isLarge bool) (*Pool, *fakeRuntime) {
	rt := newFakeRuntime()
	pool, err := NewPool(nPages, isLarge, FakeOSMemory{}, rt, DebugOptions{})
	require.NoError(t, err)
	return pool, rt
}
