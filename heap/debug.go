package heap

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// checkPreconditions gates the expensive internal assertions behind a
// package-level toggle rather than a build tag, so a single binary can flip
// it at init time for a debug run — the same "debug build checks
// aggressively, release build may elide" split as spec.md §7.1, expressed
// as a variable because Go has no cheap way to strip panics from a release
// build short of a build tag per call site.
var checkPreconditions = true

func assertInvariant(cond bool, format string, args ...any) {
	if !checkPreconditions {
		return
	}
	assertf(cond, format, args...)
}

// DebugOptions mirrors spec.md §6's recognized debug toggles. All default
// to off (the zero value), matching the teacher's opt-in,
// no-op-otherwise debugAlloc/logAlloc style in hive/alloc/fastalloc.go.
type DebugOptions struct {
	// Sentinel enables canary words immediately before and after every
	// small allocation.
	Sentinel bool

	// Memstomp writes 0xF0 over a slot on alloc and 0xF3 on free.
	Memstomp bool

	// CollectPrintf logs sweep actions to stderr via fmt.Fprintf, matching
	// the teacher's HIVE_LOG_ALLOC-style env-gated stderr logging.
	CollectPrintf bool

	// Logging emits structured zerolog debug events for each small-object
	// page the sweep frees slots on and each large run it finalizes. It
	// does not record individual allocations or keep a log of outstanding
	// ones. A nil Logger with Logging set is replaced by a default stderr
	// logger.
	Logging bool
	Logger  *zerolog.Logger
}

// defaultLogger is used when Logging is requested without an explicit
// *zerolog.Logger, grounded on alphabill's pkg/logger global-logger
// fallback pattern.
func defaultLogger() *zerolog.Logger {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	return &l
}

func (d DebugOptions) collectf(format string, args ...any) {
	if !d.CollectPrintf {
		return
	}
	fmt.Fprintf(os.Stderr, "[heap] "+format+"\n", args...)
}

func (d DebugOptions) logEvent(event string, fields map[string]any) {
	if !d.Logging {
		return
	}
	l := d.Logger
	if l == nil {
		l = defaultLogger()
	}
	e := l.Debug().Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}

// Sentinel layout: one machine word immediately before the payload, one
// immediately after. Both hold the canary pattern XORed with the payload
// size, so a single word doubles as a tamper check and a place to recover
// the size that was stored there — sentinel_size(p) is just that XOR
// undone.
const sentinelCanary = uintptr(0xDEADC0DEDEADC0DE)

// sentinelOverhead is the number of bytes the pre/post sentinel words
// consume out of a bin slot when Sentinel is enabled; the driver-visible
// payload for a given bin is bin_size - sentinelOverhead.
const sentinelOverhead = 2 * unsafeSizeofUintptr

// sentinelAdd/sentinelSub convert between the internal address of a slot
// (including its leading sentinel word, when enabled) and the
// runtime-visible address handed to the driver/marker — "the sentinel
// offset is added/subtracted at the boundary between internal addresses
// and runtime-visible addresses" (spec.md §4.3).
func sentinelAdd(internal uintptr, enabled bool) uintptr {
	if !enabled {
		return internal
	}
	return internal + unsafeSizeofUintptr
}

func sentinelSub(runtimeVisible uintptr, enabled bool) uintptr {
	if !enabled {
		return runtimeVisible
	}
	return runtimeVisible - unsafeSizeofUintptr
}

const unsafeSizeofUintptr = 8

func sentinelTag(size uintptr) uintptr { return sentinelCanary ^ size }

// sentinelWrite stamps the pre/post canary words around a payload of the
// given size at internal address base: base holds the pre-sentinel, and
// base + wordSize + size holds the post-sentinel immediately after the
// payload.
func sentinelWrite(base uintptr, size uintptr) {
	tag := sentinelTag(size)
	storeUintptr(base, tag)
	storeUintptr(base+unsafeSizeofUintptr+size, tag)
}

// sentinelPre reads the raw pre-sentinel word, untouched by the
// size-recovery XOR — exposed so callers (and tests) can inspect or
// deliberately corrupt it without reaching for loadUintptr directly.
func sentinelPre(base uintptr) uintptr { return loadUintptr(base) }

// sentinelSize recovers the payload size stamped into the pre-sentinel by
// sentinelWrite. Undefined if the pre-sentinel is corrupted; callers that
// care should run sentinelInvariant first.
func sentinelSize(base uintptr) uintptr { return loadUintptr(base) ^ sentinelCanary }

// sentinelInvariant checks both canaries and reports corruption by
// invoking rt.OnInvalidMemoryOperation (spec.md §7.4) instead of returning
// an error, matching the abort-upcall error tier.
func sentinelInvariant(rt Runtime, base uintptr, size uintptr) {
	tag := sentinelTag(size)
	if loadUintptr(base) != tag {
		rt.OnInvalidMemoryOperation("pre-sentinel corrupted")
		return
	}
	if loadUintptr(base+unsafeSizeofUintptr+size) != tag {
		rt.OnInvalidMemoryOperation("post-sentinel corrupted")
	}
}

func memstomp(view []byte, off, size int32, pattern byte) {
	end := int(off) + int(size)
	if end > len(view) {
		end = len(view)
	}
	for i := int(off); i < end; i++ {
		view[i] = pattern
	}
}

const (
	memstompAlloc byte = 0xF0
	memstompFree  byte = 0xF3
)
