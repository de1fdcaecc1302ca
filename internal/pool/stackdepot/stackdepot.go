// Package stackdepot stores deduplicated stack traces for leak reports.
//
// When acquire tracking is enabled, the pool records where each allocator
// instance was last acquired. Identical call sites share one stored trace,
// referenced by a 64-bit hash, so tracking costs a hash per acquire and one
// trace per distinct call site.
//
// Usage:
//
//	hash := stackdepot.Capture(1)
//	...
//	fmt.Print(stackdepot.Get(hash).Format())
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames is the number of frames kept per trace.
const MaxFrames = 8

// poolPrefix marks frames of the pool itself, which say nothing about who
// holds an instance.
const poolPrefix = "github.com/kolkov/allocpool/internal/pool/global."

// StackTrace is a captured call stack of fixed size.
type StackTrace struct {
	PC [MaxFrames]uintptr
}

// depot maps hash -> *StackTrace.
var depot sync.Map

// Capture records the caller's stack and returns its hash, or 0 if no frame
// could be captured. skip counts frames above Capture's caller to omit.
//
// Thread Safety: Safe for concurrent calls.
func Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// Skip runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])
	if _, ok := depot.Load(hash); !ok {
		depot.LoadOrStore(hash, &StackTrace{PC: pcs})
	}
	return hash
}

// Get returns the trace for hash, or nil if none was captured.
func Get(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}
	v, ok := depot.Load(hash)
	if !ok {
		return nil
	}
	return v.(*StackTrace)
}

// hashStack computes the FNV-1a hash of the program counters.
func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var b [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(b[:], uint64(pc))
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}

// Format renders the trace, skipping runtime and pool frames:
//
//	main.worker()
//	    /path/to/file.go:45
func (st *StackTrace) Format() string {
	if st == nil {
		return "  <unknown>\n"
	}

	frames := runtime.CallersFrames(st.PC[:])
	var buf strings.Builder
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if !strings.HasPrefix(frame.Function, "runtime.") &&
			!strings.HasPrefix(frame.Function, poolPrefix) {
			fmt.Fprintf(&buf, "  %s()\n", frame.Function)
			fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
		}
		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return buf.String()
}

// Reset clears the depot. Not safe for concurrent use; tests only.
func Reset() {
	depot.Clear()
}

// Len returns the number of distinct traces stored.
func Len() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
