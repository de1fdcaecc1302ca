// Package provider supplies raw, zeroed backing memory to allocator instances.
//
// A MemoryProvider hands out Regions: aligned, bounds-carrying views of
// memory that is never returned. On Unix the memory comes from anonymous
// mappings outside the Go heap; elsewhere it is pinned Go heap memory.
package provider

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"braces.dev/errtrace"

	"github.com/kolkov/allocpool/internal/pool/address"
)

// ErrInvalidRequest is returned for zero sizes and non power-of-two
// alignments.
var ErrInvalidRequest = errors.New("provider: invalid reservation request")

// MemoryProvider reserves zero-initialised memory.
type MemoryProvider interface {
	// Reserve returns size bytes aligned to align. align must be a power of
	// two. The memory is never released.
	Reserve(size, align uintptr) (Region, error)

	// Reserved returns the number of bytes handed out so far.
	Reserved() uint64
}

// Region is a capability over reserved memory: a base pointer plus bounds.
type Region struct {
	base unsafe.Pointer
	size uintptr
}

// NewRegion wraps size bytes starting at base.
func NewRegion(base unsafe.Pointer, size uintptr) Region {
	return Region{base: base, size: size}
}

// Base returns the first byte of the region.
func (r Region) Base() unsafe.Pointer { return r.base }

// Len returns the size of the region in bytes.
func (r Region) Len() uintptr { return r.size }

// IsZero reports whether r is the empty region.
func (r Region) IsZero() bool { return r.base == nil }

// Contains reports whether p points inside the region.
func (r Region) Contains(p unsafe.Pointer) bool {
	a, b := uintptr(p), uintptr(r.base)
	return a >= b && a-b < r.size
}

// Offset returns the pointer bytes past the start of the region.
//
// Offsets past the end would produce a pointer without the region's
// authority; that is a caller bug and panics.
func (r Region) Offset(bytes uintptr) unsafe.Pointer {
	if bytes >= r.size {
		panic(fmt.Sprintf("provider: offset %d outside region of %d bytes", bytes, r.size))
	}
	return address.Offset(r.base, bytes)
}

// Bytes exposes the region as a byte slice.
func (r Region) Bytes() []byte {
	if r.base == nil {
		return nil
	}
	return unsafe.Slice((*byte)(r.base), r.size)
}

func checkRequest(size, align uintptr) error {
	if size == 0 || align == 0 || align&(align-1) != 0 {
		return errtrace.Wrap(fmt.Errorf("%w: size=%d align=%d", ErrInvalidRequest, size, align))
	}
	return nil
}

// counter tracks reserved bytes for any provider.
type counter struct {
	reserved atomic.Uint64
}

func (c *counter) Reserved() uint64 { return c.reserved.Load() }

// Default returns the platform's preferred provider.
func Default() MemoryProvider {
	return defaultProvider()
}
