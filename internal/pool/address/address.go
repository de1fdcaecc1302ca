package address

import (
	"fmt"
	"unsafe"
)

// Address is a raw numeric address. It carries no provenance: converting it
// back into a pointer is only valid for memory the garbage collector does not
// manage.
type Address = uintptr

// Granule is a static alignment. Implementations are empty structs whose
// Bytes method returns a power-of-two constant.
type Granule interface {
	Bytes() uintptr
}

// Granule sizes. The blank constants below fail to compile if any of them is
// not a power of two.
const (
	WordBytes  = unsafe.Sizeof(uintptr(0))
	CacheBytes = 64
	PageBytes  = 4096
)

const (
	_ uint = -(uint(WordBytes) & (uint(WordBytes) - 1))
	_ uint = -(CacheBytes & (CacheBytes - 1))
	_ uint = -(PageBytes & (PageBytes - 1))
)

// Word aligns to the machine word.
type Word struct{}

// Bytes returns the word size.
func (Word) Bytes() uintptr { return WordBytes }

// Cache aligns to a cache line.
type Cache struct{}

// Bytes returns the cache line size.
func (Cache) Bytes() uintptr { return CacheBytes }

// Page aligns to a small OS page.
type Page struct{}

// Bytes returns the page size.
func (Page) Bytes() uintptr { return PageBytes }

// Offset returns base advanced by bytes.
//
// The result is derived from base, so it shares base's provenance. In
// allocdebug builds the validity of base and the result are asserted equal.
func Offset(base unsafe.Pointer, bytes uintptr) unsafe.Pointer {
	r := unsafe.Add(base, bytes)
	checkProvenance(base, r)
	return r
}

// AlignDown rounds p down to the static granule G.
func AlignDown[G Granule](p unsafe.Pointer) unsafe.Pointer {
	var g G
	return alignDown(p, g.Bytes())
}

// AlignUp rounds p up to the static granule G.
func AlignUp[G Granule](p unsafe.Pointer) unsafe.Pointer {
	var g G
	return alignUp(p, g.Bytes())
}

// AlignDownDyn rounds p down to granule, which must be a power of two.
func AlignDownDyn(p unsafe.Pointer, granule uintptr) unsafe.Pointer {
	mustPowerOfTwo(granule)
	return alignDown(p, granule)
}

// AlignUpDyn rounds p up to granule, which must be a power of two.
func AlignUpDyn(p unsafe.Pointer, granule uintptr) unsafe.Pointer {
	mustPowerOfTwo(granule)
	return alignUp(p, granule)
}

// AlignDownAddr rounds a raw address down to granule.
func AlignDownAddr(a Address, granule uintptr) Address {
	mustPowerOfTwo(granule)
	return a &^ (granule - 1)
}

// AlignUpAddr rounds a raw address up to granule.
func AlignUpAddr(a Address, granule uintptr) Address {
	mustPowerOfTwo(granule)
	return (a + granule - 1) &^ (granule - 1)
}

// IsAligned reports whether p is a multiple of granule.
func IsAligned(p unsafe.Pointer, granule uintptr) bool {
	mustPowerOfTwo(granule)
	return uintptr(p)&(granule-1) == 0
}

// Diff returns the number of bytes from base to cursor.
//
// cursor must not be below base; a violation means a corrupted structure and
// panics.
func Diff(base, cursor unsafe.Pointer) uintptr {
	b, c := uintptr(base), uintptr(cursor)
	if c < b {
		panic(fmt.Sprintf("address: Diff cursor %#x below base %#x", c, b))
	}
	return c - b
}

// AddressOf casts a pointer to its numeric address.
func AddressOf(p unsafe.Pointer) Address {
	return uintptr(p)
}

// PointerCast turns an address back into a typed pointer.
//
// Only addresses inside memory obtained outside the Go heap (an anonymous
// mapping) may be converted. Converting a Go heap address is invalid and is
// fatal under -race or -d=checkptr; keep heap objects as unsafe.Pointer and
// use AddressOf only to compute keys.
func PointerCast[T any](a Address) *T {
	return (*T)(unsafe.Pointer(a)) //nolint:govet // memory is not GC-managed
}

// alignDown and alignUp adjust p by a delta through unsafe.Add so the result
// is derived from p rather than rebuilt from an integer.
func alignDown(p unsafe.Pointer, granule uintptr) unsafe.Pointer {
	delta := uintptr(p) & (granule - 1)
	r := unsafe.Add(p, -int(delta))
	checkProvenance(p, r)
	return r
}

func alignUp(p unsafe.Pointer, granule uintptr) unsafe.Pointer {
	delta := (granule - uintptr(p)&(granule-1)) & (granule - 1)
	r := unsafe.Add(p, delta)
	checkProvenance(p, r)
	return r
}

func mustPowerOfTwo(granule uintptr) {
	if granule == 0 || granule&(granule-1) != 0 {
		panic(fmt.Sprintf("address: granule %d is not a power of two", granule))
	}
}
