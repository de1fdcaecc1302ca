package provider

import (
	"sync"
	"unsafe"

	"braces.dev/errtrace"

	"github.com/kolkov/allocpool/internal/pool/address"
)

// HeapProvider carves regions out of Go heap slices.
//
// Each backing slice is over-allocated by align bytes and then aligned up
// inside itself. The slices are pinned in the provider so that a region stays
// reachable even when only raw addresses into it are held.
type HeapProvider struct {
	counter

	mu     sync.Mutex
	pinned [][]byte
}

// NewHeapProvider returns an empty heap-backed provider.
func NewHeapProvider() *HeapProvider {
	return &HeapProvider{}
}

// Reserve implements MemoryProvider.
func (p *HeapProvider) Reserve(size, align uintptr) (Region, error) {
	if err := checkRequest(size, align); err != nil {
		return Region{}, errtrace.Wrap(err)
	}

	buf := make([]byte, size+align)
	base := address.AlignUpDyn(unsafe.Pointer(&buf[0]), align)

	p.mu.Lock()
	p.pinned = append(p.pinned, buf)
	p.mu.Unlock()

	p.reserved.Add(uint64(size))
	return NewRegion(base, size), nil
}
