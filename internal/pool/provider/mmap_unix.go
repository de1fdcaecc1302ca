//go:build unix

package provider

import (
	"fmt"
	"sync"
	"unsafe"

	"braces.dev/errtrace"
	"golang.org/x/sys/unix"

	"github.com/kolkov/allocpool/internal/pool/address"
)

// MmapProvider reserves memory with anonymous private mappings.
//
// Mappings are over-sized by align and the aligned window inside them is
// returned; the unaligned head and tail stay mapped. Mapped pages are zero on
// first touch.
type MmapProvider struct {
	counter

	mu       sync.Mutex
	mappings [][]byte
}

// NewMmapProvider returns a provider backed by anonymous mappings.
func NewMmapProvider() *MmapProvider {
	return &MmapProvider{}
}

// Reserve implements MemoryProvider.
func (p *MmapProvider) Reserve(size, align uintptr) (Region, error) {
	if err := checkRequest(size, align); err != nil {
		return Region{}, errtrace.Wrap(err)
	}

	length := address.AlignUpAddr(size, address.PageBytes)
	if align > address.PageBytes {
		length += align
	}

	mem, err := unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Region{}, errtrace.Wrap(fmt.Errorf("provider: mmap %d bytes: %w", length, err))
	}

	base := address.AlignUpDyn(unsafe.Pointer(&mem[0]), align)

	p.mu.Lock()
	p.mappings = append(p.mappings, mem)
	p.mu.Unlock()

	p.reserved.Add(uint64(size))
	return NewRegion(base, size), nil
}

func defaultProvider() MemoryProvider {
	return NewMmapProvider()
}
