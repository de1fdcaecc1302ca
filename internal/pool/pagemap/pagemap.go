// Package pagemap maps chunk addresses to the allocator instance that owns
// them.
//
// Every chunk an allocator carves objects from is registered here, so that a
// deallocation issued by any goroutine can find the chunk's owner from a bare
// object address and route a remote free to it.
package pagemap

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/allocpool/internal/pool/aba"
	"github.com/kolkov/allocpool/internal/pool/address"
)

// Entry describes one registered chunk.
type Entry struct {
	// Owner is the allocator instance that carves objects from the chunk.
	Owner aba.Handle

	// Class is the size class of every object in the chunk.
	Class uint8
}

// cell is one slot in the CAS table.
//
// Memory layout:
//   - Offset 0-7: chunk (uintptr, 8 bytes)
//   - Offset 8-11: entry (Owner 4 bytes, Class 1 byte, padding)
type cell struct {
	chunk uintptr
	entry Entry
}

const (
	tableBits = 16
	tableSize = 1 << tableBits
	tableMask = tableSize - 1

	// maxProbes bounds linear probing before falling back to the overflow
	// map.
	maxProbes = 8
)

// Pagemap is a lock-free map from chunk-aligned addresses to entries.
//
// Architecture:
//   - Fixed-size array of 65536 atomic cell pointers (512KB)
//   - Multiplicative hash of the chunk number
//   - Linear probing (max 8 probes), then a sync.Map overflow
//
// Unlike a best-effort cache, a lookup must never miss a registered chunk:
// an unroutable free would leak. Probe exhaustion therefore spills into the
// overflow map instead of dropping the registration.
//
// Thread Safety: Set and Lookup are safe for concurrent use. Reset is not.
type Pagemap struct {
	chunkBits uint
	cells     [tableSize]atomic.Pointer[cell]
	overflow  sync.Map // uintptr (chunk) -> Entry
	spilled   atomic.Int64
}

// New returns an empty pagemap for chunks of 1<<chunkBits bytes.
func New(chunkBits uint) *Pagemap {
	return &Pagemap{chunkBits: chunkBits}
}

// ChunkSize returns the chunk granule in bytes.
func (m *Pagemap) ChunkSize() uintptr {
	return 1 << m.chunkBits
}

// fastHash maps a chunk address to a table index.
//
// Multiplies the chunk number by the golden-ratio constant and keeps the top
// bits, which spreads sequential chunks well.
//
//go:nosplit
func (m *Pagemap) fastHash(chunk uintptr) uint64 {
	const goldenRatio = 0x9E3779B97F4A7C15
	return (uint64(chunk>>m.chunkBits) * goldenRatio) >> (64 - tableBits)
}

// Set registers the chunk containing addr.
//
// A chunk is registered once, when its owner reserves it; chunks are never
// released, so an existing registration is left untouched and returned.
//
// Returns the entry now in effect for the chunk.
func (m *Pagemap) Set(addr uintptr, e Entry) Entry {
	chunk := address.AlignDownAddr(addr, m.ChunkSize())
	fresh := &cell{chunk: chunk, entry: e}

	hash := m.fastHash(chunk)
	for i := uint64(0); i < maxProbes; i++ {
		idx := (hash + i) & tableMask
		c := m.cells[idx].Load()

		if c == nil {
			if m.cells[idx].CompareAndSwap(nil, fresh) {
				return e
			}
			// Lost the slot; see who won.
			c = m.cells[idx].Load()
		}

		if c.chunk == chunk {
			return c.entry
		}
	}

	actual, loaded := m.overflow.LoadOrStore(chunk, e)
	if !loaded {
		m.spilled.Add(1)
	}
	return actual.(Entry)
}

// Lookup returns the entry for the chunk containing addr.
func (m *Pagemap) Lookup(addr uintptr) (Entry, bool) {
	chunk := address.AlignDownAddr(addr, m.ChunkSize())

	hash := m.fastHash(chunk)
	for i := uint64(0); i < maxProbes; i++ {
		c := m.cells[(hash+i)&tableMask].Load()
		if c == nil {
			return Entry{}, false
		}
		if c.chunk == chunk {
			return c.entry, true
		}
	}

	if v, ok := m.overflow.Load(chunk); ok {
		return v.(Entry), true
	}
	return Entry{}, false
}

// Reset forgets every registration. Not safe for concurrent use.
func (m *Pagemap) Reset() {
	for i := range m.cells {
		m.cells[i].Store(nil)
	}
	m.overflow.Clear()
	m.spilled.Store(0)
}

// Stats reports table occupancy for diagnostics.
//
// Returns:
//   - occupied: number of non-nil table slots
//   - displaced: slots holding a chunk that hashed elsewhere
//   - spilled: registrations that went to the overflow map
func (m *Pagemap) Stats() (occupied, displaced, spilled int) {
	for i := range m.cells {
		c := m.cells[i].Load()
		if c == nil {
			continue
		}
		occupied++
		if m.fastHash(c.chunk) != uint64(i) {
			displaced++
		}
	}
	return occupied, displaced, int(m.spilled.Load())
}
