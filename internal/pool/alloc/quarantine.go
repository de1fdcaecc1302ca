package alloc

import (
	"unsafe"

	"github.com/kolkov/allocpool/internal/pool/address"
	"github.com/kolkov/allocpool/internal/pool/config"
)

type quarantined struct {
	p     unsafe.Pointer
	class uint8
}

// Quarantine delays the reuse of freed objects.
//
// Objects freed into the quarantine stay unavailable until the instance holds
// PerAllocThreshold bytes in it, or until PerChunkThreshold objects from one
// chunk are waiting. Either trigger releases the whole quarantine.
type Quarantine struct {
	cfg      config.Quarantine
	held     []quarantined
	bytes    uint64
	perChunk map[address.Address]uint32
}

// Init resets the quarantine to empty with the given thresholds.
func (q *Quarantine) Init(cfg config.Quarantine) {
	q.cfg = cfg
	q.held = q.held[:0]
	q.bytes = 0
	clear(q.perChunk)
}

// Enabled reports whether frees go through the quarantine.
func (q *Quarantine) Enabled() bool { return q.cfg.Enabled }

// Len returns the number of objects held.
func (q *Quarantine) Len() int { return len(q.held) }

// Bytes returns the number of bytes held.
func (q *Quarantine) Bytes() uint64 { return q.bytes }

// add holds p back and reports whether a threshold was reached.
func (q *Quarantine) add(p unsafe.Pointer, class uint8) bool {
	q.held = append(q.held, quarantined{p: p, class: class})
	q.bytes += uint64(ClassSize(class))
	full := q.cfg.PerAllocThreshold > 0 && q.bytes >= q.cfg.PerAllocThreshold

	if q.cfg.PerChunkThreshold > 0 {
		if q.perChunk == nil {
			q.perChunk = make(map[address.Address]uint32)
		}
		chunk := address.AlignDownAddr(address.AddressOf(p), ChunkSize)
		q.perChunk[chunk]++
		if q.perChunk[chunk] >= q.cfg.PerChunkThreshold {
			full = true
		}
	}
	return full
}

// drain hands every held object to release and empties the quarantine.
func (q *Quarantine) drain(release func(p unsafe.Pointer, class uint8)) int {
	n := len(q.held)
	for i, o := range q.held {
		release(o.p, o.class)
		q.held[i] = quarantined{}
	}
	q.held = q.held[:0]
	q.bytes = 0
	clear(q.perChunk)
	return n
}

// DebugDrainAll releases everything held by a, regardless of thresholds.
// Returns the number of objects released.
func (q *Quarantine) DebugDrainAll(a *Allocator) int {
	n := q.drain(a.reuse)
	a.stats.quarantined.Store(0)
	return n
}
