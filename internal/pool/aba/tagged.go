package aba

import "sync/atomic"

// TaggedSlot stores a handle and a generation in a single 64-bit word.
//
// Layout:
//   - bits 0-31:  handle
//   - bits 32-63: generation
//
// The generation wraps after 2^32 successful updates. A stale snapshot can
// only match again if exactly a multiple of 2^32 updates happened while its
// holder was preempted.
//
// The zero value is an empty slot at generation 0.
type TaggedSlot struct {
	word atomic.Uint64
}

// TaggedCmp is a consistent snapshot of a TaggedSlot.
type TaggedCmp struct {
	ptr Handle
	gen uint32
}

// Ptr returns the snapshot's handle.
func (c TaggedCmp) Ptr() Handle { return c.ptr }

// Generation returns the snapshot's generation.
func (c TaggedCmp) Generation() uint64 { return uint64(c.gen) }

func packTagged(h Handle, gen uint32) uint64 {
	return uint64(gen)<<32 | uint64(h)
}

func unpackTagged(w uint64) TaggedCmp {
	return TaggedCmp{ptr: Handle(uint32(w)), gen: uint32(w >> 32)}
}

// Init sets the slot to h at generation 0. Must happen before concurrent use.
func (s *TaggedSlot) Init(h Handle) {
	s.word.Store(packTagged(h, 0))
}

// Peek returns the current handle for non-authoritative checks.
func (s *TaggedSlot) Peek() Handle {
	return Handle(uint32(s.word.Load()))
}

// Read returns a snapshot suitable as the comparand of CompareExchange.
func (s *TaggedSlot) Read() TaggedCmp {
	return unpackTagged(s.word.Load())
}

// CompareExchange replaces the slot with (h, expect.gen+1) iff it still
// equals expect. On failure expect is refreshed to the current contents.
func (s *TaggedSlot) CompareExchange(expect *TaggedCmp, h Handle) bool {
	old := packTagged(expect.ptr, expect.gen)
	if s.word.CompareAndSwap(old, packTagged(h, expect.gen+1)) {
		return true
	}
	*expect = unpackTagged(s.word.Load())
	return false
}
