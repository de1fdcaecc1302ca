package aba

import "sync/atomic"

// PlainSlot is a single atomic handle with no ABA protection.
//
// A stale snapshot whose handle happens to match the current one succeeds.
// That is acceptable only when nodes are never freed and are only recycled
// through the structure guarded by this slot; any general reuse reintroduces
// the ABA hazard.
type PlainSlot struct {
	ptr atomic.Uint32
}

// PlainCmp is a snapshot of a PlainSlot.
type PlainCmp struct {
	ptr Handle
}

// Ptr returns the snapshot's handle.
func (c PlainCmp) Ptr() Handle { return c.ptr }

// Generation is always 0: the strategy has no generation.
func (c PlainCmp) Generation() uint64 { return 0 }

// Init sets the slot to h. Must happen before concurrent use.
func (s *PlainSlot) Init(h Handle) {
	s.ptr.Store(uint32(h))
}

// Peek returns the current handle.
func (s *PlainSlot) Peek() Handle {
	return Handle(s.ptr.Load())
}

// Read returns a snapshot of the current handle.
func (s *PlainSlot) Read() PlainCmp {
	return PlainCmp{ptr: s.Peek()}
}

// CompareExchange replaces the handle iff it still equals the snapshot's.
// On failure expect is refreshed.
func (s *PlainSlot) CompareExchange(expect *PlainCmp, h Handle) bool {
	if s.ptr.CompareAndSwap(uint32(expect.ptr), uint32(h)) {
		return true
	}
	expect.ptr = s.Peek()
	return false
}
