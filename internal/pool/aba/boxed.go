package aba

import "sync/atomic"

// boxedCell is immutable once published.
type boxedCell struct {
	ptr Handle
}

// emptyCell stands for the initial empty slot so that the zero value of
// BoxedSlot and an explicit Init(Nil) compare the same way.
var emptyCell = &boxedCell{}

// BoxedSlot installs a fresh immutable cell on every update and compares cell
// identity rather than contents.
//
// This mirrors capability hardware with load-link/store-conditional: there is
// no generation field, and safety comes from the memory system itself. A cell
// referenced by any snapshot is kept alive by the garbage collector, so its
// address cannot be reused and a stale snapshot can never compare equal, even
// when the handle inside the new cell is the same.
type BoxedSlot struct {
	cell atomic.Pointer[boxedCell]
}

// BoxedCmp is a snapshot of a BoxedSlot.
type BoxedCmp struct {
	cell *boxedCell
}

// Ptr returns the snapshot's handle.
func (c BoxedCmp) Ptr() Handle {
	if c.cell == nil {
		return Nil
	}
	return c.cell.ptr
}

// Generation is always 0: the strategy has no explicit generation.
func (c BoxedCmp) Generation() uint64 { return 0 }

// Init publishes h. Must happen before concurrent use.
func (s *BoxedSlot) Init(h Handle) {
	if h == Nil {
		s.cell.Store(emptyCell)
		return
	}
	s.cell.Store(&boxedCell{ptr: h})
}

// Peek returns the current handle for non-authoritative checks.
func (s *BoxedSlot) Peek() Handle {
	return BoxedCmp{cell: s.cell.Load()}.Ptr()
}

// Read returns a snapshot suitable as the comparand of CompareExchange.
func (s *BoxedSlot) Read() BoxedCmp {
	return BoxedCmp{cell: s.load()}
}

// CompareExchange installs a new cell holding h iff the slot still holds the
// snapshot's cell. On failure expect is refreshed.
func (s *BoxedSlot) CompareExchange(expect *BoxedCmp, h Handle) bool {
	next := &boxedCell{ptr: h}
	if s.cell.CompareAndSwap(expect.cell, next) {
		return true
	}
	expect.cell = s.load()
	return false
}

// load maps the zero value of the slot to emptyCell so the first CAS against
// a never-initialised slot succeeds.
func (s *BoxedSlot) load() *boxedCell {
	c := s.cell.Load()
	if c == nil {
		s.cell.CompareAndSwap(nil, emptyCell)
		c = s.cell.Load()
	}
	return c
}
