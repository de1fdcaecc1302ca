package global

import (
	"iter"

	"github.com/kolkov/allocpool/internal/pool/aba"
	"github.com/kolkov/allocpool/internal/pool/alloc"
)

// appendList links h at the tail of the permanent list.
//
// Appenders race on the tail's link with a CAS; a lagging tail pointer is
// helped forward by whoever notices it. Readers never need arbitration: they
// follow links that, once set, never change.
func (p *Pool) appendList(h aba.Handle) {
	for {
		tail := aba.Handle(p.listTail.Load())
		if tail == aba.Nil {
			if p.listHead.CompareAndSwap(uint32(aba.Nil), uint32(h)) {
				p.listTail.CompareAndSwap(uint32(aba.Nil), uint32(h))
				return
			}
			// Another first appender won; help it publish the tail.
			p.listTail.CompareAndSwap(uint32(aba.Nil), p.listHead.Load())
			continue
		}

		tn := p.arena.Get(tail)
		if next := tn.listNext.Load(); next != uint32(aba.Nil) {
			p.listTail.CompareAndSwap(uint32(tail), next)
			continue
		}
		if tn.listNext.CompareAndSwap(uint32(aba.Nil), uint32(h)) {
			p.listTail.CompareAndSwap(uint32(tail), uint32(h))
			return
		}
	}
}

// Iterate returns the first instance ever built, or nil if none exists.
func (p *Pool) Iterate() *alloc.Allocator {
	return p.Lookup(aba.Handle(p.listHead.Load()))
}

// IterateFrom returns the instance built after a, or nil at the end of the
// list.
//
// Iterate and IterateFrom together give a restartable traversal of every
// instance in construction order, whether idle or in use. A traversal
// running concurrently with Acquire may miss instances appended after it
// passed the tail.
func (p *Pool) IterateFrom(a *alloc.Allocator) *alloc.Allocator {
	n := p.nodeOf(a)
	return p.Lookup(aba.Handle(n.listNext.Load()))
}

// All yields every instance in construction order.
func (p *Pool) All() iter.Seq[*alloc.Allocator] {
	return func(yield func(*alloc.Allocator) bool) {
		for a := p.Iterate(); a != nil; a = p.IterateFrom(a) {
			if !yield(a) {
				return
			}
		}
	}
}

// Count returns the number of instances on the permanent list.
func (p *Pool) Count() int {
	n := 0
	for range p.All() {
		n++
	}
	return n
}
