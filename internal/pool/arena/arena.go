// Package arena implements an append-only arena of fixed-size slots.
//
// Slots are constructed in place and addressed by aba.Handle. A slot is never
// freed or moved: once handed out, its handle and its memory stay valid for
// the life of the arena. This matches the lifecycle of allocator instances,
// which are recycled but never destructed.
//
// Storage is two-level: a fixed directory of lazily installed chunks. Growing
// never copies existing slots, so pointers obtained from Get remain stable.
package arena

import (
	"fmt"
	"sync/atomic"

	"github.com/kolkov/allocpool/internal/pool/aba"
)

const (
	chunkBits = 8
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
	dirSize   = 4096

	// Capacity is the maximum number of slots an arena can hold.
	Capacity = dirSize * chunkSize
)

type chunk[T any] struct {
	slots [chunkSize]T
}

// Arena hands out slots of T by handle.
//
// The zero value is ready to use. All methods are safe for concurrent use.
type Arena[T any] struct {
	dir   [dirSize]atomic.Pointer[chunk[T]]
	next  atomic.Uint32
	built atomic.Uint32
}

// New reserves the next slot, runs construct on it and returns its handle.
//
// construct receives zeroed memory and the slot's handle. It runs before the
// handle is returned, so the slot is fully built by the time any other
// goroutine can learn the handle through the caller.
//
// New panics once Capacity slots have been handed out.
func (a *Arena[T]) New(construct func(slot *T, h aba.Handle)) (aba.Handle, *T) {
	idx := a.next.Add(1) - 1
	if idx >= Capacity {
		panic(fmt.Sprintf("arena: capacity of %d slots exhausted", Capacity))
	}

	c := a.chunkFor(idx >> chunkBits)
	slot := &c.slots[idx&chunkMask]
	h := aba.FromIndex(idx)
	if construct != nil {
		construct(slot, h)
	}
	a.built.Add(1)
	return h, slot
}

// Get returns the slot for h. h must have been returned by New.
func (a *Arena[T]) Get(h aba.Handle) *T {
	if h == aba.Nil {
		return nil
	}
	idx := h.Index()
	c := a.dir[idx>>chunkBits].Load()
	if c == nil || idx >= a.next.Load() {
		panic(fmt.Sprintf("arena: handle %d was never allocated", h))
	}
	return &c.slots[idx&chunkMask]
}

// Len returns the number of slots fully constructed so far.
func (a *Arena[T]) Len() int {
	return int(a.built.Load())
}

// chunkFor returns the chunk at directory index d, installing it if needed.
// Racing installers allocate independently; the loser's chunk is dropped.
func (a *Arena[T]) chunkFor(d uint32) *chunk[T] {
	if c := a.dir[d].Load(); c != nil {
		return c
	}
	fresh := new(chunk[T])
	if a.dir[d].CompareAndSwap(nil, fresh) {
		return fresh
	}
	return a.dir[d].Load()
}
