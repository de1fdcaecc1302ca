// Package remote carries cross-thread deallocations between allocator
// instances.
//
// A Remote is a message saying "free this object, which you own". Producers
// on any goroutine batch messages in a Cache and post them to the owner's
// Queue; the owner (or the pool's maintenance sweep) drains the queue.
package remote

import (
	"sync/atomic"
	"unsafe"

	"github.com/kolkov/allocpool/internal/pool/aba"
)

// Remote is an intrusive remote-deallocation message.
type Remote struct {
	next atomic.Pointer[Remote]

	// Target is the allocator instance that owns Ptr.
	Target aba.Handle

	// Ptr is the object being freed.
	Ptr unsafe.Pointer

	// Class is the object's size class.
	Class uint8
}

// Next returns the message linked after m.
func (m *Remote) Next() *Remote {
	return m.next.Load()
}

// SetNext links n after m.
func (m *Remote) SetNext(n *Remote) {
	m.next.Store(n)
}
