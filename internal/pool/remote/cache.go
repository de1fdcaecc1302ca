package remote

import (
	"unsafe"

	"github.com/kolkov/allocpool/internal/pool/aba"
)

// Router resolves an allocator handle to its incoming queue.
type Router interface {
	Queue(target aba.Handle) *Queue
}

type batch struct {
	first, last *Remote
}

// Cache accumulates outgoing remote frees per destination until they are
// posted. It belongs to one allocator instance and is not safe for concurrent
// use.
type Cache struct {
	lists map[aba.Handle]*batch
	size  int
}

// Size returns the number of messages waiting to be posted.
func (c *Cache) Size() int { return c.size }

// Dealloc records a free of p for target.
func (c *Cache) Dealloc(target aba.Handle, p unsafe.Pointer, class uint8) {
	c.push(&Remote{Target: target, Ptr: p, Class: class})
}

// push queues a fresh message. Messages taken from a Queue are never pushed
// directly: a dequeued message is that queue's sentinel.
func (c *Cache) push(m *Remote) {
	if c.lists == nil {
		c.lists = make(map[aba.Handle]*batch)
	}
	m.SetNext(nil)
	b := c.lists[m.Target]
	if b == nil {
		c.lists[m.Target] = &batch{first: m, last: m}
	} else {
		b.last.SetNext(m)
		b.last = m
	}
	c.size++
}

// Post hands every batch to its target's queue, one enqueue per target.
// Messages addressed to self are posted like any other, so the owner sees
// them on its next drain.
//
// Returns the number of messages posted.
func (c *Cache) Post(r Router) int {
	posted := c.size
	for target, b := range c.lists {
		r.Queue(target).Enqueue(b.first, b.last)
		delete(c.lists, target)
	}
	c.size = 0
	return posted
}
