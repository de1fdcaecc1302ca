// Package stack implements an intrusive lock-free stack of arena nodes.
//
// Nodes are named by aba.Handle and own a single link word that belongs to
// the stack while the node is linked. The stack never frees nodes: every node
// it hands out stays live and correctly typed, which is what makes reading a
// candidate's link during Pop safe.
//
// Operations are lock-free (some goroutine always makes progress) but not
// wait-free: a goroutine may retry indefinitely under contention. Push and
// Pop are linearizable; a node is never returned by two successful pops
// without an intervening push.
package stack

import "github.com/kolkov/allocpool/internal/pool/aba"

// Links gives the stack access to the link word of each node.
//
// Implementations must load and store the link atomically: a popper may read
// the link of a node another goroutine is concurrently re-pushing.
type Links interface {
	Next(h aba.Handle) aba.Handle
	SetNext(h, next aba.Handle)
}

// Stack is the head of an intrusive lock-free stack.
//
// The zero value is an empty stack.
type Stack struct {
	head aba.Slot
}

// Init resets the stack to empty. Must happen before concurrent use.
func (s *Stack) Init() {
	s.head.Init(aba.Nil)
}

// Empty reports whether the stack looked empty at the time of the call.
// The answer is a heuristic; it may be stale by the time it is used.
func (s *Stack) Empty() bool {
	return s.head.Peek() == aba.Nil
}

// Push links h on top of the stack.
func (s *Stack) Push(l Links, h aba.Handle) {
	s.PushRange(l, h, h)
}

// PushRange links an already-chained batch first..last on top of the stack
// with one successful exchange. last's link is overwritten.
func (s *Stack) PushRange(l Links, first, last aba.Handle) {
	cmp := s.head.Read()
	for {
		l.SetNext(last, cmp.Ptr())
		if s.head.CompareExchange(&cmp, first) {
			return
		}
	}
}

// Pop unlinks and returns the top node, or aba.Nil if the stack is empty.
func (s *Stack) Pop(l Links) aba.Handle {
	cmp := s.head.Read()
	for {
		top := cmp.Ptr()
		if top == aba.Nil {
			return aba.Nil
		}
		// top may already have been popped by someone else; its link is
		// still readable because nodes are never freed. A stale value is
		// rejected by the exchange below.
		next := l.Next(top)
		if s.head.CompareExchange(&cmp, next) {
			return top
		}
	}
}

// PopAll detaches the whole stack with one successful exchange and returns
// its former top. The detached nodes stay chained through their links.
func (s *Stack) PopAll() aba.Handle {
	cmp := s.head.Read()
	for {
		top := cmp.Ptr()
		if top == aba.Nil {
			return aba.Nil
		}
		if s.head.CompareExchange(&cmp, aba.Nil) {
			return top
		}
	}
}
