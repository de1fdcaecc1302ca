package stack

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/allocpool/internal/pool/aba"
)

// links is a test arena of link words indexed by handle.
type links struct {
	next []atomic.Uint32
}

func newLinks(n int) *links {
	return &links{next: make([]atomic.Uint32, n+1)}
}

func (l *links) Next(h aba.Handle) aba.Handle { return aba.Handle(l.next[h].Load()) }

func (l *links) SetNext(h, next aba.Handle) { l.next[h].Store(uint32(next)) }

func TestPushPopLIFO(t *testing.T) {
	l := newLinks(3)
	var s Stack
	s.Init()

	require.True(t, s.Empty())
	require.Equal(t, aba.Nil, s.Pop(l))

	s.Push(l, 1)
	s.Push(l, 2)
	s.Push(l, 3)
	require.False(t, s.Empty())

	assert.Equal(t, aba.Handle(3), s.Pop(l))
	assert.Equal(t, aba.Handle(2), s.Pop(l))
	assert.Equal(t, aba.Handle(1), s.Pop(l))
	assert.Equal(t, aba.Nil, s.Pop(l))
	assert.True(t, s.Empty())
}

func TestPopAllAndPushRange(t *testing.T) {
	l := newLinks(4)
	var s Stack

	for h := aba.Handle(1); h <= 4; h++ {
		s.Push(l, h)
	}

	first := s.PopAll()
	require.Equal(t, aba.Handle(4), first)
	require.True(t, s.Empty())
	require.Equal(t, aba.Nil, s.PopAll())

	// Walk the detached chain the way a maintenance sweep does.
	var seen []aba.Handle
	last := aba.Nil
	for h := first; h != aba.Nil; h = l.Next(h) {
		seen = append(seen, h)
		last = h
	}
	require.Equal(t, []aba.Handle{4, 3, 2, 1}, seen)

	s.PushRange(l, first, last)
	for _, want := range []aba.Handle{4, 3, 2, 1} {
		assert.Equal(t, want, s.Pop(l))
	}
	assert.True(t, s.Empty())
}

// No node is ever handed to two successful pops without an intervening push,
// and no pushed node vanishes.
func TestConcurrentNoLostOrDuplicatedNodes(t *testing.T) {
	const (
		nodes      = 64
		goroutines = 8
		rounds     = 5000
	)
	if aba.Strategy == "plain" {
		t.Skip("plain slots do not protect concurrent pops against ABA")
	}
	l := newLinks(nodes)
	var s Stack
	s.Init()

	held := make([]atomic.Bool, nodes+1)
	for h := aba.Handle(1); h <= nodes; h++ {
		s.Push(l, h)
	}

	var duplicates atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var mine []aba.Handle
			for i := 0; i < rounds; i++ {
				if h := s.Pop(l); h != aba.Nil {
					if !held[h].CompareAndSwap(false, true) {
						duplicates.Add(1)
					}
					mine = append(mine, h)
				}
				if len(mine) > 0 && (i%3 != 0 || len(mine) > 4) {
					h := mine[len(mine)-1]
					mine = mine[:len(mine)-1]
					held[h].Store(false)
					s.Push(l, h)
				}
			}
			for _, h := range mine {
				held[h].Store(false)
				s.Push(l, h)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, duplicates.Load(), "a node was handed out twice")

	seen := make(map[aba.Handle]int)
	for h := s.Pop(l); h != aba.Nil; h = s.Pop(l) {
		seen[h]++
	}
	assert.Len(t, seen, nodes)
	for h, n := range seen {
		assert.Equal(t, 1, n, "node %d", h)
	}
}

func BenchmarkPushPop(b *testing.B) {
	l := newLinks(1024)
	var s Stack
	for h := aba.Handle(1); h <= 1024; h++ {
		s.Push(l, h)
	}
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if h := s.Pop(l); h != aba.Nil {
				s.Push(l, h)
			}
		}
	})
}
