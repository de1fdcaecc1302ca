package global

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/allocpool/internal/pool/aba"
	"github.com/kolkov/allocpool/internal/pool/alloc"
	"github.com/kolkov/allocpool/internal/pool/config"
	"github.com/kolkov/allocpool/internal/pool/provider"
)

func newTestPool(t *testing.T, mutate func(*config.Config)) *Pool {
	t.Helper()
	cfg := config.Default()
	cfg.CleanupEvery = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, provider.NewHeapProvider())
}

func mustAlloc(t *testing.T, a *alloc.Allocator, size uintptr) unsafe.Pointer {
	t.Helper()
	p, err := a.Alloc(size)
	require.NoError(t, err)
	return p
}

func TestAcquireReusesReleased(t *testing.T) {
	p := newTestPool(t, nil)

	a := p.Acquire()
	require.NotNil(t, a)
	assert.True(t, p.InUse(a))

	p.Release(a)
	assert.False(t, p.InUse(a))

	b := p.Acquire()
	assert.Same(t, a, b)
	assert.Equal(t, 1, p.Count())
}

func TestAcquireBuildsWhenIdleEmpty(t *testing.T) {
	p := newTestPool(t, nil)

	a := p.Acquire()
	b := p.Acquire()
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, p.Count())
	assert.Same(t, a, p.Lookup(a.Handle()))
	assert.Nil(t, p.Lookup(aba.Nil))
}

func TestDoubleReleasePanics(t *testing.T) {
	p := newTestPool(t, nil)
	a := p.Acquire()
	p.Release(a)
	assert.Panics(t, func() { p.Release(a) })
}

func TestForeignAllocatorPanics(t *testing.T) {
	p1 := newTestPool(t, nil)
	p2 := newTestPool(t, nil)
	p2.Acquire()

	a := p1.Acquire()
	assert.Panics(t, func() { p2.Release(a) })
}

// Every instance ever built is visited exactly once, in the same order on
// every traversal.
func TestIterationCompleteness(t *testing.T) {
	p := newTestPool(t, nil)

	const workers, perWorker = 8, 4
	held := make([][]*alloc.Allocator, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				held[w] = append(held[w], p.Acquire())
			}
		}(w)
	}
	wg.Wait()

	var first []uint32
	for a := range p.All() {
		first = append(first, a.ID())
	}
	require.Len(t, first, workers*perWorker)

	seen := make(map[uint32]bool)
	for _, id := range first {
		assert.False(t, seen[id], "allocator %d visited twice", id)
		seen[id] = true
	}

	for _, hs := range held {
		for _, a := range hs {
			p.Release(a)
		}
	}

	var second []uint32
	for a := p.Iterate(); a != nil; a = p.IterateFrom(a) {
		second = append(second, a.ID())
	}
	assert.Equal(t, first, second)
	assert.Equal(t, workers*perWorker, p.Count())
}

func TestAllStopsEarly(t *testing.T) {
	p := newTestPool(t, nil)
	for i := 0; i < 3; i++ {
		p.Acquire()
	}
	n := 0
	for range p.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

// Objects allocated on one instance and freed on another balance out after
// the empty check delivers every pending message.
func TestCheckEmptyBalanced(t *testing.T) {
	p := newTestPool(t, func(c *config.Config) { c.RemoteBatch = 16 })

	const workers, objects = 8, 100
	ptrs := make([][]unsafe.Pointer, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			a := p.Acquire()
			defer p.Release(a)
			for i := 0; i < objects; i++ {
				ptr, err := a.Alloc(uintptr(16 + i*8))
				if err != nil {
					panic(err)
				}
				ptrs[w] = append(ptrs[w], ptr)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*objects), p.AggregateStats().Outstanding())

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			a := p.Acquire()
			defer p.Release(a)
			for _, ptr := range ptrs[(w+1)%workers] {
				a.Dealloc(ptr)
			}
		}(w)
	}
	wg.Wait()

	require.NoError(t, p.CheckEmpty())
	assert.NotPanics(t, p.DebugCheckEmpty)

	total := p.AggregateStats()
	assert.True(t, total.IsEmpty())
	assert.Zero(t, total.BytesInUse)
}

func TestCheckEmptyDetectsWithheldRelease(t *testing.T) {
	p := newTestPool(t, func(c *config.Config) { c.TrackAcquire = true })

	leaky := p.Acquire()
	ptr := mustAlloc(t, leaky, 48)

	other := p.Acquire()
	p.Release(other)

	err := p.CheckEmpty()
	var leak *LeakError
	require.ErrorAs(t, err, &leak)
	assert.Equal(t, 2, leak.Allocators)
	assert.Equal(t, 1, leak.Empty)
	require.Len(t, leak.Leaks, 1)
	assert.Equal(t, leaky.ID(), leak.Leaks[0].ID)
	assert.Equal(t, uint64(1), leak.Leaks[0].Outstanding)
	assert.True(t, leak.Leaks[0].Held)
	assert.NotZero(t, leak.Leaks[0].Site)
	assert.Contains(t, err.Error(), "incorrect number of allocators")
	assert.Contains(t, leak.Report(), "last acquired at:")

	assert.Panics(t, p.DebugCheckEmpty)

	leaky.Dealloc(ptr)
	p.Release(leaky)
	assert.NoError(t, p.CheckEmpty())
}

func TestCheckEmptyReleasesQuarantine(t *testing.T) {
	p := newTestPool(t, func(c *config.Config) {
		c.Quarantine = config.Quarantine{Enabled: true, PerAllocThreshold: 1 << 20}
	})

	a := p.Acquire()
	a.Dealloc(mustAlloc(t, a, 64))
	assert.Equal(t, 1, a.Quarantine().Len())
	p.Release(a)

	require.NoError(t, p.CheckEmpty())
	assert.Zero(t, a.Quarantine().Len())
}

// M frees posted to an idle instance are all delivered by one sweep, once
// each, and the instance is back on the idle stack afterwards.
func TestCleanupUnusedDrainsIdle(t *testing.T) {
	p := newTestPool(t, func(c *config.Config) { c.RemoteBatch = 1 })

	const producers, perProducer = 4, 25
	owner := p.Acquire()
	var held []*alloc.Allocator
	for i := 0; i < producers; i++ {
		held = append(held, p.Acquire())
	}

	var objs []unsafe.Pointer
	for i := 0; i < producers*perProducer; i++ {
		objs = append(objs, mustAlloc(t, owner, 32))
	}
	p.Release(owner)

	var wg sync.WaitGroup
	for i, a := range held {
		wg.Add(1)
		go func(i int, a *alloc.Allocator) {
			defer wg.Done()
			for _, ptr := range objs[i*perProducer : (i+1)*perProducer] {
				a.Dealloc(ptr)
			}
		}(i, a)
	}
	wg.Wait()

	assert.False(t, owner.Stats().IsEmpty())
	assert.Equal(t, producers*perProducer, p.CleanupUnused())

	s := owner.Stats().Snapshot()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, uint64(producers*perProducer), s.RemoteReceived)
	assert.Equal(t, uint64(producers*perProducer), s.Deallocs)
	assert.Zero(t, p.CleanupUnused())

	assert.Same(t, owner, p.Acquire())
	p.Release(owner)
	for _, a := range held {
		p.Release(a)
	}
	assert.NoError(t, p.CheckEmpty())
}

func TestCleanupUnusedEmptyStack(t *testing.T) {
	p := newTestPool(t, nil)
	assert.Zero(t, p.CleanupUnused())
	p.Acquire()
	assert.Zero(t, p.CleanupUnused())
}

func TestReleaseTriggersCleanup(t *testing.T) {
	p := newTestPool(t, func(c *config.Config) { c.CleanupEvery = 2 })

	owner, other := p.Acquire(), p.Acquire()
	ptr := mustAlloc(t, owner, 16)
	p.Release(owner)

	// A free for owner is buffered while owner is idle.
	other.Dealloc(ptr)
	assert.False(t, owner.Stats().IsEmpty())

	// Second release posts the free and then sweeps the idle stack.
	p.Release(other)
	assert.True(t, owner.Stats().IsEmpty())
}

func TestSweeperDrainsIdle(t *testing.T) {
	p := newTestPool(t, nil)

	owner := p.Acquire()
	ptr := mustAlloc(t, owner, 16)
	other := p.Acquire()
	p.Release(owner)

	other.Dealloc(ptr)
	other.PostRemote()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int)
	go func() {
		n, err := (&Sweeper{Pool: p, Interval: time.Millisecond}).Run(ctx)
		assert.NoError(t, err)
		done <- n
	}()

	require.Eventually(t, owner.Stats().IsEmpty, 2*time.Second, time.Millisecond)
	cancel()
	assert.Equal(t, 1, <-done)
}

func TestSweeperRejectsBadInterval(t *testing.T) {
	p := newTestPool(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, d := range []time.Duration{0, -time.Second} {
		n, err := (&Sweeper{Pool: p, Interval: d}).Run(ctx)
		assert.ErrorIs(t, err, ErrBadInterval, "interval %v", d)
		assert.Zero(t, n)
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	if aba.Strategy == "plain" {
		t.Skip("plain strategy does not guard the idle stack against ABA")
	}
	p := newTestPool(t, func(c *config.Config) { c.CleanupEvery = 64 })

	var owners sync.Map // handle -> *atomic.Int32
	var wg sync.WaitGroup
	var violations atomic.Int32
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				a := p.Acquire()
				v, _ := owners.LoadOrStore(a.Handle(), new(atomic.Int32))
				c := v.(*atomic.Int32)
				if c.Add(1) != 1 {
					violations.Add(1)
				}
				c.Add(-1)
				p.Release(a)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, violations.Load(), "an instance was held by two goroutines")
	assert.NoError(t, p.CheckEmpty())
}

func TestCurrentIsSingleton(t *testing.T) {
	assert.Same(t, Current(), Current())
}
