// Package global implements the pool of allocator instances.
//
// The pool owns every allocator instance in the process. A goroutine that
// needs to allocate acquires an instance, uses it exclusively, and releases
// it back. Released instances wait on a lock-free idle stack until the next
// acquire; they are never destroyed.
//
// Structure:
//   - arena: fixed-size slots holding the instances, addressed by handle
//   - idle stack: ABA-guarded Treiber stack of released instances
//   - permanent list: append-only list of every instance ever built, in
//     construction order, used for statistics and diagnostics
//
// Memory freed by goroutine A for an instance nobody holds sits in that
// instance's message queue. CleanupUnused detaches the idle stack, drains
// every detached instance's queue and puts them back, so such memory is
// reclaimed without waiting for the next acquire.
package global

import (
	"fmt"
	"sync/atomic"

	"github.com/kolkov/allocpool/internal/pool/aba"
	"github.com/kolkov/allocpool/internal/pool/alloc"
	"github.com/kolkov/allocpool/internal/pool/arena"
	"github.com/kolkov/allocpool/internal/pool/config"
	"github.com/kolkov/allocpool/internal/pool/logger"
	"github.com/kolkov/allocpool/internal/pool/pagemap"
	"github.com/kolkov/allocpool/internal/pool/provider"
	"github.com/kolkov/allocpool/internal/pool/remote"
	"github.com/kolkov/allocpool/internal/pool/stack"
	"github.com/kolkov/allocpool/internal/pool/stackdepot"
)

// node is one arena slot: an instance plus the links the pool threads
// through it.
type node struct {
	alloc alloc.Allocator

	// idleNext links the node on the idle stack. Owned by the stack while
	// the node is linked there.
	idleNext atomic.Uint32

	// listNext links the node on the permanent list. Written once.
	listNext atomic.Uint32

	// inUse is true between Acquire and Release.
	inUse atomic.Bool

	// site is the stackdepot hash of the last acquire, when tracked.
	site atomic.Uint64
}

// Pool manages allocator instances.
//
// Thread Safety: Acquire, Release, Iterate, Count, AggregateStats and
// CleanupUnused are safe for concurrent use. CheckEmpty requires quiescence.
type Pool struct {
	cfg   config.Config
	env   alloc.Env
	arena arena.Arena[node]

	idle stack.Stack

	// Permanent list head and tail, appended in the manner of a
	// Michael-Scott queue. Never shrinks.
	listHead atomic.Uint32
	listTail atomic.Uint32

	// releases counts Release calls for release-triggered cleanup.
	releases atomic.Uint64
}

// New returns an empty pool drawing memory from mp.
func New(cfg config.Config, mp provider.MemoryProvider) *Pool {
	p := &Pool{cfg: cfg}
	p.env = alloc.Env{
		Provider: mp,
		Pagemap:  pagemap.New(alloc.ChunkBits),
		Router:   p,
		Config:   cfg,
	}
	p.idle.Init()
	return p
}

// Config returns the pool's configuration.
func (p *Pool) Config() config.Config { return p.cfg }

// Provider returns the pool's memory provider.
func (p *Pool) Provider() provider.MemoryProvider { return p.env.Provider }

// Acquire returns an instance for the caller's exclusive use.
//
// An idle instance is reused when one is available. Otherwise a new one is
// built in the arena and appended to the permanent list before it is
// returned. There is no upper bound on the number of instances.
func (p *Pool) Acquire() *alloc.Allocator {
	h := p.idle.Pop(p.links())

	var n *node
	if h == aba.Nil {
		h, n = p.arena.New(func(n *node, h aba.Handle) {
			n.alloc.Init(h, &p.env)
		})
		p.appendList(h)
		logger.Debug("allocator constructed", "id", h.Index())
	} else {
		n = p.arena.Get(h)
	}

	if !n.inUse.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("pool: allocator %d popped from idle stack while in use", h.Index()))
	}
	if p.cfg.TrackAcquire {
		n.site.Store(stackdepot.Capture(1))
	}
	return &n.alloc
}

// Release returns a to the idle stack. The caller must not use a afterwards
// until it acquires it again.
//
// Frees a has buffered for other instances are posted first. Releasing an
// instance that is not in use is a fatal diagnostic.
func (p *Pool) Release(a *alloc.Allocator) {
	n := p.nodeOf(a)
	if !n.inUse.CompareAndSwap(true, false) {
		panic(fmt.Sprintf("pool: allocator %d released while idle", a.ID()))
	}

	a.PostRemote()
	p.idle.Push(p.links(), a.Handle())

	if every := p.cfg.CleanupEvery; every > 0 && p.releases.Add(1)%every == 0 {
		p.CleanupUnused()
	}
}

// CleanupUnused drains the message queues of every idle instance.
//
// The whole idle stack is detached with one exchange, each detached instance
// handles the frees that reached it while idle, and the batch is reattached
// with one more exchange. Instances acquired concurrently are not touched;
// an acquire that finds the stack empty meanwhile builds a new instance.
//
// Returns the number of messages handled.
func (p *Pool) CleanupUnused() int {
	first := p.idle.PopAll()
	if first == aba.Nil {
		return 0
	}

	handled, count := 0, 0
	last := first
	for h := first; h != aba.Nil; {
		n := p.arena.Get(h)
		handled += n.alloc.HandleMessageQueue()
		count++
		last = h
		h = aba.Handle(n.idleNext.Load())
	}
	p.idle.PushRange(p.links(), first, last)

	logger.Debug("cleanup sweep", "idle", count, "messages", handled)
	return handled
}

// Queue implements remote.Router.
func (p *Pool) Queue(target aba.Handle) *remote.Queue {
	return p.arena.Get(target).alloc.Queue()
}

// Lookup returns the instance for h, or nil for aba.Nil.
func (p *Pool) Lookup(h aba.Handle) *alloc.Allocator {
	n := p.arena.Get(h)
	if n == nil {
		return nil
	}
	return &n.alloc
}

// InUse reports whether a is currently acquired.
func (p *Pool) InUse(a *alloc.Allocator) bool {
	return p.nodeOf(a).inUse.Load()
}

// AggregateStats sums the statistics of every instance.
func (p *Pool) AggregateStats() alloc.Snapshot {
	var total alloc.Snapshot
	for a := range p.All() {
		total.Add(a.Stats().Snapshot())
	}
	return total
}

// nodeOf maps an instance back to its arena slot. An instance from another
// pool is a fatal diagnostic.
func (p *Pool) nodeOf(a *alloc.Allocator) *node {
	n := p.arena.Get(a.Handle())
	if n == nil || &n.alloc != a {
		panic(fmt.Sprintf("pool: allocator %d does not belong to this pool", a.ID()))
	}
	return n
}

// idleLinks exposes the idle-stack link of each node.
type idleLinks Pool

func (p *Pool) links() *idleLinks { return (*idleLinks)(p) }

func (l *idleLinks) Next(h aba.Handle) aba.Handle {
	return aba.Handle(l.arena.Get(h).idleNext.Load())
}

func (l *idleLinks) SetNext(h, next aba.Handle) {
	l.arena.Get(h).idleNext.Store(uint32(next))
}
