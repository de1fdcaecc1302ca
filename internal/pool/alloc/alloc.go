// Package alloc implements the allocator instance managed by the pool.
//
// An Allocator serves power-of-two size classes from 64 KiB chunks it
// reserves from a MemoryProvider and registers in the shared pagemap. Only
// the goroutine holding an instance may allocate or free through it. Frees
// of objects owned by another instance are batched in the outgoing remote
// cache and posted to the owner's message queue, which the owner (or the
// pool's maintenance sweep) drains later.
package alloc

import (
	"errors"
	"fmt"
	"unsafe"

	"braces.dev/errtrace"

	"github.com/kolkov/allocpool/internal/pool/aba"
	"github.com/kolkov/allocpool/internal/pool/address"
	"github.com/kolkov/allocpool/internal/pool/config"
	"github.com/kolkov/allocpool/internal/pool/logger"
	"github.com/kolkov/allocpool/internal/pool/pagemap"
	"github.com/kolkov/allocpool/internal/pool/provider"
	"github.com/kolkov/allocpool/internal/pool/remote"
)

// ErrTooLarge is returned for requests above MaxSize.
var ErrTooLarge = errors.New("alloc: request exceeds largest size class")

// Env is the state shared by every instance of one pool.
type Env struct {
	Provider provider.MemoryProvider
	Pagemap  *pagemap.Pagemap
	Router   remote.Router
	Config   config.Config
}

// freeObject overlays a free object's first word.
type freeObject struct {
	next unsafe.Pointer
}

type classState struct {
	free   unsafe.Pointer
	cursor unsafe.Pointer
	left   uintptr // bytes remaining after cursor in the current chunk
}

// Allocator is one allocator instance.
//
// Instances live in the pool's arena and are recycled, never destroyed.
// Init must run before any other method.
type Allocator struct {
	handle aba.Handle
	env    *Env

	stats      Stats
	queue      remote.Queue
	remote     remote.Cache
	quarantine Quarantine

	classes [NumClasses]classState
	chunks  []provider.Region
}

// Init constructs the instance in place.
func (a *Allocator) Init(h aba.Handle, env *Env) {
	a.handle = h
	a.env = env
	a.quarantine.Init(env.Config.Quarantine)
	a.InitMessageQueue()
}

// Handle returns the instance's identity.
func (a *Allocator) Handle() aba.Handle { return a.handle }

// ID returns the zero-based instance number.
func (a *Allocator) ID() uint32 { return a.handle.Index() }

// Stats returns the instance's counters.
func (a *Allocator) Stats() *Stats { return &a.stats }

// Quarantine returns the instance's quarantine.
func (a *Allocator) Quarantine() *Quarantine { return &a.quarantine }

// Queue returns the instance's incoming message queue.
func (a *Allocator) Queue() *remote.Queue { return &a.queue }

// Alloc returns an object of at least size bytes. The contents are
// unspecified.
func (a *Allocator) Alloc(size uintptr) (unsafe.Pointer, error) {
	class, ok := SizeToClass(size)
	if !ok {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %d bytes", ErrTooLarge, size))
	}

	cs := &a.classes[class]
	objSize := ClassSize(class)

	var p unsafe.Pointer
	switch {
	case cs.free != nil:
		p = cs.free
		obj := (*freeObject)(p)
		cs.free = obj.next
		obj.next = nil
	default:
		if cs.left == 0 {
			if err := a.refill(class); err != nil {
				return nil, errtrace.Wrap(err)
			}
		}
		p = cs.cursor
		cs.left -= objSize
		if cs.left > 0 {
			cs.cursor = address.Offset(p, objSize)
		} else {
			cs.cursor = nil
		}
	}

	a.stats.alloc(objSize)
	return p, nil
}

// refill reserves a fresh chunk for class and registers it.
func (a *Allocator) refill(class uint8) error {
	r, err := a.env.Provider.Reserve(ChunkSize, ChunkSize)
	if err != nil {
		return errtrace.Wrap(err)
	}
	a.env.Pagemap.Set(address.AddressOf(r.Base()), pagemap.Entry{Owner: a.handle, Class: class})
	a.chunks = append(a.chunks, r)
	a.stats.chunks.Add(1)

	cs := &a.classes[class]
	cs.cursor = r.Base()
	cs.left = r.Len()

	logger.Debug("chunk reserved", "alloc", a.ID(), "class", class, "base", fmt.Sprintf("%#x", address.AddressOf(r.Base())))
	return nil
}

// Dealloc frees p, which must have been returned by Alloc on any instance of
// the same pool. Freeing an address the pool does not know panics.
func (a *Allocator) Dealloc(p unsafe.Pointer) {
	if p == nil {
		return
	}
	addr := address.AddressOf(p)
	e, ok := a.env.Pagemap.Lookup(addr)
	if !ok {
		panic(fmt.Sprintf("alloc: free of unknown address %#x", addr))
	}

	if e.Owner == a.handle {
		a.deallocLocal(p, e.Class)
		return
	}

	a.remote.Dealloc(e.Owner, p, e.Class)
	a.stats.remoteSent.Add(1)
	if a.remote.Size() >= a.env.Config.RemoteBatch {
		a.PostRemote()
	}
}

func (a *Allocator) deallocLocal(p unsafe.Pointer, class uint8) {
	if !a.quarantine.Enabled() {
		a.reuse(p, class)
		return
	}
	full := a.quarantine.add(p, class)
	a.stats.quarantined.Store(uint64(a.quarantine.Len()))
	if full {
		n := a.quarantine.drain(a.reuse)
		a.stats.quarantined.Store(0)
		logger.Debug("quarantine released", "alloc", a.ID(), "objects", n)
	}
}

// reuse puts p back on its class free list.
func (a *Allocator) reuse(p unsafe.Pointer, class uint8) {
	cs := &a.classes[class]
	(*freeObject)(p).next = cs.free
	cs.free = p
	a.stats.dealloc(ClassSize(class))
}

// HandleMessageQueue delivers every message that has fully arrived.
// Returns the number of messages handled.
func (a *Allocator) HandleMessageQueue() int {
	n := 0
	for {
		m, ok := a.queue.Dequeue()
		if !ok {
			break
		}
		a.HandleDeallocRemote(m)
		n++
	}
	if a.remote.Size() >= a.env.Config.RemoteBatch {
		a.PostRemote()
	}
	return n
}

// HandleDeallocRemote frees the object described by m. A message for another
// instance is forwarded through the outgoing cache.
//
// m is not retained or relinked.
func (a *Allocator) HandleDeallocRemote(m *remote.Remote) {
	if m.Target != a.handle {
		a.remote.Dealloc(m.Target, m.Ptr, m.Class)
		return
	}
	a.stats.remoteReceived.Add(1)
	a.deallocLocal(m.Ptr, m.Class)
}

// InitMessageQueue installs a fresh sentinel on the incoming queue.
func (a *Allocator) InitMessageQueue() {
	a.queue.Init(new(remote.Remote))
}

// DestroyMessageQueue detaches the incoming queue and returns its sentinel.
// Pending messages follow the sentinel; the sentinel itself carries no free.
// Only valid while no other goroutine is posting to this instance.
func (a *Allocator) DestroyMessageQueue() *remote.Remote {
	return a.queue.Destroy()
}

// RemotePending returns the number of outgoing frees not yet posted.
func (a *Allocator) RemotePending() int {
	return a.remote.Size()
}

// PostRemote posts the outgoing cache to the owners' queues.
// Returns the number of messages posted.
func (a *Allocator) PostRemote() int {
	if a.remote.Size() == 0 {
		return 0
	}
	a.stats.RemotePost()
	return a.remote.Post(a.env.Router)
}
