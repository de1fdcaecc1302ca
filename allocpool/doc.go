// Package allocpool provides the process-wide pool of allocator instances.
//
// Each goroutine that allocates takes an instance from the pool, uses it
// exclusively and gives it back. Instances are recycled through a lock-free
// idle stack and never destroyed. Objects may be freed through any instance:
// a free of memory owned by another instance travels to the owner as a
// remote message and is reclaimed when the owner, or the pool's cleanup
// sweep, drains its queue.
//
// # Quick Start
//
//	a := allocpool.Acquire()
//	p, err := a.Alloc(128)
//	if err != nil {
//		return err
//	}
//	// ... use p ...
//	a.Dealloc(p)
//	allocpool.Release(a)
//
// For one-off allocations, [Malloc] and [Free] acquire and release an
// instance around a single call.
//
// # Maintenance
//
// [CleanupUnused] drains the remote queues of idle instances. It runs
// automatically every cleanup_every releases and can be driven on a timer
// with [RunSweeper]. [CheckEmpty] verifies at shutdown that every allocation
// was freed and every instance released.
//
// # Configuration
//
// Options are read once from ALLOCPOOL_OPTIONS, a space-separated list of
// key=value pairs:
//
//	ALLOCPOOL_OPTIONS="quarantine=1 track_acquire=1 log=debug" ./myprogram
//
// The ABA protection of the idle stack is chosen at build time: the default
// packs a generation counter next to each handle; -tags aba_boxed uses
// immutable boxed cells; -tags aba_plain uses a bare handle with no
// protection.
package allocpool
