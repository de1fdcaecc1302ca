package allocpool

import (
	"context"
	"time"
	"unsafe"

	"braces.dev/errtrace"

	"github.com/kolkov/allocpool/internal/pool/alloc"
	"github.com/kolkov/allocpool/internal/pool/global"
)

// Allocator is one allocator instance.
type Allocator = alloc.Allocator

// Stats is a point-in-time copy of allocator statistics.
type Stats = alloc.Snapshot

// LeakError is returned by CheckEmpty when memory is still allocated.
type LeakError = global.LeakError

// ErrTooLarge is returned for requests above MaxSize.
var ErrTooLarge = alloc.ErrTooLarge

// MaxSize is the largest allocation served.
const MaxSize = alloc.MaxSize

// Acquire takes an allocator instance for the caller's exclusive use.
func Acquire() *Allocator {
	return global.Current().Acquire()
}

// Release returns a to the pool. a must not be used until acquired again.
func Release(a *Allocator) {
	global.Current().Release(a)
}

// Malloc allocates size bytes through a briefly acquired instance.
func Malloc(size uintptr) (unsafe.Pointer, error) {
	pool := global.Current()
	a := pool.Acquire()
	defer pool.Release(a)
	return errtrace.Wrap2(a.Alloc(size))
}

// Free frees p through a briefly acquired instance.
func Free(p unsafe.Pointer) {
	pool := global.Current()
	a := pool.Acquire()
	a.Dealloc(p)
	pool.Release(a)
}

// CleanupUnused drains the remote queues of idle instances and returns the
// number of frees delivered.
func CleanupUnused() int {
	return global.Current().CleanupUnused()
}

// ErrBadInterval is returned by RunSweeper for a non-positive interval.
var ErrBadInterval = global.ErrBadInterval

// RunSweeper calls CleanupUnused every interval until ctx is done and returns
// the number of frees delivered.
func RunSweeper(ctx context.Context, interval time.Duration) (int, error) {
	return errtrace.Wrap2((&global.Sweeper{Pool: global.Current(), Interval: interval}).Run(ctx))
}

// CheckEmpty verifies that every allocation has been freed and every
// instance released. It must not run concurrently with other use of the
// pool. The error is a *LeakError.
func CheckEmpty() error {
	return errtrace.Wrap(global.Current().CheckEmpty())
}

// Instances returns the number of allocator instances ever built.
func Instances() int {
	return global.Current().Count()
}

// AggregateStats sums the statistics of every instance.
func AggregateStats() Stats {
	return global.Current().AggregateStats()
}

// ForEach calls fn for each instance in construction order until fn returns
// false.
func ForEach(fn func(a *Allocator, s Stats) bool) {
	for a := range global.Current().All() {
		if !fn(a, a.Stats().Snapshot()) {
			return
		}
	}
}
