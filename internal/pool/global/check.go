package global

import (
	"fmt"
	"strings"

	"github.com/kolkov/allocpool/internal/pool/logger"
	"github.com/kolkov/allocpool/internal/pool/stackdepot"
)

// Leak describes one instance that failed the emptiness check.
type Leak struct {
	// ID is the instance number.
	ID uint32

	// Outstanding is the number of allocations not yet freed.
	Outstanding uint64

	// Held is true if the instance was still acquired.
	Held bool

	// Site is the stackdepot hash of the last acquire, or 0 if acquire
	// tracking is off.
	Site uint64
}

// LeakError reports that not every instance was empty.
type LeakError struct {
	// Allocators is the number of instances on the permanent list.
	Allocators int

	// Empty is the number of instances found empty.
	Empty int

	// Leaks lists the instances that were not empty.
	Leaks []Leak
}

// Error implements error.
func (e *LeakError) Error() string {
	return fmt.Sprintf("pool: incorrect number of allocators: %d of %d empty", e.Empty, e.Allocators)
}

// Report renders a multi-line diagnostic listing each leaking instance and,
// when tracked, where it was last acquired:
//
//	==================
//	ALLOCPOOL: incorrect number of allocators (1 of 2 empty)
//	allocator 1: 3 outstanding allocations, held
//	  last acquired at:
//	  main.worker()
//	      /path/to/file.go:45
//	==================
func (e *LeakError) Report() string {
	var b strings.Builder
	b.WriteString("==================\n")
	fmt.Fprintf(&b, "ALLOCPOOL: incorrect number of allocators (%d of %d empty)\n", e.Empty, e.Allocators)
	for _, l := range e.Leaks {
		fmt.Fprintf(&b, "allocator %d: %d outstanding allocations", l.ID, l.Outstanding)
		if l.Held {
			b.WriteString(", held")
		}
		b.WriteString("\n")
		if l.Site != 0 {
			b.WriteString("  last acquired at:\n")
			b.WriteString(stackdepot.Get(l.Site).Format())
		}
	}
	b.WriteString("==================\n")
	return b.String()
}

// CheckEmpty forces every instance to quiescence and verifies that all
// memory has been freed.
//
// For each instance in turn the incoming queue is destroyed and every
// pending message handled, the quarantine (if enabled) is released, the
// instance is counted, its queue is re-initialised, and buffered outgoing
// frees are posted. Posting can deliver new messages to instances already
// visited, so the pass repeats until no instance posts.
//
// An instance counts as empty when it has no outstanding allocations and is
// not acquired. Returns a *LeakError if any instance is not empty.
//
// CheckEmpty is a diagnostic. No other goroutine may use the pool while it
// runs.
func (p *Pool) CheckEmpty() error {
	total := p.Count()

	var (
		empty int
		leaks []Leak
	)
	for pass := 1; ; pass++ {
		empty, leaks = 0, leaks[:0]
		done := true

		for a := range p.All() {
			n := p.nodeOf(a)

			sentinel := a.DestroyMessageQueue()
			for m := sentinel.Next(); m != nil; {
				next := m.Next()
				a.HandleDeallocRemote(m)
				m = next
			}

			if p.cfg.Quarantine.Enabled {
				a.Quarantine().DebugDrainAll(a)
			}

			s := a.Stats().Snapshot()
			held := n.inUse.Load()
			if s.IsEmpty() && !held {
				empty++
			} else {
				leaks = append(leaks, Leak{
					ID:          a.ID(),
					Outstanding: s.Outstanding(),
					Held:        held,
					Site:        n.site.Load(),
				})
			}

			if p.cfg.Quarantine.Enabled {
				a.Quarantine().Init(p.cfg.Quarantine)
			}
			a.InitMessageQueue()

			if a.RemotePending() > 0 {
				a.PostRemote()
				done = false
			}
		}

		if done {
			logger.Debug("empty check", "allocators", total, "empty", empty, "passes", pass)
			break
		}
	}

	if empty != total {
		return &LeakError{Allocators: total, Empty: empty, Leaks: leaks}
	}
	return nil
}

// DebugCheckEmpty is CheckEmpty that panics with the *LeakError.
func (p *Pool) DebugCheckEmpty() {
	if err := p.CheckEmpty(); err != nil {
		panic(err)
	}
}
