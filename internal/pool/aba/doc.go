// Package aba implements the ABA-guarded atomic slot used by every lock-free
// stack in the pool.
//
// A naive compare-and-swap on a node reference is unsound for a lock-free
// stack: between a reader's load and its CAS, the node can be popped,
// recycled and pushed again, so the stale comparand matches by coincidence
// and the update corrupts the stack. A slot therefore pairs the reference
// with a generation that advances on every successful update, and an update
// only succeeds if both still match.
//
// # Strategies
//
// Three interchangeable strategies implement the same contract
// (Init / Peek / Read / CompareExchange):
//
//   - TaggedSlot: handle and 32-bit generation packed into one 64-bit word,
//     updated with a single CAS over the whole unit. This is the double-word
//     strategy and the default.
//   - BoxedSlot: an atomic pointer to an immutable cell. The cell plays the
//     role of a capability: the garbage collector never reuses a cell while a
//     snapshot still references it, so a stale snapshot can never match and
//     no explicit generation is stored.
//   - PlainSlot: a bare atomic handle with no ABA protection. Only sound when
//     the guarded nodes are never freed and only recycled through the same
//     structure, as the allocator pool does.
//
// One strategy is selected at build time and exported as Slot, Cmp and
// Strategy:
//
//	go build                  # TaggedSlot
//	go build -tags aba_boxed  # BoxedSlot
//	go build -tags aba_plain  # PlainSlot
//
// # Retry discipline
//
// Callers must read a snapshot, compute the new state purely from it, attempt
// CompareExchange and on failure repeat with the refreshed snapshot, carrying
// no other assumption across iterations:
//
//	cmp := slot.Read()
//	for {
//		next := compute(cmp.Ptr())
//		if slot.CompareExchange(&cmp, next) {
//			break
//		}
//	}
//
// All loads and stores inside a slot only need to keep a node from being
// handed out twice; the CAS provides that. Publication of payload state is
// the caller's responsibility.
package aba
