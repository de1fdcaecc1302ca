package remote

import "sync/atomic"

// Queue is an intrusive multi-producer, single-consumer message queue.
//
// The queue always holds a sentinel at its front. Producers append with one
// atomic swap of the back pointer; the consumer follows links from the
// sentinel. A dequeued message becomes the new sentinel, so it must not be
// relinked by the consumer.
//
// Init must run before use. Destroy and Init are only valid while no producer
// is enqueueing.
type Queue struct {
	back  atomic.Pointer[Remote]
	front *Remote // consumer-owned
}

// Init installs stub as the sentinel.
func (q *Queue) Init(stub *Remote) {
	stub.SetNext(nil)
	q.front = stub
	q.back.Store(stub)
}

// IsEmpty reports whether no message is pending. Consumer only.
func (q *Queue) IsEmpty() bool {
	return q.back.Load() == q.front
}

// Enqueue appends an already linked chain first..last. Safe for any number of
// concurrent producers.
func (q *Queue) Enqueue(first, last *Remote) {
	last.SetNext(nil)
	prev := q.back.Swap(last)
	// Between the swap and this store the chain is briefly unreachable from
	// the front; the consumer treats that as "not yet arrived".
	prev.SetNext(first)
}

// Dequeue returns the oldest pending message, or false if none has fully
// arrived yet. Consumer only.
func (q *Queue) Dequeue() (*Remote, bool) {
	next := q.front.Next()
	if next == nil {
		return nil, false
	}
	q.front = next
	return next, true
}

// Destroy detaches the queue and returns its sentinel. Pending messages follow
// the sentinel through Next. The queue must be re-initialised before reuse.
func (q *Queue) Destroy() *Remote {
	front := q.front
	q.front = nil
	q.back.Store(nil)
	return front
}
