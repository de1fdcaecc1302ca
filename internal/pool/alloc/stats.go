package alloc

import "sync/atomic"

// Stats counts the activity of one allocator instance.
//
// Counters are written by the goroutine holding the instance and may be read
// by anyone, so each is atomic. A Snapshot taken while the instance is in use
// is not a consistent cut across counters.
type Stats struct {
	allocs         atomic.Uint64
	deallocs       atomic.Uint64
	bytesInUse     atomic.Int64
	remoteSent     atomic.Uint64
	remoteReceived atomic.Uint64
	remotePosts    atomic.Uint64
	chunks         atomic.Uint64
	quarantined    atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Allocs         uint64 `json:"allocs"`
	Deallocs       uint64 `json:"deallocs"`
	BytesInUse     int64  `json:"bytes_in_use"`
	RemoteSent     uint64 `json:"remote_sent"`
	RemoteReceived uint64 `json:"remote_received"`
	RemotePosts    uint64 `json:"remote_posts"`
	Chunks         uint64 `json:"chunks"`
	Quarantined    uint64 `json:"quarantined"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Allocs:         s.allocs.Load(),
		Deallocs:       s.deallocs.Load(),
		BytesInUse:     s.bytesInUse.Load(),
		RemoteSent:     s.remoteSent.Load(),
		RemoteReceived: s.remoteReceived.Load(),
		RemotePosts:    s.remotePosts.Load(),
		Chunks:         s.chunks.Load(),
		Quarantined:    s.quarantined.Load(),
	}
}

// IsEmpty reports whether the instance has no outstanding allocations.
func (s *Stats) IsEmpty() bool {
	return s.Snapshot().IsEmpty()
}

// RemotePost records one post of the outgoing remote cache.
func (s *Stats) RemotePost() {
	s.remotePosts.Add(1)
}

func (s *Stats) alloc(size uintptr) {
	s.allocs.Add(1)
	s.bytesInUse.Add(int64(size))
}

func (s *Stats) dealloc(size uintptr) {
	s.deallocs.Add(1)
	s.bytesInUse.Add(-int64(size))
}

// IsEmpty reports whether every allocation has been freed.
func (s Snapshot) IsEmpty() bool {
	return s.Allocs == s.Deallocs
}

// Outstanding returns the number of live allocations.
func (s Snapshot) Outstanding() uint64 {
	return s.Allocs - s.Deallocs
}

// Add accumulates o into s.
func (s *Snapshot) Add(o Snapshot) {
	s.Allocs += o.Allocs
	s.Deallocs += o.Deallocs
	s.BytesInUse += o.BytesInUse
	s.RemoteSent += o.RemoteSent
	s.RemoteReceived += o.RemoteReceived
	s.RemotePosts += o.RemotePosts
	s.Chunks += o.Chunks
	s.Quarantined += o.Quarantined
}
