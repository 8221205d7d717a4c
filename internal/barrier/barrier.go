// Package barrier implements a reusable count-down start barrier.
//
// Go's standard library has no equivalent of Rust's std::sync::Barrier (what the reference
// implementation of this shepherd used), so this is a small port of that primitive: N
// participants each call Arrive, and every call blocks until all N have arrived, at which point
// all of them unblock together.
//
// The shepherd uses this to guarantee that every monitor has subscribed to the event bus before
// any of them publishes — closing the race window where an early task event could be missed by a
// monitor that hadn't subscribed yet.
package barrier

import "sync"

type Barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

// New creates a barrier that releases once n participants have called Arrive.
func New(n int) *Barrier {
	return &Barrier{
		n:       n,
		release: make(chan struct{}),
	}
}

// Arrive blocks until n participants (across all callers of Arrive on this barrier) have arrived.
func (b *Barrier) Arrive() {
	b.mu.Lock()
	b.arrived++
	if b.arrived >= b.n {
		close(b.release)
		b.mu.Unlock()
		return
	}
	release := b.release
	b.mu.Unlock()

	<-release
}
