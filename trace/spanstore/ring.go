package spanstore

import (
	"sync"

	"github.com/driftloop/telemetry/trace"
)

// ring is a fixed-capacity circular buffer of *trace.SpanData; adding
// past capacity overwrites the oldest entry.
type ring struct {
	mu     sync.RWMutex
	items  []*trace.SpanData
	cap    int
	next   int
	filled bool
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{items: make([]*trace.SpanData, capacity), cap: capacity}
}

func (r *ring) add(data *trace.SpanData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = data
	r.next++
	if r.next == r.cap {
		r.next = 0
		r.filled = true
	}
}

func (r *ring) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.filled {
		return r.cap
	}
	return r.next
}

// snapshot copies the current contents, oldest first, without holding
// the lock for longer than the copy itself.
func (r *ring) snapshot() []*trace.SpanData {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.filled {
		out := make([]*trace.SpanData, r.next)
		copy(out, r.items[:r.next])
		return out
	}

	out := make([]*trace.SpanData, r.cap)
	copy(out, r.items[r.next:])
	copy(out[r.cap-r.next:], r.items[:r.next])
	return out
}
