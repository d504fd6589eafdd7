package audit

import (
	"sync"

	"github.com/lunia-systems/lunia-console/internal/model"
)

// DefaultCapacity matches the dashboard's local action history depth.
const DefaultCapacity = 50

// Ring is a bounded newest-first buffer of completed control actions,
// shared across any number of observers. It lives in memory only and is
// cleared by process restart.
type Ring struct {
	mu       sync.Mutex
	capacity int
	entries  []model.ActionRecord
	subs     map[int]func(model.ActionRecord)
	nextSub  int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		capacity: capacity,
		entries:  make([]model.ActionRecord, 0, capacity),
		subs:     make(map[int]func(model.ActionRecord)),
	}
}

// Append records an entry and notifies every current subscriber before
// returning. Subscriber callbacks run under the ring's lock so each
// observer sees appends exactly once, in append order; they must not call
// back into the ring.
func (r *Ring) Append(entry model.ActionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append([]model.ActionRecord{entry}, r.entries...)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[:r.capacity]
	}
	for _, fn := range r.subs {
		fn(entry)
	}
}

// Entries returns a copy of the buffer, newest first.
func (r *Ring) Entries() []model.ActionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ActionRecord, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Subscribe registers a callback for future appends. The returned func
// cancels the subscription; cancelling twice is a no-op.
func (r *Ring) Subscribe(fn func(model.ActionRecord)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}
