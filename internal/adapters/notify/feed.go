// Package notify holds the Notifier and Renderer adapters used by the local
// HTTP API: an in-memory feed the rendering layer polls, and a slog notifier.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// DefaultCapacity bounds the number of undrained notifications.
const DefaultCapacity = 200

// CollectionState is the render bookkeeping for one collection.
type CollectionState struct {
	Collection domain.CollectionName `json:"collection"`
	Revision   uint64                `json:"revision"`
	RenderedAt time.Time             `json:"renderedAt"`
}

// Feed buffers notifications until drained and counts renders per
// collection. A client redraws a collection when its revision moves.
type Feed struct {
	mu       sync.Mutex
	pending  []ports.Notification
	dropped  int
	capacity int
	states   map[domain.CollectionName]CollectionState
	now      func() time.Time
}

var (
	_ ports.Notifier = (*Feed)(nil)
	_ ports.Renderer = (*Feed)(nil)
)

// NewFeed creates a feed holding at most capacity notifications. The oldest
// are dropped first.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		states:   make(map[domain.CollectionName]CollectionState),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for render timestamps.
func (f *Feed) WithClock(now func() time.Time) *Feed {
	f.now = now
	return f
}

// Notify queues n.
func (f *Feed) Notify(_ context.Context, n ports.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == f.capacity {
		f.pending = f.pending[1:]
		f.dropped++
	}
	f.pending = append(f.pending, n)
}

// Render bumps the revision of name. The state itself is read back through
// the services, so it is not retained.
func (f *Feed) Render(_ context.Context, name domain.CollectionName, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.states[name]
	st.Collection = name
	st.Revision++
	st.RenderedAt = f.now().UTC()
	f.states[name] = st
}

// Drain returns every queued notification in arrival order and empties the
// queue. It never returns nil.
func (f *Feed) Drain() []ports.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.pending
	if out == nil {
		out = []ports.Notification{}
	}
	f.pending = nil
	return out
}

// Dropped returns how many notifications were discarded for capacity.
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// State returns the render state of every collection in commit order.
// Collections never rendered report revision 0.
func (f *Feed) State() []CollectionState {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := domain.AllCollections()
	out := make([]CollectionState, len(names))
	for i, name := range names {
		st := f.states[name]
		st.Collection = name
		out[i] = st
	}
	return out
}

// Multi fans a notification out to several notifiers.
type Multi []ports.Notifier

// Notify implements ports.Notifier.
func (m Multi) Notify(ctx context.Context, n ports.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
