package session

import (
	"context"
	"sync"
	"time"
)

// EventType names a store lifecycle signal.
type EventType string

const (
	// EventConnect is emitted once storage is initialized and the store is usable.
	EventConnect EventType = "connect"
	// EventDisconnect is emitted when initialization fails or the store is closed.
	EventDisconnect EventType = "disconnect"
)

// Event is a lifecycle signal. Err is set on a disconnect caused by a failure.
type Event struct {
	Type EventType
	Err  error
	At   time.Time
}

// eventHub fans events out to subscribers without blocking the publisher.
// The latest event is replayed to new subscribers so a host that subscribes
// after Open still learns the outcome.
type eventHub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	last   *Event
	closed bool
	done   chan struct{}
}

func newEventHub() *eventHub {
	return &eventHub{
		subs: make(map[chan Event]struct{}),
		done: make(chan struct{}),
	}
}

func (h *eventHub) subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 4)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil {
		ch <- *h.last
	}
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			h.unsubscribe(ch)
		case <-h.done:
		}
	}()

	return ch
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.last = &ev
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber, drop
		}
	}
}

func (h *eventHub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// close closes every subscription. Safe to call more than once.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for ch := range h.subs {
		close(ch)
	}
	clear(h.subs)
}
