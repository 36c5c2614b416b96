// Package registry fans out per-order messages to live subscribers.
//
// Two instances run in the tracking server: one for lifecycle status
// events, one for the best-effort location relay. Both share the same
// mechanics; the delivery-guarantee difference lives in what the consumers
// do with the stream (status messages are folded idempotently, location
// samples are droppable).
package registry

import (
	"sync"

	"junk-removal/tracking/models"
)

// Handle identifies one live subscription. Cancelling it is idempotent.
type Handle struct {
	id      uint64
	orderID string
	ch      chan models.Message
	reg     *Registry
}

// C is the subscriber's receive channel. It is closed when the handle is
// unsubscribed or the subscriber is dropped as a slow consumer.
func (h *Handle) C() <-chan models.Message {
	return h.ch
}

// OrderID returns the order this handle is watching.
func (h *Handle) OrderID() string {
	return h.orderID
}

type Registry struct {
	mu     sync.Mutex
	nextID uint64
	buffer int
	subs   map[string]map[uint64]*Handle
}

// New creates a registry whose subscribers buffer up to buffer messages
// before being dropped.
func New(buffer int) *Registry {
	if buffer < 1 {
		buffer = 1
	}
	return &Registry{
		buffer: buffer,
		subs:   make(map[string]map[uint64]*Handle),
	}
}

// Subscribe registers a live subscriber for one order. The caller is
// responsible for delivering a current snapshot to the subscriber before
// draining the handle, so a new session never renders an empty state.
func (r *Registry) Subscribe(orderID string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	h := &Handle{
		id:      r.nextID,
		orderID: orderID,
		ch:      make(chan models.Message, r.buffer),
		reg:     r,
	}
	if r.subs[orderID] == nil {
		r.subs[orderID] = make(map[uint64]*Handle)
	}
	r.subs[orderID][h.id] = h
	return h
}

// Publish delivers a message to every subscriber of the order. Delivery is
// non-blocking per connection: a subscriber whose buffer is full is
// dropped and its channel closed, so a stalled consumer never holds up the
// rest of the fan-out.
func (r *Registry) Publish(orderID string, msg models.Message) (delivered, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.subs[orderID] {
		select {
		case h.ch <- msg:
			delivered++
		default:
			r.remove(h)
			dropped++
		}
	}
	return delivered, dropped
}

// Unsubscribe releases a handle. Safe to call multiple times and on a
// handle that was already dropped.
func (r *Registry) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if handles, ok := r.subs[h.orderID]; ok {
		if _, live := handles[h.id]; live {
			r.remove(h)
		}
	}
}

// Subscribers reports how many live handles watch the order.
func (r *Registry) Subscribers(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[orderID])
}

// remove must be called with the mutex held.
func (r *Registry) remove(h *Handle) {
	handles := r.subs[h.orderID]
	if _, live := handles[h.id]; !live {
		return
	}
	delete(handles, h.id)
	if len(handles) == 0 {
		delete(r.subs, h.orderID)
	}
	close(h.ch)
}
