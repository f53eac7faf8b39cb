// Package events fans application events out to connected front-ends.
package events

import (
	"sync"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 16

// Event is what subscribers receive.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Publisher publishes named events.
type Publisher interface {
	Publish(event string, payload any)
}

// Subscription receives events until it is closed.
type Subscription struct {
	ch   chan Event
	hub  *Hub
	once sync.Once
}

// C returns the event channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is an in-process Publisher. Publish never blocks: a subscriber whose
// queue is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	log    logger.Logger
}

// NewHub creates a Hub. A non-positive buffer uses DefaultBufferSize.
func NewHub(buffer int, log logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed hub
// returns an already closed subscription.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan Event, h.buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish delivers the event to every subscriber with room in its queue.
func (h *Hub) Publish(event string, payload any) {
	ev := Event{Event: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			h.log.Warn("Dropping event for slow subscriber", logger.StringField("event", event))
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, s)
	s.once.Do(func() { close(s.ch) })
}
