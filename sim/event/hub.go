package event

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultSubscriptionBuffer is the channel depth used when Subscribe is given
// a non-positive size.
const DefaultSubscriptionBuffer = 1024

// Hub fans events out to any number of subscribers over buffered channels.
// Deliver never blocks: when a subscriber's channel is full the event is
// dropped for that subscriber and counted. Ordering per subscriber is the
// emission order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	ch      chan Event
	hub     *Hub
	dropped atomic.Uint64
	once    sync.Once
}

// NewHub creates a Hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a consumer with the given channel depth.
// Subscribing to a closed hub returns an already-closed subscription.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	s := &Subscription{ch: make(chan Event, buffer), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Deliver implements Sink.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
				logrus.Warnf("event hub: subscriber full, %d events dropped so far", n)
			}
		}
	}
}

// Subscribers returns the current number of subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later deliveries are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.once.Do(func() { close(s.ch) })
		delete(h.subs, s)
	}
}

// C returns the channel events arrive on. It is closed on Unsubscribe or
// when the hub closes.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.subs, s)
	s.once.Do(func() { close(s.ch) })
}
