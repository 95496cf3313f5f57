// Package hub fans committed order mutations out to every connected
// subscriber. It is a live feed only: new subscribers get no replay and
// are expected to fetch the current state from the store first.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cafe-system/internal/domain"
)

const defaultBuffer = 64

// Subscription is one subscriber's view of the feed. C is closed when
// the subscription ends, either via Close or because the subscriber
// fell too far behind.
type Subscription struct {
	ID string
	C  <-chan *domain.Order

	h  *Hub
	ch chan *domain.Order
}

// Close unsubscribes. Idempotent.
func (s *Subscription) Close() {
	s.h.unsubscribe(s.ID)
}

type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	log    *zap.Logger
}

func New(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan *domain.Order, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, h: h, ch: ch}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug("subscriber added", zap.String("sub", sub.ID), zap.Int("subscribers", n))
	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
	if ok {
		h.log.Debug("subscriber removed", zap.String("sub", id))
	}
}

// Publish delivers o to every subscriber. Delivery is a non-blocking
// send into each subscriber's buffered channel: a subscriber that
// cannot keep up is dropped rather than allowed to stall the rest.
// Publishers call this in store commit order; holding the mutex for the
// whole fan-out keeps that order identical for every subscriber.
func (h *Hub) Publish(o *domain.Order) {
	var dropped []string
	h.mu.Lock()
	for id, sub := range h.subs {
		select {
		case sub.ch <- o:
		default:
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		sub := h.subs[id]
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
	for _, id := range dropped {
		h.log.Warn("slow subscriber dropped", zap.String("sub", id))
	}
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
