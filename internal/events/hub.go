// Package events streams orchestrator events to connected dashboards over
// WebSocket.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// DefaultQueueSize bounds the per-subscriber backlog.
const DefaultQueueSize = 64

// Filter restricts which events a subscriber receives. Empty fields match
// everything.
type Filter struct {
	SessionID string
	ItemID    string
}

func (f Filter) match(ev domain.Event) bool {
	if f.SessionID != "" && f.SessionID != ev.SessionID {
		return false
	}
	if f.ItemID != "" && f.ItemID != ev.ItemID {
		return false
	}
	return true
}

// Subscriber is one connected listener. Messages are JSON-encoded events.
type Subscriber struct {
	ID     string
	filter Filter
	send   chan []byte

	mu      sync.Mutex
	dropped int
	closed  bool
}

// NewSubscriber creates a subscriber with a bounded queue.
func NewSubscriber(id string, filter Filter, queueSize int) *Subscriber {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Subscriber{ID: id, filter: filter, send: make(chan []byte, queueSize)}
}

// Messages is the subscriber's outbound queue. It is closed when the
// subscriber is unregistered.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Dropped returns how many messages were discarded because the queue was full.
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// enqueue never blocks. A full queue drops its oldest message.
func (s *Subscriber) enqueue(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.send <- msg:
		return
	default:
	}

	select {
	case <-s.send:
		s.dropped++
	default:
	}
	select {
	case s.send <- msg:
	default:
		s.dropped++
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Hub fans events out to registered subscribers.
type Hub struct {
	mu     sync.RWMutex
	active map[string]*Subscriber
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active: make(map[string]*Subscriber),
		logger: logger,
	}
}

// Get returns the subscriber registered under id.
func (h *Hub) Get(id string) *Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active[id]
}

// Register adds a subscriber, replacing and closing any previous one with
// the same id.
func (h *Hub) Register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.active[sub.ID]; ok && existing != sub {
		existing.close()
	}
	h.active[sub.ID] = sub
	h.logger.Info("Event subscriber registered", "subscriber_id", sub.ID)
}

// Unregister removes sub if it is still the registered subscriber for its id.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.active[sub.ID]; ok && current == sub {
		delete(h.active, sub.ID)
		sub.close()
		h.logger.Info("Event subscriber unregistered", "subscriber_id", sub.ID)
	}
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// Broadcast delivers ev to every matching subscriber and returns how many
// received it.
func (h *Hub) Broadcast(ev domain.Event) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", "event_id", ev.ID, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, sub := range h.active {
		if !sub.filter.match(ev) {
			continue
		}
		sub.enqueue(msg)
		n++
	}
	return n
}

// CloseAll unregisters every subscriber.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.active {
		sub.close()
		delete(h.active, id)
	}
}
