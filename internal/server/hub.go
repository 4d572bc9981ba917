package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/wifi"
)

// Defaults for the event hub.
const (
	DefaultHistory   = 128
	clientBufferSize = 64
)

// Compile-time interface guard.
var _ wifi.Observer = (*Hub)(nil)

// Message is one event as streamed to websocket clients. Seq increases by
// one per published event and lets a reconnecting client resume.
type Message struct {
	Seq   uint64     `json:"seq"`
	Event wifi.Event `json:"event"`
}

// subscriber is a connected stream.
type subscriber struct {
	id   string
	send chan Message
}

// Hub keeps a bounded history of manager events and fans new ones out to
// stream subscribers. A subscriber that cannot keep up loses messages
// rather than stalling the manager.
type Hub struct {
	mu      sync.RWMutex
	history []Message
	next    int
	full    bool
	seq     uint64
	subs    map[*subscriber]struct{}
	dropped uint64
	logger  *zap.Logger
}

// NewHub creates a hub remembering the last size events.
func NewHub(size int, logger *zap.Logger) *Hub {
	if size <= 0 {
		size = DefaultHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		history: make([]Message, size),
		subs:    make(map[*subscriber]struct{}),
		logger:  logger,
	}
}

// Observe implements wifi.Observer.
func (h *Hub) Observe(e wifi.Event) {
	h.mu.Lock()
	h.seq++
	msg := Message{Seq: h.seq, Event: e}
	h.history[h.next] = msg
	h.next = (h.next + 1) % len(h.history)
	if h.next == 0 {
		h.full = true
	}

	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			h.dropped++
			h.logger.Warn("Stream subscriber buffer full, dropping event",
				zap.String("client", s.id),
				zap.Uint64("seq", msg.Seq),
			)
		}
	}
	h.mu.Unlock()
}

// Since returns buffered messages with a sequence number above seq, oldest
// first.
func (h *Hub) Since(seq uint64) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sinceLocked(seq)
}

func (h *Hub) sinceLocked(seq uint64) []Message {
	var ordered []Message
	if h.full {
		ordered = append(ordered, h.history[h.next:]...)
	}
	ordered = append(ordered, h.history[:h.next]...)

	out := make([]Message, 0, len(ordered))
	for _, m := range ordered {
		if m.Seq > seq {
			out = append(out, m)
		}
	}
	return out
}

// subscribe registers a subscriber and returns the backlog after since.
// Both happen under one lock so no event falls between replay and live
// delivery.
func (h *Hub) subscribe(id string, since uint64) (*subscriber, []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &subscriber{id: id, send: make(chan Message, clientBufferSize)}
	h.subs[s] = struct{}{}
	h.logger.Debug("Stream subscriber added", zap.String("client", id))
	return s, h.sinceLocked(since)
}

// unsubscribe removes s and closes its channel.
func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
	h.logger.Debug("Stream subscriber removed", zap.String("client", s.id))
}

// closeAll disconnects every subscriber.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}

// Seq returns the sequence number of the latest event.
func (h *Hub) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Subscribers returns the number of connected streams.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many messages were discarded for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
