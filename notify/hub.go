package notify

import (
	"log/slog"
	"sync"

	"fila-zero/models"
)

const defaultBufferSize = 16

// Subscription is one observer's handle on an establishment's event stream.
// Events arrive on a buffered channel; when the observer falls behind the
// buffer, newer events are dropped for that observer only.
type Subscription struct {
	establishmentID string
	all             bool
	events          chan models.Event
}

// Events returns the channel the observer reads from. The channel is closed
// by Unsubscribe or when the hub shuts down.
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Hub fans queue events out to every observer subscribed to the event's
// establishment. Delivery is fire-and-forget: no acknowledgement, no replay,
// and a slow observer never blocks the publisher or its peers.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	sinks  map[*Subscription]struct{}
	buffer int
	closed bool
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		sinks:  make(map[*Subscription]struct{}),
		buffer: bufferSize,
	}
}

// Subscribe registers an observer for one establishment's events.
func (h *Hub) Subscribe(establishmentID string) *Subscription {
	sub := &Subscription{
		establishmentID: establishmentID,
		events:          make(chan models.Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.events)
		return sub
	}

	room, ok := h.rooms[establishmentID]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[establishmentID] = room
	}
	room[sub] = struct{}{}

	return sub
}

// SubscribeAll registers a sink that receives every event regardless of
// establishment. The realtime transport adapter attaches here.
func (h *Hub) SubscribeAll() *Subscription {
	sub := &Subscription{
		all:    true,
		events: make(chan models.Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.events)
		return sub
	}

	h.sinks[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the observer and closes its channel. Safe to call for
// an already-removed subscription.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	if sub.all {
		if _, ok := h.sinks[sub]; !ok {
			return
		}
		delete(h.sinks, sub)
	} else {
		room, ok := h.rooms[sub.establishmentID]
		if !ok {
			return
		}
		if _, ok := room[sub]; !ok {
			return
		}
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.establishmentID)
		}
	}

	close(sub.events)
}

// Publish delivers the event to every current observer of its establishment
// and to every global sink, then returns. Publishing with zero subscribers
// is a valid no-op.
func (h *Hub) Publish(event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	room := h.rooms[event.EstablishmentID]
	if len(room)+len(h.sinks) == 0 {
		slog.Debug("no subscribers for event",
			"kind", event.Kind,
			"establishmentId", event.EstablishmentID,
		)
		return
	}

	for sub := range room {
		h.deliver(sub, event)
	}
	for sub := range h.sinks {
		h.deliver(sub, event)
	}
}

func (h *Hub) deliver(sub *Subscription, event models.Event) {
	select {
	case sub.events <- event:
	default:
		// observer buffer full, drop rather than block the engine
		slog.Warn("dropping event for slow observer",
			"kind", event.Kind,
			"establishmentId", event.EstablishmentID,
		)
	}
}

// Close shuts the hub down and closes every observer channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, room := range h.rooms {
		for sub := range room {
			close(sub.events)
		}
	}
	for sub := range h.sinks {
		close(sub.events)
	}
	h.rooms = make(map[string]map[*Subscription]struct{})
	h.sinks = make(map[*Subscription]struct{})
}
