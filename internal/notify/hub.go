package notify

import (
	"context"
	"sync"
)

// Event types published on a Hub.
const (
	EventStatus  = "status"
	EventRefresh = "refresh"
)

// Event is one message delivered to stream subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub broadcasts events to subscribers. Slow subscribers drop events
// rather than block the publisher.
type Hub struct {
	mu        sync.RWMutex
	listeners []chan Event
	last      *Event
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{listeners: make([]chan Event, 0)}
}

// Subscribe adds a listener. The latest status, if any, is queued first.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 10)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// Publish sends ev to every listener. Status events are remembered for
// late subscribers.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.Type == EventStatus {
		stored := ev
		h.last = &stored
	}
	for _, listener := range h.listeners {
		select {
		case listener <- ev:
		default:
		}
	}
}

// PublishStatus publishes a status event.
func (h *Hub) PublishStatus(status any) {
	h.Publish(Event{Type: EventStatus, Data: status})
}

// Refresh tells subscribers a redraw was requested.
func (h *Hub) Refresh(context.Context) {
	h.Publish(Event{Type: EventRefresh})
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
