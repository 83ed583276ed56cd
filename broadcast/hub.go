package broadcast

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrHubClosed is returned when subscribing after Close.
var ErrHubClosed = errors.New("hub closed")

// Handle identifies one subscription.
type Handle uint64

// Observer is told about every published fire-event after fan-out.
type Observer func(ev Event, delivered int)

type entry struct {
	handle Handle
	sink   Sink
}

// Hub is the client registry. Membership changes only through Subscribe,
// Unsubscribe and the failure pruning inside Publish.
type Hub struct {
	mu        sync.Mutex
	next      Handle
	entries   []entry // registration order
	observers []Observer
	closed    bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a sink and returns its handle.
func (h *Hub) Subscribe(s Sink) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrHubClosed
	}
	h.next++
	h.entries = append(h.entries, entry{handle: h.next, sink: s})
	slog.Info("Client connected", "client", s.ID(), "total", len(h.entries))
	return h.next, nil
}

// Unsubscribe removes a subscription. Unknown or already removed handles
// are ignored.
func (h *Hub) Unsubscribe(handle Handle) {
	h.mu.Lock()
	removed := h.removeLocked(handle)
	total := len(h.entries)
	h.mu.Unlock()

	if removed != nil {
		slog.Info("Client disconnected", "client", removed.ID(), "total", total)
	}
}

func (h *Hub) removeLocked(handle Handle) Sink {
	for i, e := range h.entries {
		if e.handle == handle {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return e.sink
		}
	}
	return nil
}

// Publish serializes ev once and sends it to every subscriber in
// registration order. Subscribers whose send fails are removed and closed.
// Returns the number of subscribers that accepted the event.
func (h *Hub) Publish(ev Event) int {
	data := ev.Data()

	h.mu.Lock()
	targets := make([]entry, len(h.entries))
	copy(targets, h.entries)
	observers := h.observers
	h.mu.Unlock()

	delivered := 0
	var failed []entry
	for _, e := range targets {
		if err := e.sink.Send(data); err != nil {
			slog.Debug("Dropping client after failed send", "client", e.sink.ID(), "error", err)
			failed = append(failed, e)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, e := range failed {
			h.removeLocked(e.handle)
		}
		h.mu.Unlock()
		for _, e := range failed {
			e.sink.Close()
		}
	}

	if !ev.Ready {
		slog.Info("Broadcast", "combo", ev.Combo, "source", ev.Source, "clients", delivered)
		for _, obs := range observers {
			obs(ev, delivered)
		}
	}
	return delivered
}

// OnPublish adds an observer for fire-events.
func (h *Hub) OnPublish(obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, obs)
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Close closes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	entries := h.entries
	h.entries = nil
	h.closed = true
	h.mu.Unlock()

	for _, e := range entries {
		e.sink.Close()
	}
}
