package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"case-console/internal/event"
	"case-console/internal/metrics"
)

// Hub relays catalog events to every connected console so each one can
// reload after another session changes the catalog.
type Hub struct {
	bus event.Bus

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{bus: bus, clients: make(map[*Client]struct{})}
}

// Run forwards bus events until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			frame, err := json.Marshal(e)
			if err != nil {
				slog.Error("encode realtime event", "type", e.Type, "error", err)
				continue
			}
			h.broadcast(frame)
		}
	}
}

// Clients reports how many connections are attached.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.SetRealtimeClients(len(h.clients))
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.SetRealtimeClients(len(h.clients))
}

// broadcast never waits on a client; one whose queue is full is cut off
// and has to reconnect and reload.
func (h *Hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slog.Warn("realtime client too slow; disconnecting", "remote", c.remote)
			h.dropLocked(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}
