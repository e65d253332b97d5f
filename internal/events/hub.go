package events

import "sync"

type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{})}
}

func (h *Hub) Subscribe() chan string {
	ch := make(chan string, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Publish fans evt out to every subscriber. A nil Hub discards it so CLI
// runs can share code with the server.
func (h *Hub) Publish(evt string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}

// Emit wraps data in an event envelope and publishes it.
func (h *Hub) Emit(typ string, data any) {
	if h == nil {
		return
	}
	h.Publish(MakeEvent("", typ, 1, data))
}
