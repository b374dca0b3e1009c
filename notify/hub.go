package notify

import (
	"context"
	"sync"
)

// Hub fans toasts out to the SSE subscribers of each session.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[chan Toast]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan Toast]struct{})}
}

// Subscribe registers a buffered channel for target. Call the returned func to unsubscribe.
func (h *Hub) Subscribe(target string) (<-chan Toast, func()) {
	ch := make(chan Toast, 8)
	h.mu.Lock()
	if h.clients[target] == nil {
		h.clients[target] = make(map[chan Toast]struct{})
	}
	h.clients[target][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.clients[target]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.clients, target)
				}
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of open streams for target.
func (h *Hub) Subscribers(target string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[target])
}

// Notify delivers the toast to every subscriber of its target. Slow subscribers drop toasts.
func (h *Hub) Notify(_ context.Context, t Toast) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients[t.Target] {
		select {
		case ch <- t:
		default:
		}
	}
	return nil
}

// Pending returns how many toasts are buffered and not yet read for target.
func (h *Hub) Pending(target string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for ch := range h.clients[target] {
		n += len(ch)
	}
	return n
}
