package logging

import (
	"context"
	"sync"

	"pkt.systems/pslog"

	"tt-commander/types"
)

// Hub fans out board events to subscribed clients. Publishing never blocks:
// a client that is not ready for an event misses it.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan types.Event]struct{}
	log     pslog.Logger
	depth   int
}

// NewHub constructs a Hub.
func NewHub(logger pslog.Logger) *Hub {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		clients: make(map[chan types.Event]struct{}),
		log:     logger,
		depth:   256,
	}
}

// AddClient registers a subscriber and returns its channel and a cancel func
// that unregisters and closes it.
func (h *Hub) AddClient() (<-chan types.Event, func()) {
	if h == nil {
		return nil, func() {}
	}
	ch := make(chan types.Event, h.depth)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("event client added", "clients", count)

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.removeClient(ch) })
	}
}

func (h *Hub) removeClient(ch chan types.Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
	h.log.Debug("event client removed")
}

// Broadcast publishes event to every client.
func (h *Hub) Broadcast(event types.Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for client := range h.clients {
		select {
		case client <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Trace("event hub dropped", "type", event.Type, "count", dropped)
	}
}
