package events

import (
	"context"
	"sync"
)

// Hub is an in-process Bus used when Redis is not configured. Slow
// subscribers miss events rather than blocking publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[event.GameID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, gameID string) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[chan Event]struct{})
	}
	h.subs[gameID][ch] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[gameID], ch)
			if len(h.subs[gameID]) == 0 {
				delete(h.subs, gameID)
			}
			h.mu.Unlock()
			close(done)
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}
