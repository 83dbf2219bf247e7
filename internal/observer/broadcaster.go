package observer

import (
	"context"
	"sync"
)

// Broadcaster distributes focus events to streaming clients, one buffered
// channel per subscriber. It plugs into the event publisher as a regular
// observer.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan FocusEvent]struct{}
}

// NewBroadcaster creates a new broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan FocusEvent]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast events and a cleanup
// function. The caller must call the returned cleanup when done (e.g. on
// client disconnect).
func (b *Broadcaster) Subscribe() (<-chan FocusEvent, func()) {
	ch := make(chan FocusEvent, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// OnEvent implements Observer. Sends never block; a slow client misses
// events rather than stalling a run.
func (b *Broadcaster) OnEvent(ctx context.Context, event FocusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- event:
		default:
			// channel full, skip
		}
	}
}

// GetObserverName returns the observer name
func (b *Broadcaster) GetObserverName() string {
	return "stream_broadcaster"
}

// Subscribers reports the current number of connected clients.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
