package widget

import (
	"sync"

	"github.com/wolfman30/booking-widget/internal/session"
)

const subscriberBuffer = 8

// Hub fans session snapshots out to live stream subscribers in this process.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan session.Snapshot
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan session.Snapshot)}
}

// Subscribe returns a channel of snapshots for sessionID and a function that
// closes it.
func (h *Hub) Subscribe(sessionID string) (<-chan session.Snapshot, func()) {
	ch := make(chan session.Snapshot, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan session.Snapshot)
	}
	h.subs[sessionID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers snap to every subscriber of its session. Slow subscribers
// miss intermediate snapshots rather than block the caller.
func (h *Hub) Publish(snap session.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[snap.ID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribers returns how many streams are open for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
