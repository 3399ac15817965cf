// Package eventbus fans progression events out to whoever is watching,
// currently the TUI status line.
package eventbus

import (
	"context"
	"sync"
	"time"
)

const (
	TypeXPAwarded     = "xp_awarded"
	TypeXPReversed    = "xp_reversed"
	TypeRankUp        = "rank_up"
	TypeStreak        = "streak"
	TypePhaseComplete = "phase_complete"
	TypeCycleComplete = "cycle_complete"
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
// Publishing on a nil Hub is a no-op.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel that receives events until ctx is done, at
// which point it is closed.
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
