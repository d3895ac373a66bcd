// Package livefeed implements the optional local, read-only websocket
// tail of a session's event stream described in SPEC_FULL.md §B: an
// external UI process can watch a running session without the core
// depending on what that UI looks like. The JSONL transcript stays the
// authoritative record; livefeed only ever replays and forwards it.
package livefeed

import (
	"sync"

	"lincona/internal/transcript"
)

// Hub fans transcript events out to any subscribers watching a given
// session, grounded on the teacher's run.Hub pub-sub pattern.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan transcript.Event]struct{}
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan transcript.Event]struct{}{}}
}

// Subscribe registers a new listener for sessionID's live events. The
// returned channel is buffered to buf entries; a slow subscriber drops
// events rather than blocking the driver that publishes them.
func (h *Hub) Subscribe(sessionID string, buf int) (<-chan transcript.Event, func()) {
	ch := make(chan transcript.Event, buf)
	h.mu.Lock()
	if _, ok := h.subs[sessionID]; !ok {
		h.subs[sessionID] = map[chan transcript.Event]struct{}{}
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sessionSubs, ok := h.subs[sessionID]; ok {
			delete(sessionSubs, ch)
			close(ch)
			if len(sessionSubs) == 0 {
				delete(h.subs, sessionID)
			}
		}
	}
	return ch, unsub
}

// Publish fans ev out to every current subscriber of its session. Called
// by the driver alongside each transcript.Writer.Append; publishing never
// blocks, so a stalled UI client can never stall a turn.
func (h *Hub) Publish(sessionID string, ev transcript.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports how many listeners are currently attached to
// sessionID, mainly for tests and diagnostics.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
