package shell

import "sync"

// Event types pushed to UI clients.
const (
	EventTabs    = "tabs"
	EventTree    = "tree"
	EventCursor  = "cursor"
	EventNotice  = "notice"
	EventPreview = "preview"
	EventLog     = "log"
)

// Event is one UI update. Data is already a snapshot and safe to encode.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

// emit never blocks; a subscriber that falls behind loses events and
// catches up from the next state snapshot.
func (h *hub) emit(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) subscribe() (chan Event, func()) {
	ch := make(chan Event, 128)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
