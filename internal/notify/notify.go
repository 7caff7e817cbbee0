// Package notify carries user-visible notices and captured log lines to
// whoever is drawing the UI.
package notify

import (
	"sync"
	"time"

	"github.com/petervdpas/elypad/internal/util"
)

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one message shown to the user (toast, status line).
type Notice struct {
	TS      time.Time `json:"ts"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
}

// Center keeps recent notices and fans them out to subscribers.
type Center struct {
	mu      sync.Mutex
	entries *util.History[Notice]
	subs    map[chan Notice]struct{}
}

func NewCenter(max int) *Center {
	if max <= 0 {
		max = 200
	}
	return &Center{
		entries: util.NewHistory[Notice](max),
		subs:    make(map[chan Notice]struct{}),
	}
}

// Notify records n and delivers it to every subscriber. Slow subscribers
// miss notices rather than block the caller.
func (c *Center) Notify(n Notice) {
	if n.TS.IsZero() {
		n.TS = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Append(n)
	for ch := range c.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (c *Center) Snapshot() []Notice {
	return c.entries.Entries()
}

// Since returns the notices recorded after cursor and the next cursor.
func (c *Center) Since(cursor uint64) ([]Notice, uint64) {
	return c.entries.Since(cursor)
}

func (c *Center) Subscribe() (ch chan Notice, cancel func()) {
	ch = make(chan Notice, 64)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel = func() {
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Func adapts a plain function to the Notifier contract.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard = Func(func(Notice) {})
