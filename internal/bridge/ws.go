package bridge

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petervdpas/elypad/internal/notify"
	"github.com/petervdpas/elypad/internal/shell"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
	// the client is the wails webview or a local browser tab
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteWait = 5 * time.Second

// handleWS streams shell events and log lines. The first message is a
// full state snapshot.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("BRIDGE: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := s.shell.Subscribe()
	defer cancel()

	var logs chan notify.LogEntry
	if s.logs != nil {
		var cancelLogs func()
		logs, cancelLogs = s.logs.Subscribe()
		defer cancelLogs()
	}

	send := func(ev shell.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev) == nil
	}

	st, err := s.shell.State(r.Context())
	if err != nil || !send(shell.Event{Type: "state", Data: st}) {
		return
	}

	// Drain incoming frames so close and ping are handled.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok || !send(ev) {
				return
			}
		case le, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			if !send(shell.Event{Type: shell.EventLog, Data: le}) {
				return
			}
		}
	}
}
