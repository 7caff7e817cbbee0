// Package bridge serves the editor over local HTTP: a JSON API for every
// shell operation, a websocket stream of UI events and an embedded client
// page. The desktop window and headless "serve" mode both use it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/notify"
	"github.com/petervdpas/elypad/internal/search"
	"github.com/petervdpas/elypad/internal/shell"
	"github.com/petervdpas/elypad/internal/tabs"
	"github.com/petervdpas/elypad/internal/tree"
)

// Server must be started with Start, or mounted through Handler.
type Server struct {
	shell   *shell.Shell
	logs    *notify.LogBuffer
	dialogs *Dialogs
	assets  map[string]asset

	mu  sync.Mutex
	srv *http.Server
	url string
}

// New builds a server for sh. logs and dialogs may be nil; without
// dialogs, close requests cannot pre-answer the save prompt.
func New(sh *shell.Shell, logs *notify.LogBuffer, dialogs *Dialogs) *Server {
	return &Server{
		shell:   sh,
		logs:    logs,
		dialogs: dialogs,
		assets:  loadAssets(),
	}
}

// Start listens on addr and serves in the background. It returns the base
// URL, e.g. http://127.0.0.1:41234.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
	}
	base := "http://" + ln.Addr().String()

	s.mu.Lock()
	s.srv = srv
	s.url = base
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("BRIDGE: serve: %v", err)
		}
	}()
	log.Printf("BRIDGE: listening on %s", base)
	return base, nil
}

// URL returns the base URL, or "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleAsset)
	mux.HandleFunc("/ws", s.handleWS)

	handleGet(mux, "/api/state", s.handleState)
	handleGet(mux, "/api/notices", s.handleNotices)
	handleGet(mux, "/api/logs", s.handleLogs)
	handleGet(mux, "/api/diagnostics", s.handleDiagnostics)
	handleGet(mux, "/api/preview", s.handlePreview)
	handleGet(mux, "/api/preview/raw", s.handlePreviewRaw)

	handlePost(mux, "/api/new", s.handleNew)
	handlePost(mux, "/api/open", s.handleOpen)
	handlePost(mux, "/api/open-dialog", s.handleOpenDialog)
	handlePost(mux, "/api/open-folder-dialog", s.handleOpenFolderDialog)
	handlePost(mux, "/api/workspace", s.handleWorkspace)
	handlePost(mux, "/api/drop", s.handleDrop)
	handlePost(mux, "/api/activate", s.handleActivate)
	handlePost(mux, "/api/save", s.handleSave)
	handlePost(mux, "/api/save-as", s.handleSaveAs)
	handlePost(mux, "/api/close", s.handleClose)
	handlePost(mux, "/api/reload", s.handleReload)
	handlePost(mux, "/api/tree/toggle", s.handleToggle)
	handlePost(mux, "/api/edit", s.handleEdit)
	handlePost(mux, "/api/select", s.handleSelect)
	handlePost(mux, "/api/undo", s.handleUndo)
	handlePost(mux, "/api/redo", s.handleRedo)
	handlePost(mux, "/api/find", s.handleFind)
	handlePost(mux, "/api/replace", s.handleReplace)
	handlePost(mux, "/api/preview/active", s.handlePreviewActive)

	return mux
}

// ── helpers ─────────────────────────────────────────────────────────────────

func withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func handleGet(mux *http.ServeMux, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, withCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}))
}

func handlePost(mux *http.ServeMux, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, withCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads an optional JSON body into v. An empty body is fine.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return err
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// writeErr maps core errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var ioe *capability.IOError
	switch {
	case errors.Is(err, tabs.ErrNotOpen),
		errors.Is(err, tree.ErrUnknownPath):
		code = http.StatusNotFound
	case errors.Is(err, tabs.ErrPathOpen),
		errors.Is(err, shell.ErrNoActive),
		errors.Is(err, tree.ErrNoRoot),
		errors.Is(err, tree.ErrStale):
		code = http.StatusConflict
	case errors.Is(err, tree.ErrNotDir),
		errors.Is(err, shell.ErrNotLua),
		errors.Is(err, search.ErrEmptyTerm),
		errors.Is(err, search.ErrBadPattern):
		code = http.StatusBadRequest
	case errors.Is(err, capability.ErrUnavailable):
		code = http.StatusServiceUnavailable
	case errors.As(err, &ioe):
		code = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

// reply writes the fresh state after an operation, or the error.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	st, err := s.shell.State(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, st)
}
