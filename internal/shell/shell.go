// Package shell assembles the editor core (event loop, tabs, directory
// tree, workspace, editor buffer, preview pane and notices) and exposes it
// through a goroutine-safe API. Each method posts onto the loop and blocks
// until the operation completes.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/config"
	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/editor"
	"github.com/petervdpas/elypad/internal/loop"
	"github.com/petervdpas/elypad/internal/luacheck"
	"github.com/petervdpas/elypad/internal/notify"
	"github.com/petervdpas/elypad/internal/preview"
	"github.com/petervdpas/elypad/internal/tabs"
	"github.com/petervdpas/elypad/internal/tree"
	"github.com/petervdpas/elypad/internal/workspace"
)

var (
	ErrNoActive = errors.New("no active document")
	ErrNotLua   = errors.New("active document is not a Lua file")
)

// AppName is shown in window titles.
const AppName = "elypad"

// Deps are the platform capabilities. The editor buffer, preview pane and
// notice center are owned by the shell.
type Deps struct {
	Files   capability.Files
	Watcher capability.Watcher
	Dialogs capability.Dialogs
}

type Shell struct {
	cfg config.Config

	loop    *loop.Loop
	tabs    *tabs.Manager
	tree    *tree.Tree
	ws      *workspace.Workspace
	buf     *editor.Buffer
	pane    *preview.Pane
	notices *notify.Center
	hub     *hub

	base    context.Context
	cancel  context.CancelFunc
	started atomic.Bool
}

func New(cfg config.Config, deps Deps) (*Shell, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	renderer, err := preview.NewRenderer(cfg.Preview.MarkdownStyle)
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Shell{
		cfg:     cfg,
		loop:    loop.New(),
		buf:     editor.New(time.Duration(cfg.Search.RegexTimeoutMS) * time.Millisecond),
		pane:    preview.NewPane(deps.Files, renderer),
		notices: notify.NewCenter(200),
		hub:     newHub(),
		base:    base,
		cancel:  cancel,
	}

	notifier := notify.Func(func(n notify.Notice) {
		s.notices.Notify(n)
		s.hub.emit(Event{Type: EventNotice, Data: n})
	})

	s.tabs = tabs.New(s.loop, tabs.Deps{
		Files:    deps.Files,
		Dialogs:  deps.Dialogs,
		Editor:   s.buf,
		Preview:  s.pane,
		Notifier: notifier,
	}, tabs.Options{
		UntitledPrefix: cfg.Editor.UntitledPrefix,
		Media:          cfg.MediaSet(),
	})
	s.tree = tree.New(s.loop, deps.Files, notifier)
	s.ws = workspace.New(base, s.loop, s.tree, s.tabs, workspace.Deps{
		Files:   deps.Files,
		Watcher: deps.Watcher,
		Dialogs: deps.Dialogs,
	})

	// hooks run on the loop, so the snapshots are consistent
	s.tabs.SetOnChange(func() {
		s.hub.emit(Event{Type: EventTabs, Data: s.tabs.Tabs()})
	})
	s.tree.SetOnChange(func() {
		s.hub.emit(Event{Type: EventTree, Data: s.tree.Snapshot()})
	})
	s.buf.OnContentChanged(func(id, content string) {
		s.loop.Post(func() {
			if err := s.tabs.ContentChanged(id, content); err != nil {
				log.Printf("SHELL: edit for %s dropped: %v", id, err)
			}
		})
	})
	s.buf.OnCursor(func(st editor.Status) {
		s.hub.emit(Event{Type: EventCursor, Data: st})
	})
	s.pane.OnChange(func(it preview.Item) {
		s.hub.emit(Event{Type: EventPreview, Data: it})
	})
	return s, nil
}

// Start runs the event loop until Stop.
func (s *Shell) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		if err := s.loop.Run(s.base); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("SHELL: loop stopped: %v", err)
		}
	}()
}

// Stop closes the watch subscription and stops the loop. Open documents
// are dropped without prompting; callers check DirtyCount first.
func (s *Shell) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if s.started.Load() {
		_ = s.loop.Do(ctx, s.ws.Close)
		s.cancel()
		<-s.loop.Done()
	}
	s.cancel()
	s.hub.closeAll()
}

func (s *Shell) Config() config.Config { return s.cfg }
func (s *Shell) Editor() *editor.Buffer { return s.buf }
func (s *Shell) Preview() *preview.Pane { return s.pane }
func (s *Shell) Notices() *notify.Center { return s.notices }

// Subscribe streams UI events until cancel is called or the shell stops.
func (s *Shell) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe()
}

// Emit pushes an event to subscribers. Used for log lines captured
// outside the shell.
func (s *Shell) Emit(ev Event) { s.hub.emit(ev) }

// ── state ───────────────────────────────────────────────────────────────────

// State is everything a client needs to draw the window.
type State struct {
	Title  string         `json:"title"`
	Root   string         `json:"root,omitempty"`
	Tabs   []tabs.Tab     `json:"tabs"`
	Active string         `json:"active,omitempty"`
	Dirty  int            `json:"dirty"`
	Tree   []tree.Row     `json:"tree"`
	Status *editor.Status `json:"status,omitempty"`
	Text   string         `json:"text"`
}

func (s *Shell) State(ctx context.Context) (State, error) {
	var st State
	err := s.loop.Do(ctx, func() {
		st.Root = s.ws.Root()
		st.Tabs = s.tabs.Tabs()
		st.Dirty = s.tabs.DirtyCount()
		st.Tree = s.tree.Snapshot()
		st.Title = AppName
		if d, ok := s.tabs.Active(); ok {
			st.Active = d.ID
			st.Title = d.DisplayName + " - " + AppName
		}
	})
	if err != nil {
		return State{}, err
	}
	if st.Active != "" && s.buf.DocumentID() == st.Active {
		status := s.buf.Status()
		st.Status = &status
		st.Text = s.buf.Text()
	}
	return st, nil
}

// DirtyCount is the number of documents with unsaved edits.
func (s *Shell) DirtyCount(ctx context.Context) (int, error) {
	var n int
	err := s.loop.Do(ctx, func() { n = s.tabs.DirtyCount() })
	return n, err
}

// Active returns a copy of the active document.
func (s *Shell) Active(ctx context.Context) (document.Document, error) {
	var d document.Document
	var ok bool
	if err := s.loop.Do(ctx, func() { d, ok = s.tabs.Active() }); err != nil {
		return d, err
	}
	if !ok {
		return d, ErrNoActive
	}
	return d, nil
}

// ── documents ───────────────────────────────────────────────────────────────

func (s *Shell) NewDocument(ctx context.Context) (document.Document, error) {
	var d document.Document
	err := s.loop.Do(ctx, func() { d = s.tabs.CreateBlank() })
	return d, err
}

func (s *Shell) OpenPath(ctx context.Context, path string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.OpenPath(ctx, path, done) })
}

func (s *Shell) Activate(ctx context.Context, id string) error {
	var err error
	if derr := s.loop.Do(ctx, func() { err = s.tabs.Activate(id) }); derr != nil {
		return derr
	}
	return err
}

func (s *Shell) Save(ctx context.Context, id string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.Save(ctx, id, done) })
}

func (s *Shell) SaveAs(ctx context.Context, id string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.SaveAs(ctx, id, done) })
}

func (s *Shell) SaveTo(ctx context.Context, id, path string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.SaveTo(ctx, id, path, done) })
}

func (s *Shell) SaveActive(ctx context.Context) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.SaveActive(ctx, done) })
}

func (s *Shell) SaveAsActive(ctx context.Context) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.SaveAsActive(ctx, done) })
}

func (s *Shell) Close(ctx context.Context, id string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.Close(ctx, id, done) })
}

// CloseActive closes the active document. No-op in the welcome state.
func (s *Shell) CloseActive(ctx context.Context) error {
	return s.loop.Await(ctx, func(done func(error)) {
		d, ok := s.tabs.Active()
		if !ok {
			done(nil)
			return
		}
		s.tabs.Close(ctx, d.ID, done)
	})
}

func (s *Shell) Reload(ctx context.Context, id string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tabs.Reload(ctx, id, done) })
}

// ── workspace ───────────────────────────────────────────────────────────────

func (s *Shell) LoadWorkspace(ctx context.Context, path string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.ws.Load(ctx, path, done) })
}

func (s *Shell) ToggleExpand(ctx context.Context, path string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.tree.ToggleExpand(ctx, path, done) })
}

func (s *Shell) OpenFileDialog(ctx context.Context) error {
	return s.loop.Await(ctx, func(done func(error)) { s.ws.OpenFileDialog(ctx, done) })
}

func (s *Shell) OpenFolderDialog(ctx context.Context) error {
	return s.loop.Await(ctx, func(done func(error)) { s.ws.OpenFolderDialog(ctx, done) })
}

// OpenDropped handles a path dropped onto the window.
func (s *Shell) OpenDropped(ctx context.Context, path string) error {
	return s.loop.Await(ctx, func(done func(error)) { s.ws.OpenDropped(ctx, path, done) })
}

// ── language tools ──────────────────────────────────────────────────────────

// Diagnostics checks the active document when it is a Lua file.
func (s *Shell) Diagnostics(ctx context.Context) ([]luacheck.Diagnostic, error) {
	d, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	name := d.SourcePath
	if name == "" {
		name = d.DisplayName
	}
	if !s.cfg.IsLua(name) {
		return nil, ErrNotLua
	}
	return luacheck.Check(d.DisplayName, d.Content), nil
}

// PreviewActive renders the active document as markdown in the preview pane.
func (s *Shell) PreviewActive(ctx context.Context) error {
	d, err := s.Active(ctx)
	if err != nil {
		return err
	}
	return s.pane.ShowMarkdown(d.DisplayName, d.Content)
}
