// Package tabs owns the set of open documents, the active selection and the
// reconciliation of both with save dialogs and on-disk changes.
//
// Every Manager method must be called on the event loop. Methods that touch
// a capability start the call on its own goroutine and report through a
// done callback, which is also invoked on the loop.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/loop"
	"github.com/petervdpas/elypad/internal/notify"
)

var (
	ErrNotOpen  = errors.New("document not open")
	ErrPathOpen = errors.New("path is open in another tab")
	ErrNoPath   = errors.New("document has never been saved")
)

type Options struct {
	UntitledPrefix string
	Media          document.MediaSet
}

// Deps are the capabilities a Manager calls out to. Any of them may be nil;
// operations that need a missing one fail with capability.ErrUnavailable.
type Deps struct {
	Files    capability.Files
	Dialogs  capability.Dialogs
	Editor   capability.Editor
	Preview  capability.Previewer
	Notifier capability.Notifier
}

// Tab is a document as listed in the tab bar.
type Tab struct {
	document.Document
	Active bool `json:"active"`
}

type Manager struct {
	loop *loop.Loop
	deps Deps
	opts Options

	docs     map[string]*document.Document
	order    []string
	byPath   map[string]string
	active   string
	untitled int

	// in-flight reads, joined by later opens of the same path
	opening map[string][]func(error)
	// per-document FIFO of save/save-as/close/reload
	queues map[string]*opQueue
	// writes in flight per path; change events for them are our own
	writing map[string]int
	// content last read from or written to each open path
	onDisk map[string]string

	onChange func()
}

func New(l *loop.Loop, deps Deps, opts Options) *Manager {
	if opts.UntitledPrefix == "" {
		opts.UntitledPrefix = "untitled"
	}
	if opts.Media == nil {
		opts.Media = document.NewMediaSet(document.DefaultMediaExtensions)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	return &Manager{
		loop:    l,
		deps:    deps,
		opts:    opts,
		docs:    make(map[string]*document.Document),
		byPath:  make(map[string]string),
		opening: make(map[string][]func(error)),
		queues:  make(map[string]*opQueue),
		writing: make(map[string]int),
		onDisk:  make(map[string]string),
	}
}

// SetOnChange installs a hook called after any change to the tab set, the
// active selection or a document's flags.
func (m *Manager) SetOnChange(fn func()) { m.onChange = fn }

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

func (m *Manager) loadEditor(d *document.Document) {
	if m.deps.Editor != nil {
		m.deps.Editor.Load(*d)
	}
}

func (m *Manager) clearEditor() {
	if m.deps.Editor != nil {
		m.deps.Editor.Clear()
	}
}

func (m *Manager) fail(action, path string, err error) error {
	err = capability.NewIOError(action, path, err)
	log.Printf("TABS: %s %s: %v", action, path, err)
	m.deps.Notifier.Notify(notify.Notice{
		Level:   notify.Error,
		Message: fmt.Sprintf("could not %s %s: %v", action, document.BaseName(path), err),
		Path:    path,
	})
	return err
}

// ── queries ─────────────────────────────────────────────────────────────────

// Tabs returns the open documents in tab order.
func (m *Manager) Tabs() []Tab {
	out := make([]Tab, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, Tab{Document: *m.docs[id], Active: id == m.active})
	}
	return out
}

func (m *Manager) Get(id string) (document.Document, bool) {
	d, ok := m.docs[id]
	if !ok {
		return document.Document{}, false
	}
	return *d, true
}

// Active returns the active document, or false in the welcome state.
func (m *Manager) Active() (document.Document, bool) {
	return m.Get(m.active)
}

func (m *Manager) FindByPath(path string) (string, bool) {
	id, ok := m.byPath[filepath.Clean(path)]
	return id, ok
}

func (m *Manager) DirtyCount() int {
	n := 0
	for _, d := range m.docs {
		if d.Dirty {
			n++
		}
	}
	return n
}

// ── create / open / activate ────────────────────────────────────────────────

// CreateBlank opens a new untitled document and makes it active.
func (m *Manager) CreateBlank() document.Document {
	m.untitled++
	d := document.NewUntitled(m.opts.UntitledPrefix, m.untitled)
	m.insert(d)
	m.activate(d.ID)
	log.Printf("TABS: new %s", d.DisplayName)
	return *d
}

func (m *Manager) insert(d *document.Document) {
	m.docs[d.ID] = d
	m.order = append(m.order, d.ID)
	if d.SourcePath != "" {
		m.byPath[d.SourcePath] = d.ID
	}
}

// OpenPath focuses the document already showing path, or reads path into a
// new one. Media files go to the previewer and never become documents.
func (m *Manager) OpenPath(ctx context.Context, path string, done func(error)) {
	done = orNop(done)
	if path == "" {
		done(errors.New("empty path"))
		return
	}
	path = filepath.Clean(path)

	if id, ok := m.byPath[path]; ok {
		m.activate(id)
		done(nil)
		return
	}

	if m.opts.Media.IsMedia(path) {
		m.preview(ctx, path, done)
		return
	}

	if m.deps.Files == nil {
		done(capability.ErrUnavailable)
		return
	}

	if waiters, ok := m.opening[path]; ok {
		m.opening[path] = append(waiters, done)
		return
	}
	m.opening[path] = []func(error){done}

	loop.Async(m.loop, ctx, func(ctx context.Context) (string, error) {
		return m.deps.Files.ReadFile(ctx, path)
	}, func(content string, err error) {
		waiters := m.opening[path]
		delete(m.opening, path)

		if err != nil {
			err = m.fail("open", path, err)
		} else if id, ok := m.byPath[path]; ok {
			// bound by a save-as while the read was in flight
			m.activate(id)
		} else {
			d := document.NewFromDisk(path, content)
			m.onDisk[path] = content
			m.insert(d)
			m.activate(d.ID)
			log.Printf("TABS: opened %s", path)
		}
		for _, w := range waiters {
			w(err)
		}
	})
}

func (m *Manager) preview(ctx context.Context, path string, done func(error)) {
	if m.deps.Preview == nil {
		done(capability.ErrUnavailable)
		return
	}
	loop.Async(m.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.deps.Preview.Preview(ctx, path)
	}, func(_ struct{}, err error) {
		if err != nil {
			err = m.fail("preview", path, err)
		}
		done(err)
	})
}

// Activate switches the active selection and loads the document into the
// editor. Activating the active document does nothing.
func (m *Manager) Activate(id string) error {
	if _, ok := m.docs[id]; !ok {
		return ErrNotOpen
	}
	m.activate(id)
	return nil
}

func (m *Manager) activate(id string) {
	if m.active == id {
		return
	}
	m.active = id
	m.loadEditor(m.docs[id])
	m.changed()
}

// ContentChanged records an edit reported by the editor.
func (m *Manager) ContentChanged(id, content string) error {
	d, ok := m.docs[id]
	if !ok {
		return ErrNotOpen
	}
	d.Content = content
	if !d.Dirty {
		d.Dirty = true
		m.changed()
	}
	return nil
}

// ── queued operations ───────────────────────────────────────────────────────

// Save writes the document to its path, or asks for one first.
func (m *Manager) Save(ctx context.Context, id string, done func(error)) {
	m.enqueue(id, func(finish func(error)) { m.save(ctx, id, finish) }, done)
}

// SaveAs always asks for a destination. Cancelling leaves the document as is.
func (m *Manager) SaveAs(ctx context.Context, id string, done func(error)) {
	m.enqueue(id, func(finish func(error)) { m.saveAs(ctx, id, finish) }, done)
}

// SaveTo binds the document to path and saves it, without a dialog.
func (m *Manager) SaveTo(ctx context.Context, id, path string, done func(error)) {
	m.enqueue(id, func(finish func(error)) { m.saveTo(ctx, id, path, finish) }, done)
}

// Close removes the document, asking to save first if it has unsaved edits.
// The tab goes away whether or not that save succeeds.
func (m *Manager) Close(ctx context.Context, id string, done func(error)) {
	m.enqueue(id, func(finish func(error)) { m.close(ctx, id, finish) }, done)
}

// Reload replaces the content with what is on disk, discarding edits.
func (m *Manager) Reload(ctx context.Context, id string, done func(error)) {
	m.enqueue(id, func(finish func(error)) { m.reload(ctx, id, finish) }, done)
}

// SaveActive saves the active document. No-op in the welcome state.
func (m *Manager) SaveActive(ctx context.Context, done func(error)) {
	if m.active == "" {
		orNop(done)(nil)
		return
	}
	m.Save(ctx, m.active, done)
}

func (m *Manager) SaveAsActive(ctx context.Context, done func(error)) {
	if m.active == "" {
		orNop(done)(nil)
		return
	}
	m.SaveAs(ctx, m.active, done)
}

func (m *Manager) save(ctx context.Context, id string, finish func(error)) {
	d, ok := m.docs[id]
	if !ok {
		finish(ErrNotOpen)
		return
	}
	if d.SourcePath == "" {
		m.saveAs(ctx, id, finish)
		return
	}
	if m.deps.Files == nil {
		finish(capability.ErrUnavailable)
		return
	}

	path, content := d.SourcePath, d.Content
	m.writing[path]++
	loop.Async(m.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.deps.Files.WriteFile(ctx, path, content)
	}, func(_ struct{}, err error) {
		if m.writing[path]--; m.writing[path] <= 0 {
			delete(m.writing, path)
		}
		if err != nil {
			finish(m.fail("save", path, err))
			return
		}
		d, ok := m.docs[id]
		if !ok {
			finish(nil)
			return
		}
		// edits made while the write was in flight keep the document dirty
		m.onDisk[path] = content
		if d.Content == content {
			d.Dirty = false
		}
		d.Conflict = false
		log.Printf("TABS: saved %s", path)
		m.changed()
		finish(nil)
	})
}

func (m *Manager) saveAs(ctx context.Context, id string, finish func(error)) {
	if _, ok := m.docs[id]; !ok {
		finish(ErrNotOpen)
		return
	}
	if m.deps.Dialogs == nil {
		finish(capability.ErrUnavailable)
		return
	}
	loop.Async(m.loop, ctx, m.deps.Dialogs.PickSaveFile, func(path string, err error) {
		if err != nil {
			log.Printf("TABS: save dialog: %v", err)
			finish(err)
			return
		}
		if path == "" {
			finish(nil)
			return
		}
		m.saveTo(ctx, id, path, finish)
	})
}

func (m *Manager) saveTo(ctx context.Context, id, path string, finish func(error)) {
	d, ok := m.docs[id]
	if !ok {
		finish(ErrNotOpen)
		return
	}
	if path == "" {
		finish(errors.New("empty path"))
		return
	}
	path = filepath.Clean(path)

	if owner, ok := m.byPath[path]; ok && owner != id {
		m.deps.Notifier.Notify(notify.Notice{
			Level:   notify.Warning,
			Message: fmt.Sprintf("%s is already open in another tab", document.BaseName(path)),
			Path:    path,
		})
		finish(ErrPathOpen)
		return
	}

	if d.SourcePath != path {
		if d.SourcePath != "" {
			delete(m.byPath, d.SourcePath)
			delete(m.onDisk, d.SourcePath)
		}
		d.Bind(path)
		m.byPath[path] = id
		if id == m.active && m.deps.Editor != nil {
			m.deps.Editor.SetLanguage(id, d.Language)
		}
		m.changed()
	}
	m.save(ctx, id, finish)
}

func (m *Manager) close(ctx context.Context, id string, finish func(error)) {
	d, ok := m.docs[id]
	if !ok {
		finish(ErrNotOpen)
		return
	}
	if !d.Dirty {
		m.remove(id)
		finish(nil)
		return
	}
	if m.deps.Dialogs == nil {
		finish(capability.ErrUnavailable)
		return
	}

	name := d.DisplayName
	loop.Async(m.loop, ctx, func(ctx context.Context) (bool, error) {
		return m.deps.Dialogs.ConfirmSaveBeforeClose(ctx, name)
	}, func(yes bool, err error) {
		if err != nil {
			log.Printf("TABS: confirm dialog: %v", err)
			finish(err)
			return
		}
		if !yes {
			m.remove(id)
			finish(nil)
			return
		}
		m.save(ctx, id, func(serr error) {
			m.remove(id)
			finish(serr)
		})
	})
}

func (m *Manager) reload(ctx context.Context, id string, finish func(error)) {
	d, ok := m.docs[id]
	if !ok {
		finish(ErrNotOpen)
		return
	}
	if d.SourcePath == "" {
		finish(ErrNoPath)
		return
	}
	if m.deps.Files == nil {
		finish(capability.ErrUnavailable)
		return
	}
	path := d.SourcePath
	loop.Async(m.loop, ctx, func(ctx context.Context) (string, error) {
		return m.deps.Files.ReadFile(ctx, path)
	}, func(content string, err error) {
		if err != nil {
			finish(m.fail("reload", path, err))
			return
		}
		d, ok := m.docs[id]
		if !ok {
			finish(ErrNotOpen)
			return
		}
		m.onDisk[path] = content
		m.replaceContent(d, content)
		finish(nil)
	})
}

func (m *Manager) replaceContent(d *document.Document, content string) {
	d.Content = content
	d.Dirty = false
	d.Conflict = false
	if d.ID == m.active {
		m.loadEditor(d)
	}
	m.changed()
}

// remove drops a document and repairs the active selection: the first
// remaining tab becomes active, or the editor is cleared.
func (m *Manager) remove(id string) {
	d, ok := m.docs[id]
	if !ok {
		return
	}
	delete(m.docs, id)
	if d.SourcePath != "" && m.byPath[d.SourcePath] == id {
		delete(m.byPath, d.SourcePath)
		delete(m.onDisk, d.SourcePath)
	}
	for i, x := range m.order {
		if x == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	log.Printf("TABS: closed %s", d.DisplayName)

	if m.active == id {
		m.active = ""
		if len(m.order) > 0 {
			m.activate(m.order[0])
			return
		}
		m.clearEditor()
	}
	m.changed()
}

// ── file-system reconciliation ──────────────────────────────────────────────

// ExternalFileRemoved force-closes the document for path, and any document
// below it when path was a directory. No prompt is shown.
func (m *Manager) ExternalFileRemoved(path string) {
	path = filepath.Clean(path)
	prefix := path + string(filepath.Separator)

	var gone []string
	for _, id := range m.order {
		p := m.docs[id].SourcePath
		if p != "" && (p == path || strings.HasPrefix(p, prefix)) {
			gone = append(gone, id)
		}
	}
	for _, id := range gone {
		d := m.docs[id]
		if d.Dirty {
			m.deps.Notifier.Notify(notify.Notice{
				Level:   notify.Warning,
				Message: fmt.Sprintf("%s was deleted on disk; unsaved changes were discarded", d.DisplayName),
				Path:    d.SourcePath,
			})
		}
		m.remove(id)
	}
}

// ExternalFileChanged reconciles a document with a write made outside the
// editor. The file is read first: disk content matching what the editor
// last read or wrote is an echo and is ignored. Otherwise a clean document
// is reloaded and a dirty one keeps its edits and is flagged as conflicting.
func (m *Manager) ExternalFileChanged(ctx context.Context, path string) {
	path = filepath.Clean(path)
	if _, ok := m.byPath[path]; !ok || m.writing[path] > 0 {
		return
	}
	if m.deps.Files == nil {
		return
	}
	loop.Async(m.loop, ctx, func(ctx context.Context) (string, error) {
		return m.deps.Files.ReadFile(ctx, path)
	}, func(content string, err error) {
		if err != nil {
			log.Printf("TABS: reload %s: %v", path, err)
			return
		}
		id, ok := m.byPath[path]
		if !ok || m.writing[path] > 0 {
			return
		}
		if last, known := m.onDisk[path]; known && last == content {
			return
		}
		m.onDisk[path] = content
		d := m.docs[id]

		if d.Dirty {
			if !d.Conflict {
				d.Conflict = true
				log.Printf("TABS: %s changed on disk while modified", path)
				m.deps.Notifier.Notify(notify.Notice{
					Level:   notify.Warning,
					Message: fmt.Sprintf("%s changed on disk; you have unsaved changes", d.DisplayName),
					Path:    path,
				})
				m.changed()
			}
			return
		}
		if d.Content == content {
			return
		}
		log.Printf("TABS: reloaded %s", path)
		m.replaceContent(d, content)
	})
}

func orNop(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
