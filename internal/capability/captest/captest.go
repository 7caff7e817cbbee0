// Package captest provides in-memory capabilities for tests.
package captest

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/notify"
)

var ErrNotFound = errors.New("no such file or directory")

// Files is an in-memory file system with injectable failures and gates
// that hold an operation until released.
type Files struct {
	mu     sync.Mutex
	files  map[string]string
	dirs   map[string]bool
	fail   map[string]error // key: op + " " + path
	gates  map[string]chan struct{}
	calls  map[string]int
	order  map[string][]string // listing order as inserted
	writes []string
}

func NewFiles() *Files {
	return &Files{
		files: map[string]string{},
		dirs:  map[string]bool{"/": true},
		fail:  map[string]error{},
		gates: map[string]chan struct{}{},
		calls: map[string]int{},
		order: map[string][]string{},
	}
}

var _ capability.Files = (*Files)(nil)

// Put creates a file and any missing parent directories.
func (f *Files) Put(p, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirLocked(path.Dir(p))
	if _, ok := f.files[p]; !ok {
		f.link(p)
	}
	f.files[p] = content
}

// Mkdir creates a directory and its parents.
func (f *Files) Mkdir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirLocked(p)
}

func (f *Files) mkdirLocked(p string) {
	if f.dirs[p] {
		return
	}
	f.mkdirLocked(path.Dir(p))
	f.dirs[p] = true
	f.link(p)
}

func (f *Files) link(p string) {
	dir := path.Dir(p)
	f.order[dir] = append(f.order[dir], p)
}

// Remove deletes a file or a directory tree.
func (f *Files) Remove(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.files {
		if k == p || isUnder(k, p) {
			delete(f.files, k)
		}
	}
	for k := range f.dirs {
		if k == p || isUnder(k, p) {
			delete(f.dirs, k)
		}
	}
	for k := range f.order {
		if k == p || isUnder(k, p) {
			delete(f.order, k)
		}
	}
	dir := path.Dir(p)
	kept := f.order[dir][:0]
	for _, c := range f.order[dir] {
		if c != p {
			kept = append(kept, c)
		}
	}
	f.order[dir] = kept
}

func isUnder(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	return len(p) > len(dir) && p[:len(dir)] == dir && p[len(dir)] == '/'
}

// Content returns the stored file content.
func (f *Files) Content(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[p]
	return c, ok
}

// Fail makes op ("read", "write", "list", "stat") on p return err until
// cleared with a nil err.
func (f *Files) Fail(op, p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op+" "+p)
		return
	}
	f.fail[op+" "+p] = err
}

// Hold blocks the next op calls on p until the returned release is called.
func (f *Files) Hold(op, p string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[op+" "+p] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, op+" "+p)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Calls counts op invocations on p.
func (f *Files) Calls(op, p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+" "+p]
}

// Writes lists written paths in call order.
func (f *Files) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *Files) enter(ctx context.Context, op, p string) error {
	f.mu.Lock()
	f.calls[op+" "+p]++
	gate := f.gates[op+" "+p]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[op+" "+p]; err != nil {
		return err
	}
	return nil
}

func (f *Files) ReadFile(ctx context.Context, p string) (string, error) {
	if err := f.enter(ctx, "read", p); err != nil {
		return "", capability.NewIOError("read", p, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[p]
	if !ok {
		return "", capability.NewIOError("read", p, ErrNotFound)
	}
	return c, nil
}

func (f *Files) WriteFile(ctx context.Context, p, content string) error {
	if err := f.enter(ctx, "write", p); err != nil {
		return capability.NewIOError("write", p, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[path.Dir(p)] {
		return capability.NewIOError("write", p, ErrNotFound)
	}
	if _, ok := f.files[p]; !ok {
		f.link(p)
	}
	f.files[p] = content
	f.writes = append(f.writes, p)
	return nil
}

func (f *Files) ListDirectory(ctx context.Context, p string) ([]capability.Entry, error) {
	if err := f.enter(ctx, "list", p); err != nil {
		return nil, capability.NewIOError("list", p, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[p] {
		return nil, capability.NewIOError("list", p, ErrNotFound)
	}
	var out []capability.Entry
	for _, c := range f.order[p] {
		_, isFile := f.files[c]
		isDir := f.dirs[c]
		if !isFile && !isDir {
			continue
		}
		out = append(out, capability.Entry{
			Name:        path.Base(c),
			Path:        c,
			IsDirectory: isDir,
			IsFile:      isFile,
		})
	}
	return out, nil
}

func (f *Files) StatPath(ctx context.Context, p string) (capability.Stat, error) {
	if err := f.enter(ctx, "stat", p); err != nil {
		return capability.Stat{}, capability.NewIOError("stat", p, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[p] {
		return capability.Stat{IsDirectory: true, ModTime: time.Now()}, nil
	}
	if c, ok := f.files[p]; ok {
		return capability.Stat{IsFile: true, Size: int64(len(c)), ModTime: time.Now()}, nil
	}
	return capability.Stat{}, capability.NewIOError("stat", p, ErrNotFound)
}

// Dialogs answers pickers from queues and records every prompt. An empty
// queue answers "" (cancel).
type Dialogs struct {
	mu sync.Mutex

	OpenFiles   []string
	OpenFolders []string
	SaveFiles   []string

	// ConfirmAnswer is returned by ConfirmSaveBeforeClose.
	ConfirmAnswer bool
	ConfirmErr    error

	prompts   []string
	saveAsked int
}

var _ capability.Dialogs = (*Dialogs)(nil)

func pop(q *[]string) string {
	if len(*q) == 0 {
		return ""
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}

func (d *Dialogs) PickOpenFile(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return pop(&d.OpenFiles), nil
}

func (d *Dialogs) PickOpenFolder(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return pop(&d.OpenFolders), nil
}

func (d *Dialogs) PickSaveFile(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saveAsked++
	return pop(&d.SaveFiles), nil
}

func (d *Dialogs) ConfirmSaveBeforeClose(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompts = append(d.prompts, name)
	return d.ConfirmAnswer, d.ConfirmErr
}

// Prompts lists the document names the user was asked about.
func (d *Dialogs) Prompts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.prompts...)
}

// SaveAsked counts save pickers shown.
func (d *Dialogs) SaveAsked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveAsked
}

// Editor records what was loaded.
type Editor struct {
	mu      sync.Mutex
	current *document.Document
	loads   int
	clears  int
}

var _ capability.Editor = (*Editor)(nil)

func (e *Editor) Load(doc document.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = &doc
	e.loads++
}

func (e *Editor) SetLanguage(id, lang string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && e.current.ID == id {
		e.current.Language = lang
	}
}

func (e *Editor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	e.clears++
}

// Current returns the loaded document, if any.
func (e *Editor) Current() (document.Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return document.Document{}, false
	}
	return *e.current, true
}

func (e *Editor) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

func (e *Editor) Clears() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clears
}

// Previewer records previewed paths.
type Previewer struct {
	mu    sync.Mutex
	paths []string
}

func (p *Previewer) Preview(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	return nil
}

func (p *Previewer) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

// Notices records notices.
type Notices struct {
	mu   sync.Mutex
	list []notify.Notice
}

func (n *Notices) Notify(x notify.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, x)
}

func (n *Notices) List() []notify.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notice(nil), n.list...)
}

// Count returns how many notices have the given level.
func (n *Notices) Count(level notify.Level) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.list {
		if x.Level == level {
			c++
		}
	}
	return c
}

// Watcher hands out subscriptions whose events are injected with Emit.
type Watcher struct {
	mu   sync.Mutex
	subs []*Subscription
	Err  error
}

var _ capability.Watcher = (*Watcher)(nil)

func (w *Watcher) Watch(root string, fn func(capability.WatchEvent)) (capability.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return nil, w.Err
	}
	s := &Subscription{root: root, fn: fn}
	w.subs = append(w.subs, s)
	return s, nil
}

// Subscriptions returns every subscription handed out, oldest first.
func (w *Watcher) Subscriptions() []*Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Subscription(nil), w.subs...)
}

// Emit delivers ev to the newest open subscription.
func (w *Watcher) Emit(ev capability.WatchEvent) {
	w.mu.Lock()
	var target *Subscription
	for i := len(w.subs) - 1; i >= 0; i-- {
		if !w.subs[i].IsClosed() {
			target = w.subs[i]
			break
		}
	}
	w.mu.Unlock()
	if target != nil {
		target.Deliver(ev)
	}
}

type Subscription struct {
	mu     sync.Mutex
	root   string
	fn     func(capability.WatchEvent)
	closed bool
}

func (s *Subscription) Root() string { return s.root }

func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Subscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Deliver calls the callback even when closed, to simulate late events.
func (s *Subscription) Deliver(ev capability.WatchEvent) {
	s.fn(ev)
}
