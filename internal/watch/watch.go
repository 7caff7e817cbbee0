// Package watch implements the watch capability on top of fsnotify.
// fsnotify is not recursive, so every directory below the root gets its own
// watch, and directories created later are added as they appear.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/util"
)

var ErrClosed = errors.New("watch subscription closed")

type Options struct {
	// Skip any path with a segment that starts with a dot.
	IgnoreDotfiles bool
	// Coalesce bursts of "changed" events per path. 0 delivers every write.
	Debounce time.Duration
	// How long a removed path may take to reappear before it is reported
	// as removed. A file replaced within this window is reported as
	// changed. 0 means DefaultRemoveGrace, negative reports at once.
	RemoveGrace time.Duration
}

// DefaultRemoveGrace covers rename-over and backup-then-write saves.
const DefaultRemoveGrace = 100 * time.Millisecond

// FS hands out fsnotify-backed subscriptions.
type FS struct {
	opts Options
}

func New(opts Options) *FS {
	if opts.RemoveGrace == 0 {
		opts.RemoveGrace = DefaultRemoveGrace
	}
	return &FS{opts: opts}
}

var _ capability.Watcher = (*FS)(nil)

// Watch starts watching root recursively. fn may be called from several
// goroutines and is never called after Close returns.
func (w *FS) Watch(root string, fn func(capability.WatchEvent)) (capability.Subscription, error) {
	root = filepath.Clean(root)
	st, err := os.Stat(root)
	if err != nil {
		return nil, capability.NewIOError("watch", root, err)
	}
	if !st.IsDir() {
		return nil, capability.NewIOError("watch", root, fmt.Errorf("%s is not a directory", root))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	s := &subscription{
		root:     root,
		opts:     w.opts,
		fn:       fn,
		watcher:  fw,
		closed:   make(chan struct{}),
		pending:  make(map[string]*pendingChange),
		removing: make(map[string]*time.Timer),
		known:    make(map[string]bool),
	}
	if err := s.addTree(root, false); err != nil {
		fw.Close()
		return nil, capability.NewIOError("watch", root, err)
	}

	s.wg.Add(1)
	go s.watchLoop()
	log.Printf("WATCH: watching %s", root)
	return s, nil
}

type subscription struct {
	root    string
	opts    Options
	fn      func(capability.WatchEvent)
	watcher *fsnotify.Watcher

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup

	// emitMu serialises delivery against Close.
	emitMu sync.Mutex
	done   bool

	mu       sync.Mutex
	pending  map[string]*pendingChange
	// removals waiting out the grace window
	removing map[string]*time.Timer
	// plain files that exist as far as the watch knows
	known map[string]bool
}

type pendingChange struct {
	run func(func())
}

func (s *subscription) Root() string { return s.root }

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.watcher.Close()
		s.wg.Wait()

		s.mu.Lock()
		for p, t := range s.removing {
			t.Stop()
			delete(s.removing, p)
		}
		s.mu.Unlock()

		s.emitMu.Lock()
		s.done = true
		s.emitMu.Unlock()
		log.Printf("WATCH: stopped %s", s.root)
	})
	return err
}

func (s *subscription) ignored(path string) bool {
	return s.opts.IgnoreDotfiles && util.HasDotSegment(s.root, path)
}

// addTree watches dir and every non-ignored directory below it. When
// announce is set, the entries found are reported as added; they may have
// been created before the watch was in place.
func (s *subscription) addTree(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == dir {
				return walkErr
			}
			return nil
		}
		if s.ignored(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if announce && p != dir {
			s.emit(capability.WatchEvent{Kind: capability.Added, Path: p})
		}
		if !d.IsDir() {
			if d.Type().IsRegular() {
				s.mu.Lock()
				s.known[p] = true
				s.mu.Unlock()
			}
			return nil
		}
		if err := s.watcher.Add(p); err != nil {
			if p == dir {
				return err
			}
			log.Printf("WATCH: cannot watch %s: %v", p, err)
		}
		return nil
	})
}

func (s *subscription) watchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closed:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WATCH: watcher error: %v", err)
		}
	}
}

func (s *subscription) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if s.ignored(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		s.created(path)
	case event.Op&fsnotify.Write != 0:
		s.changed(path)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		s.removed(path)
	}
}

// created reports a new path. A plain file that replaces one the watch
// already knew, or one removed inside the grace window, is a change.
func (s *subscription) created(path string) {
	st, err := os.Lstat(path)
	if err != nil {
		// gone again before we looked; a pending removal still stands
		return
	}

	s.mu.Lock()
	timer, wasRemoving := s.removing[path]
	if wasRemoving {
		timer.Stop()
		delete(s.removing, path)
	}
	replaced := s.known[path]
	if st.Mode().IsRegular() {
		s.known[path] = true
	}
	s.mu.Unlock()

	if st.Mode().IsRegular() && (wasRemoving || replaced) {
		s.changed(path)
		return
	}
	if wasRemoving {
		s.emit(capability.WatchEvent{Kind: capability.Removed, Path: path})
	}
	s.emit(capability.WatchEvent{Kind: capability.Added, Path: path})
	if st.IsDir() {
		if err := s.addTree(path, true); err != nil {
			log.Printf("WATCH: cannot watch new directory %s: %v", path, err)
		}
	}
}

// removed holds the removal for the grace window so a replacement can
// turn it into a change.
func (s *subscription) removed(path string) {
	s.mu.Lock()
	delete(s.pending, path)
	if s.opts.RemoveGrace < 0 {
		s.forgetLocked(path)
		s.mu.Unlock()
		s.emit(capability.WatchEvent{Kind: capability.Removed, Path: path})
		return
	}
	if t, ok := s.removing[path]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.opts.RemoveGrace, func() {
		s.mu.Lock()
		if s.removing[path] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.removing, path)
		s.mu.Unlock()

		if st, err := os.Lstat(path); err == nil && st.Mode().IsRegular() {
			// back in place and the create was missed
			s.changed(path)
			return
		}
		s.mu.Lock()
		s.forgetLocked(path)
		s.mu.Unlock()
		s.emit(capability.WatchEvent{Kind: capability.Removed, Path: path})
	})
	s.removing[path] = timer
	s.mu.Unlock()
}

func (s *subscription) forgetLocked(path string) {
	prefix := path + string(filepath.Separator)
	for p := range s.known {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(s.known, p)
		}
	}
}

func (s *subscription) changed(path string) {
	ev := capability.WatchEvent{Kind: capability.Changed, Path: path}
	if s.opts.Debounce <= 0 {
		s.emit(ev)
		return
	}

	s.mu.Lock()
	pc, ok := s.pending[path]
	if !ok {
		pc = &pendingChange{run: debounce.New(s.opts.Debounce)}
		s.pending[path] = pc
	}
	s.mu.Unlock()

	pc.run(func() {
		s.mu.Lock()
		if s.pending[path] == pc {
			delete(s.pending, path)
		}
		s.mu.Unlock()

		// removed while the burst was settling
		if _, err := os.Stat(path); err != nil {
			return
		}
		s.emit(ev)
	})
}

func (s *subscription) emit(ev capability.WatchEvent) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.done {
		return
	}
	select {
	case <-s.closed:
		return
	default:
	}
	s.fn(ev)
}
