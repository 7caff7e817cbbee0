// Package workspace ties the directory tree, the open tabs and the watch
// subscription of one root folder together.
package workspace

import (
	"context"
	"errors"
	"log"
	"path/filepath"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/loop"
	"github.com/petervdpas/elypad/internal/tabs"
	"github.com/petervdpas/elypad/internal/tree"
)

type Deps struct {
	Files   capability.Files
	Watcher capability.Watcher
	Dialogs capability.Dialogs
}

// Workspace must be used from the event loop.
type Workspace struct {
	loop *loop.Loop
	tree *tree.Tree
	tabs *tabs.Manager
	deps Deps

	// lifetime context for work triggered by watch events
	base context.Context

	sub capability.Subscription
	gen uint64
}

func New(base context.Context, l *loop.Loop, tr *tree.Tree, tm *tabs.Manager, deps Deps) *Workspace {
	return &Workspace{
		loop: l,
		tree: tr,
		tabs: tm,
		deps: deps,
		base: base,
	}
}

// Root returns the loaded folder or "".
func (w *Workspace) Root() string { return w.tree.Root() }

// Load replaces the workspace: the previous watch is closed first, the
// new root is listed one level deep and then watched.
func (w *Workspace) Load(ctx context.Context, path string, done func(error)) {
	done = orNop(done)
	if path == "" {
		done(errors.New("empty path"))
		return
	}
	root := filepath.Clean(path)

	w.unsubscribe()
	w.gen++
	gen := w.gen
	log.Printf("WORKSPACE: loading %s", root)

	w.tree.Load(ctx, root, func(err error) {
		if err != nil {
			done(err)
			return
		}
		if gen != w.gen {
			done(tree.ErrStale)
			return
		}
		w.subscribe(ctx, gen, root, done)
	})
}

func (w *Workspace) subscribe(ctx context.Context, gen uint64, root string, done func(error)) {
	if w.deps.Watcher == nil {
		log.Printf("WORKSPACE: no watcher, %s will not follow disk changes", root)
		done(nil)
		return
	}
	loop.Async(w.loop, ctx, func(context.Context) (capability.Subscription, error) {
		return w.deps.Watcher.Watch(root, func(ev capability.WatchEvent) {
			w.loop.Post(func() { w.handle(gen, ev) })
		})
	}, func(sub capability.Subscription, err error) {
		if err != nil {
			log.Printf("WORKSPACE: watch %s: %v", root, err)
			done(capability.NewIOError("watch", root, err))
			return
		}
		if gen != w.gen {
			_ = sub.Close()
			done(tree.ErrStale)
			return
		}
		w.sub = sub
		done(nil)
	})
}

func (w *Workspace) unsubscribe() {
	if w.sub == nil {
		return
	}
	if err := w.sub.Close(); err != nil {
		log.Printf("WORKSPACE: close watch %s: %v", w.sub.Root(), err)
	}
	w.sub = nil
}

// Close stops watching. The tree and tabs stay as they are.
func (w *Workspace) Close() {
	w.unsubscribe()
	w.gen++
}

func (w *Workspace) handle(gen uint64, ev capability.WatchEvent) {
	if gen != w.gen {
		return
	}
	w.OnFileSystemEvent(ev.Kind, ev.Path)
}

// OnFileSystemEvent applies one watch event: additions and removals
// re-list the root, removals and changes are forwarded to the open tabs.
func (w *Workspace) OnFileSystemEvent(kind capability.EventKind, path string) {
	switch kind {
	case capability.Added:
		w.refresh()
	case capability.Removed:
		w.tabs.ExternalFileRemoved(path)
		w.refresh()
	case capability.Changed:
		w.tabs.ExternalFileChanged(w.base, path)
	default:
		log.Printf("WORKSPACE: unknown event %q for %s", kind, path)
	}
}

func (w *Workspace) refresh() {
	if w.tree.Root() == "" {
		return
	}
	w.tree.Refresh(w.base, func(err error) {
		if err != nil && !errors.Is(err, tree.ErrStale) {
			log.Printf("WORKSPACE: refresh: %v", err)
		}
	})
}

// OpenDropped handles a path dropped onto the window: folders become the
// workspace, files are opened.
func (w *Workspace) OpenDropped(ctx context.Context, path string, done func(error)) {
	done = orNop(done)
	if w.deps.Files == nil {
		done(capability.ErrUnavailable)
		return
	}
	loop.Async(w.loop, ctx, func(ctx context.Context) (capability.Stat, error) {
		return w.deps.Files.StatPath(ctx, path)
	}, func(st capability.Stat, err error) {
		if err != nil {
			log.Printf("WORKSPACE: drop %s: %v", path, err)
			done(capability.NewIOError("stat", path, err))
			return
		}
		if st.IsDirectory {
			w.Load(ctx, path, done)
			return
		}
		w.tabs.OpenPath(ctx, path, done)
	})
}

// OpenFolderDialog asks for a folder and loads it. Cancel is not an error.
func (w *Workspace) OpenFolderDialog(ctx context.Context, done func(error)) {
	done = orNop(done)
	if w.deps.Dialogs == nil {
		done(capability.ErrUnavailable)
		return
	}
	loop.Async(w.loop, ctx, w.deps.Dialogs.PickOpenFolder, func(path string, err error) {
		if err != nil || path == "" {
			done(err)
			return
		}
		w.Load(ctx, path, done)
	})
}

// OpenFileDialog asks for a file and opens it.
func (w *Workspace) OpenFileDialog(ctx context.Context, done func(error)) {
	done = orNop(done)
	if w.deps.Dialogs == nil {
		done(capability.ErrUnavailable)
		return
	}
	loop.Async(w.loop, ctx, w.deps.Dialogs.PickOpenFile, func(path string, err error) {
		if err != nil || path == "" {
			done(err)
			return
		}
		w.tabs.OpenPath(ctx, path, done)
	})
}

func orNop(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
