// Package tree models the lazily expanded directory tree of the workspace.
// Like tabs.Manager, a Tree is owned by the event loop.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/loop"
	"github.com/petervdpas/elypad/internal/notify"
)

var (
	ErrNoRoot      = errors.New("no workspace loaded")
	ErrUnknownPath = errors.New("path is not in the tree")
	ErrNotDir      = errors.New("not a directory")
	// ErrStale is returned when the tree was reloaded while a listing was
	// in flight; the listing result is discarded.
	ErrStale = errors.New("tree changed during listing")
)

type Kind string

const (
	Directory Kind = "directory"
	File      Kind = "file"
)

type State string

const (
	Collapsed State = "collapsed"
	Expanding State = "expanding"
	Expanded  State = "expanded"
)

// Node is one entry. Only expanded directories hold children.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Kind     Kind    `json:"kind"`
	State    State   `json:"state,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Row is a node flattened for display.
type Row struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Kind  Kind   `json:"kind"`
	State State  `json:"state,omitempty"`
	Depth int    `json:"depth"`
}

type Tree struct {
	loop     *loop.Loop
	files    capability.Files
	notifier capability.Notifier
	coll     *collate.Collator

	root  *Node
	index map[string]*Node
	// bumped on every Load and Refresh; listings started under an older
	// generation are dropped
	gen uint64

	onChange func()
}

func New(l *loop.Loop, files capability.Files, notifier capability.Notifier) *Tree {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Tree{
		loop:     l,
		files:    files,
		notifier: notifier,
		coll:     collate.New(language.Und, collate.IgnoreCase),
		index:    make(map[string]*Node),
	}
}

func (t *Tree) SetOnChange(fn func()) { t.onChange = fn }

func (t *Tree) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

// Root returns the workspace directory, or "" when none is loaded.
func (t *Tree) Root() string {
	if t.root == nil {
		return ""
	}
	return t.root.Path
}

// Node returns a copy of the node at path without its children.
func (t *Tree) Node(path string) (Node, bool) {
	n, ok := t.index[filepath.Clean(path)]
	if !ok {
		return Node{}, false
	}
	c := *n
	c.Children = nil
	return c, true
}

// Children returns the ordered children of an expanded directory.
func (t *Tree) Children(path string) []Node {
	n, ok := t.index[filepath.Clean(path)]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.Children))
	for _, c := range n.Children {
		cc := *c
		cc.Children = nil
		out = append(out, cc)
	}
	return out
}

// Snapshot flattens the visible part of the tree, depth 0 being the
// entries directly under the root.
func (t *Tree) Snapshot() []Row {
	if t.root == nil {
		return nil
	}
	var out []Row
	var walk func(ns []*Node, depth int)
	walk = func(ns []*Node, depth int) {
		for _, n := range ns {
			out = append(out, Row{Name: n.Name, Path: n.Path, Kind: n.Kind, State: n.State, Depth: depth})
			if n.State == Expanded {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(t.root.Children, 0)
	return out
}

// Load discards the current tree and lists root one level deep.
func (t *Tree) Load(ctx context.Context, root string, done func(error)) {
	done = orNop(done)
	root = filepath.Clean(root)

	t.gen++
	t.root = &Node{
		Name:  document.BaseName(root),
		Path:  root,
		Kind:  Directory,
		State: Expanding,
	}
	t.index = map[string]*Node{root: t.root}
	t.changed()

	t.expand(ctx, t.root, done)
}

// Refresh re-lists the root. Expanded subdirectories come back collapsed.
func (t *Tree) Refresh(ctx context.Context, done func(error)) {
	done = orNop(done)
	if t.root == nil {
		done(ErrNoRoot)
		return
	}
	t.gen++
	t.expand(ctx, t.root, done)
}

// ToggleExpand collapses an expanded directory or lists a collapsed one.
// Toggling a directory whose listing is in flight does nothing.
func (t *Tree) ToggleExpand(ctx context.Context, path string, done func(error)) {
	done = orNop(done)
	if t.root == nil {
		done(ErrNoRoot)
		return
	}
	n, ok := t.index[filepath.Clean(path)]
	if !ok {
		done(ErrUnknownPath)
		return
	}
	if n.Kind != Directory {
		done(ErrNotDir)
		return
	}

	switch n.State {
	case Expanded:
		t.collapse(n)
		t.changed()
		done(nil)
	case Expanding:
		done(nil)
	default:
		n.State = Expanding
		t.changed()
		t.expand(ctx, n, done)
	}
}

func (t *Tree) collapse(n *Node) {
	for _, c := range n.Children {
		t.unindex(c)
	}
	n.Children = nil
	n.State = Collapsed
}

func (t *Tree) unindex(n *Node) {
	delete(t.index, n.Path)
	for _, c := range n.Children {
		t.unindex(c)
	}
}

func (t *Tree) expand(ctx context.Context, n *Node, done func(error)) {
	gen := t.gen
	t.ListChildren(ctx, n.Path, func(entries []capability.Entry, err error) {
		if t.index[n.Path] != n || (n == t.root && gen != t.gen) {
			done(ErrStale)
			return
		}
		if err != nil {
			t.collapse(n)
			t.changed()
			done(err)
			return
		}
		for _, c := range n.Children {
			t.unindex(c)
		}
		n.Children = make([]*Node, 0, len(entries))
		for _, e := range entries {
			c := &Node{Name: e.Name, Path: filepath.Clean(e.Path), Kind: File}
			if e.IsDirectory {
				c.Kind = Directory
				c.State = Collapsed
			}
			n.Children = append(n.Children, c)
			t.index[c.Path] = c
		}
		n.State = Expanded
		t.changed()
		done(nil)
	})
}

// ListChildren reads one directory level, ordered directories first and
// then by name, case-insensitively. Failures are surfaced to the user.
func (t *Tree) ListChildren(ctx context.Context, path string, done func([]capability.Entry, error)) {
	if t.files == nil {
		done(nil, capability.ErrUnavailable)
		return
	}
	loop.Async(t.loop, ctx, func(ctx context.Context) ([]capability.Entry, error) {
		return t.files.ListDirectory(ctx, path)
	}, func(entries []capability.Entry, err error) {
		if err != nil {
			err = capability.NewIOError("list", path, err)
			log.Printf("TREE: list %s: %v", path, err)
			t.notifier.Notify(notify.Notice{
				Level:   notify.Error,
				Message: fmt.Sprintf("could not list %s: %v", document.BaseName(path), err),
				Path:    path,
			})
			done(nil, err)
			return
		}
		t.sortEntries(entries)
		done(entries, nil)
	})
}

func (t *Tree) sortEntries(entries []capability.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDirectory != b.IsDirectory {
			return a.IsDirectory
		}
		if c := t.coll.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})
}

func orNop(done func(error)) func(error) {
	if done == nil {
		return func(error) {}
	}
	return done
}
