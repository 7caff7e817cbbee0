package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
)

type recorder struct {
	mu     sync.Mutex
	events []capability.WatchEvent
}

func (r *recorder) add(ev capability.WatchEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(kind capability.EventKind, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && ev.Path == path {
			n++
		}
	}
	return n
}

func (r *recorder) waitFor(t *testing.T, kind capability.EventKind, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.count(kind, path) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t.Fatalf("no %s event for %s; got %+v", kind, path, r.events)
}

func startWatch(t *testing.T, root string, opts Options) (*recorder, capability.Subscription) {
	t.Helper()
	rec := &recorder{}
	sub, err := New(opts).Watch(root, rec.add)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sub.Close() })
	return rec, sub
}

func TestWatchAddChangeRemove(t *testing.T) {
	root := t.TempDir()
	rec, sub := startWatch(t, root, Options{IgnoreDotfiles: true})
	if sub.Root() != filepath.Clean(root) {
		t.Fatalf("Root = %q", sub.Root())
	}

	p := filepath.Join(root, "a.lua")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Added, p)

	if err := os.WriteFile(p, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Changed, p)

	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Removed, p)
}

func TestWatchIsRecursive(t *testing.T) {
	root := t.TempDir()
	rec, _ := startWatch(t, root, Options{})

	sub := filepath.Join(root, "src")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Added, sub)

	// give the new directory watch a moment to be registered
	time.Sleep(50 * time.Millisecond)
	p := filepath.Join(sub, "main.lua")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Added, p)
}

func TestWatchIgnoresDotfiles(t *testing.T) {
	root := t.TempDir()
	rec, _ := startWatch(t, root, Options{IgnoreDotfiles: true})

	hidden := filepath.Join(root, ".hidden")
	visible := filepath.Join(root, "visible.txt")
	os.WriteFile(hidden, []byte("x"), 0o644)
	os.WriteFile(visible, []byte("x"), 0o644)
	rec.waitFor(t, capability.Added, visible)

	if n := rec.count(capability.Added, hidden); n != 0 {
		t.Fatalf("got %d events for dotfile", n)
	}
}

func TestDebounceCoalescesWrites(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "busy.txt")
	os.WriteFile(p, []byte("0"), 0o644)

	rec, _ := startWatch(t, root, Options{Debounce: 200 * time.Millisecond})

	for i := 0; i < 5; i++ {
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			t.Fatal(err)
		}
		f.WriteString("x")
		f.Close()
	}
	rec.waitFor(t, capability.Changed, p)
	time.Sleep(300 * time.Millisecond)

	if n := rec.count(capability.Changed, p); n != 1 {
		t.Fatalf("changed events = %d, want 1", n)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	root := t.TempDir()
	rec, sub := startWatch(t, root, Options{})
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
	sub.Close()

	p := filepath.Join(root, "late.txt")
	os.WriteFile(p, []byte("x"), 0o644)
	time.Sleep(100 * time.Millisecond)
	if n := rec.count(capability.Added, p); n != 0 {
		t.Fatalf("got %d events after Close", n)
	}
}

func TestWatchMissingRoot(t *testing.T) {
	_, err := New(Options{}).Watch(filepath.Join(t.TempDir(), "missing"), func(capability.WatchEvent) {})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRenameOverFileIsChange(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.lua")
	os.WriteFile(p, []byte("old"), 0o644)
	rec, _ := startWatch(t, root, Options{})

	tmp := filepath.Join(root, "a.lua.tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, p); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Changed, p)
	rec.waitFor(t, capability.Removed, tmp)

	if n := rec.count(capability.Added, p) + rec.count(capability.Removed, p); n != 0 {
		t.Fatalf("got %d added/removed events for replaced file", n)
	}
}

func TestBackupThenWriteIsChange(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.lua")
	os.WriteFile(p, []byte("old"), 0o644)
	rec, _ := startWatch(t, root, Options{RemoveGrace: 200 * time.Millisecond})

	backup := p + "~"
	if err := os.Rename(p, backup); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Changed, p)
	rec.waitFor(t, capability.Added, backup)
	time.Sleep(300 * time.Millisecond)

	if n := rec.count(capability.Removed, p); n != 0 {
		t.Fatalf("removed events = %d, want 0", n)
	}
}

func TestRemovalReportedAfterGrace(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "gone.txt")
	os.WriteFile(p, []byte("x"), 0o644)
	rec, _ := startWatch(t, root, Options{RemoveGrace: 50 * time.Millisecond})

	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, capability.Removed, p)
	if n := rec.count(capability.Changed, p); n != 0 {
		t.Fatalf("changed events = %d, want 0", n)
	}
}

func TestSettledChangesAreForgotten(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "a.txt")
	os.WriteFile(p, []byte("0"), 0o644)
	rec, sub := startWatch(t, root, Options{Debounce: 20 * time.Millisecond})

	os.WriteFile(p, []byte("1"), 0o644)
	rec.waitFor(t, capability.Changed, p)
	time.Sleep(20 * time.Millisecond)

	s := sub.(*subscription)
	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("pending debouncers = %d, want 0", n)
	}
}
