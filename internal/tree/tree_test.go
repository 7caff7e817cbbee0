package tree

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/capability/captest"
	"github.com/petervdpas/elypad/internal/loop"
	"github.com/petervdpas/elypad/internal/notify"
)

func setup(t *testing.T) (*loop.Loop, *Tree, *captest.Files, *captest.Notices) {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	files := captest.NewFiles()
	notices := &captest.Notices{}
	return l, New(l, files, notices), files, notices
}

func await(t *testing.T, l *loop.Loop, start func(done func(error))) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.Await(ctx, start)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("operation never completed")
	}
	return err
}

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadSortsDirectoriesFirst(t *testing.T) {
	l, tr, files, _ := setup(t)
	files.Put("/root/file.txt", "")
	files.Mkdir("/root/dir1")

	if err := await(t, l, func(done func(error)) { tr.Load(context.Background(), "/root", done) }); err != nil {
		t.Fatal(err)
	}
	var rows []Row
	l.Do(context.Background(), func() { rows = tr.Snapshot() })

	if got := names(rows); !equal(got, []string{"dir1", "file.txt"}) {
		t.Fatalf("rows = %v, want [dir1 file.txt]", got)
	}
	if rows[0].Kind != Directory || rows[0].State != Collapsed {
		t.Fatalf("dir1 = %+v", rows[0])
	}
	if rows[1].Kind != File {
		t.Fatalf("file.txt = %+v", rows[1])
	}
}

func TestListChildrenOrdering(t *testing.T) {
	l, tr, files, _ := setup(t)
	for _, p := range []string{"/w/zeta.txt", "/w/beta.lua", "/w/Alpha.lua", "/w/README.md"} {
		files.Put(p, "")
	}
	files.Mkdir("/w/src")
	files.Mkdir("/w/Docs")

	var got []string
	err := await(t, l, func(done func(error)) {
		tr.ListChildren(context.Background(), "/w", func(entries []capability.Entry, err error) {
			for _, e := range entries {
				got = append(got, e.Name)
			}
			done(err)
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Docs", "src", "Alpha.lua", "beta.lua", "README.md", "zeta.txt"}
	if !equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestToggleExpandCycle(t *testing.T) {
	l, tr, files, _ := setup(t)
	files.Put("/root/dir1/inner.lua", "")
	files.Put("/root/file.txt", "")
	ctx := context.Background()

	if err := await(t, l, func(done func(error)) { tr.Load(ctx, "/root", done) }); err != nil {
		t.Fatal(err)
	}

	toggle := func() {
		if err := await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/dir1", done) }); err != nil {
			t.Fatal(err)
		}
	}
	node := func() (Node, []Node) {
		var n Node
		var kids []Node
		l.Do(ctx, func() {
			n, _ = tr.Node("/root/dir1")
			kids = tr.Children("/root/dir1")
		})
		return n, kids
	}

	toggle()
	n, kids := node()
	if n.State != Expanded || len(kids) != 1 || kids[0].Name != "inner.lua" {
		t.Fatalf("after first toggle: %+v %+v", n, kids)
	}

	toggle()
	n, kids = node()
	if n.State != Collapsed || len(kids) != 0 {
		t.Fatalf("after second toggle: %+v %+v", n, kids)
	}
	var innerKnown bool
	l.Do(ctx, func() { _, innerKnown = tr.Node("/root/dir1/inner.lua") })
	if innerKnown {
		t.Fatal("collapsed children still indexed")
	}

	lists := files.Calls("list", "/root/dir1")
	toggle()
	if files.Calls("list", "/root/dir1") != lists+1 {
		t.Fatal("third toggle did not re-list")
	}
	n, kids = node()
	if n.State != Expanded || len(kids) != 1 {
		t.Fatalf("after third toggle: %+v %+v", n, kids)
	}
}

func TestToggleWhileExpandingIsIgnored(t *testing.T) {
	l, tr, files, _ := setup(t)
	files.Put("/root/dir1/a.lua", "")
	ctx := context.Background()
	if err := await(t, l, func(done func(error)) { tr.Load(ctx, "/root", done) }); err != nil {
		t.Fatal(err)
	}

	release := files.Hold("list", "/root/dir1")
	first := make(chan error, 1)
	l.Do(ctx, func() {
		tr.ToggleExpand(ctx, "/root/dir1", func(err error) { first <- err })
	})
	var state State
	err := await(t, l, func(done func(error)) {
		tr.ToggleExpand(ctx, "/root/dir1", done)
		n, _ := tr.Node("/root/dir1")
		state = n.State
	})
	if err != nil || state != Expanding {
		t.Fatalf("second toggle err = %v state = %s", err, state)
	}
	release()
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if n := files.Calls("list", "/root/dir1"); n != 1 {
		t.Fatalf("lists = %d, want 1", n)
	}
}

func TestExpandFailureCollapses(t *testing.T) {
	l, tr, files, notices := setup(t)
	files.Mkdir("/root/locked")
	ctx := context.Background()
	if err := await(t, l, func(done func(error)) { tr.Load(ctx, "/root", done) }); err != nil {
		t.Fatal(err)
	}

	files.Fail("list", "/root/locked", errors.New("permission denied"))
	err := await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/locked", done) })
	var ioe *capability.IOError
	if !errors.As(err, &ioe) || err.Error() != "permission denied" {
		t.Fatalf("err = %v", err)
	}
	var n Node
	l.Do(ctx, func() { n, _ = tr.Node("/root/locked") })
	if n.State != Collapsed {
		t.Fatalf("state = %s, want collapsed", n.State)
	}
	if notices.Count(notify.Error) != 1 {
		t.Fatal("failure not surfaced")
	}
}

func TestReloadDropsStaleListing(t *testing.T) {
	l, tr, files, _ := setup(t)
	files.Put("/old/a.txt", "")
	files.Put("/new/b.txt", "")
	ctx := context.Background()

	release := files.Hold("list", "/old")
	stale := make(chan error, 1)
	l.Do(ctx, func() { tr.Load(ctx, "/old", func(err error) { stale <- err }) })

	if err := await(t, l, func(done func(error)) { tr.Load(ctx, "/new", done) }); err != nil {
		t.Fatal(err)
	}
	release()
	if err := <-stale; !errors.Is(err, ErrStale) {
		t.Fatalf("stale load err = %v, want ErrStale", err)
	}

	var rows []Row
	var root string
	l.Do(ctx, func() {
		rows = tr.Snapshot()
		root = tr.Root()
	})
	if root != "/new" || !equal(names(rows), []string{"b.txt"}) {
		t.Fatalf("root = %s rows = %v", root, names(rows))
	}
}

func TestRefreshPicksUpNewEntries(t *testing.T) {
	l, tr, files, _ := setup(t)
	files.Put("/root/dir1/x.lua", "")
	ctx := context.Background()
	if err := await(t, l, func(done func(error)) { tr.Load(ctx, "/root", done) }); err != nil {
		t.Fatal(err)
	}
	if err := await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/dir1", done) }); err != nil {
		t.Fatal(err)
	}

	files.Put("/root/added.lua", "")
	if err := await(t, l, func(done func(error)) { tr.Refresh(ctx, done) }); err != nil {
		t.Fatal(err)
	}

	var rows []Row
	l.Do(ctx, func() { rows = tr.Snapshot() })
	if !equal(names(rows), []string{"dir1", "added.lua"}) {
		t.Fatalf("rows = %v", names(rows))
	}
	if rows[0].State != Collapsed {
		t.Fatal("refresh should collapse subdirectories")
	}
}

func TestSnapshotDepth(t *testing.T) {
	l, tr, files, _ := setup(t)
	files.Put("/root/a/b/c.txt", "")
	ctx := context.Background()
	await(t, l, func(done func(error)) { tr.Load(ctx, "/root", done) })
	await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/a", done) })
	await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/a/b", done) })

	var rows []Row
	l.Do(ctx, func() { rows = tr.Snapshot() })
	if len(rows) != 3 {
		t.Fatalf("rows = %+v", rows)
	}
	for i, r := range rows {
		if r.Depth != i {
			t.Fatalf("row %s depth = %d, want %d", r.Name, r.Depth, i)
		}
	}
}

func TestToggleErrors(t *testing.T) {
	l, tr, files, _ := setup(t)
	ctx := context.Background()

	if err := await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/x", done) }); !errors.Is(err, ErrNoRoot) {
		t.Fatalf("err = %v, want ErrNoRoot", err)
	}

	files.Put("/root/f.txt", "")
	await(t, l, func(done func(error)) { tr.Load(ctx, "/root", done) })
	if err := await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/f.txt", done) }); !errors.Is(err, ErrNotDir) {
		t.Fatalf("err = %v, want ErrNotDir", err)
	}
	if err := await(t, l, func(done func(error)) { tr.ToggleExpand(ctx, "/root/nope", done) }); !errors.Is(err, ErrUnknownPath) {
		t.Fatalf("err = %v, want ErrUnknownPath", err)
	}
}
