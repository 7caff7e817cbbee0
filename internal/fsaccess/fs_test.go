package fsaccess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/petervdpas/elypad/internal/capability"
)

func TestReadWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := New()
	p := filepath.Join(t.TempDir(), "a.lua")

	if err := d.WriteFile(ctx, p, "x = 1\n"); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadFile(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got != "x = 1\n" {
		t.Fatalf("ReadFile = %q", got)
	}

	if err := d.WriteFile(ctx, p, "y"); err != nil {
		t.Fatal(err)
	}
	got, _ = d.ReadFile(ctx, p)
	if got != "y" {
		t.Fatalf("after overwrite ReadFile = %q, want y", got)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := New().ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope"))
	var ioe *capability.IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("err = %T %v, want *IOError", err, err)
	}
	if ioe.Op != "read" || !errors.Is(err, ErrNotFound) {
		t.Fatalf("ioe = %+v", ioe)
	}
}

func TestWriteRefusesDirectoryAndMissingParent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := New()

	if err := d.WriteFile(ctx, dir, "x"); !errors.Is(err, ErrIsDirectory) {
		t.Fatalf("write to dir err = %v", err)
	}
	if err := d.WriteFile(ctx, filepath.Join(dir, "missing", "a.txt"), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("write with missing parent err = %v", err)
	}
}

func TestListDirectoryClassifiesEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "dir1"), 0o755)
	os.WriteFile(filepath.Join(dir, "file.txt"), []byte("hi"), 0o644)

	entries, err := New().ListDirectory(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	byName := map[string]capability.Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if e := byName["dir1"]; !e.IsDirectory || e.IsFile || e.Path != filepath.Join(dir, "dir1") {
		t.Fatalf("dir1 = %+v", e)
	}
	if e := byName["file.txt"]; e.IsDirectory || !e.IsFile {
		t.Fatalf("file.txt = %+v", e)
	}
}

func TestStatPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	os.WriteFile(p, []byte("abc"), 0o644)

	st, err := New().StatPath(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsFile || st.IsDirectory || st.Size != 3 {
		t.Fatalf("stat = %+v", st)
	}
	st, err = New().StatPath(ctx, dir)
	if err != nil || !st.IsDirectory {
		t.Fatalf("stat dir = %+v, %v", st, err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().ReadFile(ctx, "/whatever"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
