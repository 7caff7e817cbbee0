// Package fsaccess is the operating-system implementation of the file
// access capability.
package fsaccess

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/petervdpas/elypad/internal/capability"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrIsDirectory = errors.New("is a directory")
	ErrNotDir      = errors.New("not a directory")
)

// Disk reads and writes the local file system. Paths are used as given
// after cleaning; there is no root confinement.
type Disk struct{}

func New() *Disk { return &Disk{} }

var _ capability.Files = (*Disk)(nil)

func (d *Disk) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", capability.NewIOError("read", path, err)
	}
	abs := filepath.Clean(path)

	if st, err := os.Stat(abs); err == nil && st.IsDir() {
		return "", capability.NewIOError("read", path, ErrIsDirectory)
	}

	b, err := os.ReadFile(abs)
	if err != nil {
		return "", capability.NewIOError("read", path, mapErr(err))
	}
	return string(b), nil
}

// WriteFile replaces the file content in place. The parent directory must
// already exist. A write-in-place yields a single "changed" watch event,
// where a temp-file rename would show up as remove+add.
func (d *Disk) WriteFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return capability.NewIOError("write", path, err)
	}
	abs := filepath.Clean(path)

	// If the target exists and is a directory, refuse (file/dir collision)
	if st, err := os.Stat(abs); err == nil && st.IsDir() {
		return capability.NewIOError("write", path, ErrIsDirectory)
	}

	if st, err := os.Stat(filepath.Dir(abs)); err != nil {
		return capability.NewIOError("write", path, mapErr(err))
	} else if !st.IsDir() {
		return capability.NewIOError("write", path, ErrNotDir)
	}

	mode := os.FileMode(0o644)
	if st, err := os.Stat(abs); err == nil {
		mode = st.Mode().Perm()
	}

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return capability.NewIOError("write", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return capability.NewIOError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return capability.NewIOError("write", path, err)
	}
	return nil
}

// ListDirectory returns the direct children of path in directory order.
// Symlinks are classified by their target.
func (d *Disk) ListDirectory(ctx context.Context, path string) ([]capability.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, capability.NewIOError("list", path, err)
	}
	absDir := filepath.Clean(path)

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, capability.NewIOError("list", path, mapErr(err))
	}

	out := make([]capability.Entry, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(absDir, e.Name())
		mode := e.Type()
		if mode&os.ModeSymlink != 0 {
			st, err := os.Stat(p)
			if err != nil {
				// dangling link
				continue
			}
			mode = st.Mode().Type()
		}
		out = append(out, capability.Entry{
			Name:        e.Name(),
			Path:        p,
			IsDirectory: mode.IsDir(),
			IsFile:      mode.IsRegular(),
		})
	}
	return out, nil
}

func (d *Disk) StatPath(ctx context.Context, path string) (capability.Stat, error) {
	if err := ctx.Err(); err != nil {
		return capability.Stat{}, capability.NewIOError("stat", path, err)
	}
	st, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return capability.Stat{}, capability.NewIOError("stat", path, mapErr(err))
	}
	return capability.Stat{
		IsDirectory: st.IsDir(),
		IsFile:      st.Mode().IsRegular(),
		Size:        st.Size(),
		ModTime:     st.ModTime(),
	}, nil
}

func mapErr(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
