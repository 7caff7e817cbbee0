// Package capability holds the contracts between the editor core and the
// collaborators it does not implement itself: file access, watching, native
// dialogs, the editing widget and media preview.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/notify"
)

// ErrUnavailable is returned when a capability is absent in the current
// runtime (for example no dialog shell in headless mode).
var ErrUnavailable = errors.New("capability unavailable")

// IOError reports a failed read, write, list or stat call.
type IOError struct {
	Op   string // read, write, list, stat, watch
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: unknown error", e.Op, e.Path)
	}
	return e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps err unless it already is an *IOError.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// Entry is one child of a listed directory.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	IsFile      bool   `json:"is_file"`
}

// Stat describes a single path.
type Stat struct {
	IsDirectory bool      `json:"is_directory"`
	IsFile      bool      `json:"is_file"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
}

// Files is the asynchronous file access capability. Calls may block; the
// core always invokes them off the event loop.
type Files interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	ListDirectory(ctx context.Context, path string) ([]Entry, error)
	StatPath(ctx context.Context, path string) (Stat, error)
}

// EventKind classifies a watch event.
type EventKind string

const (
	Added   EventKind = "added"
	Changed EventKind = "changed"
	Removed EventKind = "removed"
)

// WatchEvent is emitted by a watch subscription.
type WatchEvent struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}

// Subscription is an active watch. Close stops event delivery.
type Subscription interface {
	Root() string
	Close() error
}

// Watcher establishes watch subscriptions on a root directory. The callback
// is invoked from the watcher's own goroutine.
type Watcher interface {
	Watch(root string, fn func(WatchEvent)) (Subscription, error)
}

// Dialogs is the windowing shell. Pickers return "" when the user cancels.
type Dialogs interface {
	PickOpenFile(ctx context.Context) (string, error)
	PickOpenFolder(ctx context.Context) (string, error)
	PickSaveFile(ctx context.Context) (string, error)
	ConfirmSaveBeforeClose(ctx context.Context, name string) (bool, error)
}

// Editor renders and edits the active document.
type Editor interface {
	Load(doc document.Document)
	Clear()
	// SetLanguage switches the mode of the loaded document, e.g. after a
	// save-as gave it a new extension. Other ids are ignored.
	SetLanguage(id, lang string)
}

// Previewer shows a media file that is not opened as a document.
type Previewer interface {
	Preview(ctx context.Context, path string) error
}

// Notifier surfaces a message to the user. notify.Center satisfies it.
type Notifier interface {
	Notify(n notify.Notice)
}
