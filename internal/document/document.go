// Package document describes one open editable buffer.
package document

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Language modes understood by the editor.
const (
	LangLua       = "lua"
	LangMarkdown  = "markdown"
	LangPlaintext = "plaintext"
)

// Document is one open buffer, either untitled or backed by a path.
type Document struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	SourcePath  string    `json:"source_path,omitempty"`
	Content     string    `json:"-"`
	Dirty       bool      `json:"dirty"`
	New         bool      `json:"new"` // never saved; SourcePath is empty
	Conflict    bool      `json:"conflict"`
	Language    string    `json:"language"`
	OpenedAt    time.Time `json:"opened_at"`
}

// NewUntitled returns a never-saved document named "<prefix>-<n>".
func NewUntitled(prefix string, n int) *Document {
	if prefix == "" {
		prefix = "untitled"
	}
	return &Document{
		ID:          uuid.NewString(),
		DisplayName: fmt.Sprintf("%s-%d", prefix, n),
		New:         true,
		Language:    LangPlaintext,
		OpenedAt:    time.Now(),
	}
}

// NewFromDisk returns a clean document for content read from path.
func NewFromDisk(path, content string) *Document {
	return &Document{
		ID:          uuid.NewString(),
		DisplayName: BaseName(path),
		SourcePath:  path,
		Content:     content,
		Language:    LanguageFor(path),
		OpenedAt:    time.Now(),
	}
}

// Bind attaches a destination path on first save. A path, once set, is
// only ever replaced, never cleared.
func (d *Document) Bind(path string) {
	if path == "" {
		return
	}
	d.SourcePath = path
	d.New = false
	d.DisplayName = BaseName(path)
	d.Language = LanguageFor(path)
}

// BaseName is the final segment of path, accepting both separators.
func BaseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// LanguageFor maps a path to an editor language mode.
func LanguageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return LangLua
	case ".md", ".markdown":
		return LangMarkdown
	default:
		return LangPlaintext
	}
}

// FileType is the status-bar label for a language mode.
func FileType(lang string) string {
	switch lang {
	case LangLua:
		return "lua"
	case LangMarkdown:
		return "markdown"
	default:
		return "plain text"
	}
}

// MediaSet is a set of lower-case extensions (".png") that are previewed
// instead of opened as text.
type MediaSet map[string]bool

// DefaultMediaExtensions lists the extensions treated as non-text media.
var DefaultMediaExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp",
	".mp3", ".wav", ".ogg", ".flac",
	".mp4", ".webm", ".mov",
	".pdf",
}

// NewMediaSet builds a set from extensions; entries without a leading dot
// are accepted.
func NewMediaSet(exts []string) MediaSet {
	m := make(MediaSet, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

// IsMedia reports whether path has a media extension.
func (m MediaSet) IsMedia(path string) bool {
	return m[strings.ToLower(filepath.Ext(path))]
}
