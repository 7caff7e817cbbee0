// Package editor is a headless text widget: it holds the active document's
// text, cursor and selection, and reports edits back to the tab manager.
// The desktop frontend drives the same operations through the bridge.
package editor

import (
	"fmt"
	"sync"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/search"
)

// Selection is a pair of rune offsets. Anchor is where the selection
// started, Cursor is where it currently extends to.
type Selection struct {
	Anchor int `json:"anchor"`
	Cursor int `json:"cursor"`
}

// Ordered returns the selection bounds in ascending order.
func (s Selection) Ordered() (start, end int) {
	if s.Anchor <= s.Cursor {
		return s.Anchor, s.Cursor
	}
	return s.Cursor, s.Anchor
}

// Status is what the status bar shows for the cursor.
type Status struct {
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	FileType string `json:"file_type"`
	Text     string `json:"text"`
}

// editOp records a single edit for undo/redo support.
type editOp struct {
	offset  int
	oldText []rune
	newText []rune
}

type Buffer struct {
	mu sync.Mutex

	docID  string
	lang   string
	loaded bool
	text   []rune
	sel    Selection

	undoStack []editOp
	redoStack []editOp

	searchTimeout time.Duration

	onChange func(id, content string)
	onCursor func(Status)
}

var _ capability.Editor = (*Buffer)(nil)

func New(searchTimeout time.Duration) *Buffer {
	return &Buffer{searchTimeout: searchTimeout}
}

// OnContentChanged registers the edit callback. It runs on the goroutine
// that made the edit, outside the buffer lock.
func (b *Buffer) OnContentChanged(fn func(id, content string)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// OnCursor registers the cursor callback.
func (b *Buffer) OnCursor(fn func(Status)) {
	b.mu.Lock()
	b.onCursor = fn
	b.mu.Unlock()
}

// Load shows doc. History and selection start over.
func (b *Buffer) Load(doc document.Document) {
	b.mu.Lock()
	b.docID = doc.ID
	b.lang = doc.Language
	b.loaded = true
	b.text = []rune(doc.Content)
	b.sel = Selection{}
	b.undoStack = nil
	b.redoStack = nil
	st := b.statusLocked()
	cb := b.onCursor
	b.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

// SetLanguage changes the mode of the loaded document.
func (b *Buffer) SetLanguage(id, lang string) {
	b.mu.Lock()
	if !b.loaded || b.docID != id {
		b.mu.Unlock()
		return
	}
	b.lang = lang
	st := b.statusLocked()
	cb := b.onCursor
	b.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

// Clear shows the welcome state.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.docID = ""
	b.lang = ""
	b.loaded = false
	b.text = nil
	b.sel = Selection{}
	b.undoStack = nil
	b.redoStack = nil
	b.mu.Unlock()
}

func (b *Buffer) DocumentID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docID
}

func (b *Buffer) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *Buffer) Selection() Selection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel
}

// SelectedText returns the text between anchor and cursor.
func (b *Buffer) SelectedText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	start, end := b.sel.Ordered()
	return string(b.text[start:end])
}

// ── edits ───────────────────────────────────────────────────────────────────

// SetText replaces the whole text as one undoable edit.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	if !b.loaded || string(b.text) == text {
		b.mu.Unlock()
		return
	}
	b.applyLocked(0, b.text, []rune(text))
	b.sel = Selection{Anchor: b.clamp(b.sel.Anchor), Cursor: b.clamp(b.sel.Cursor)}
	b.emitLocked()
}

// Insert replaces the selection with text and puts the cursor after it.
func (b *Buffer) Insert(text string) {
	b.mu.Lock()
	if !b.loaded {
		b.mu.Unlock()
		return
	}
	start, end := b.sel.Ordered()
	ins := []rune(text)
	b.applyLocked(start, b.text[start:end], ins)
	b.sel = Selection{Anchor: start + len(ins), Cursor: start + len(ins)}
	b.emitLocked()
}

// applyLocked replaces old at offset with repl and records the edit.
func (b *Buffer) applyLocked(offset int, old, repl []rune) {
	op := editOp{
		offset:  offset,
		oldText: append([]rune(nil), old...),
		newText: append([]rune(nil), repl...),
	}
	b.undoStack = append(b.undoStack, op)
	b.redoStack = nil
	b.splice(op.offset, len(op.oldText), op.newText)
}

func (b *Buffer) splice(offset, n int, repl []rune) {
	out := make([]rune, 0, len(b.text)-n+len(repl))
	out = append(out, b.text[:offset]...)
	out = append(out, repl...)
	out = append(out, b.text[offset+n:]...)
	b.text = out
}

// Undo reverses the last edit.
func (b *Buffer) Undo() bool {
	b.mu.Lock()
	if len(b.undoStack) == 0 {
		b.mu.Unlock()
		return false
	}
	op := b.undoStack[len(b.undoStack)-1]
	b.undoStack = b.undoStack[:len(b.undoStack)-1]
	b.splice(op.offset, len(op.newText), op.oldText)
	b.redoStack = append(b.redoStack, op)
	end := op.offset + len(op.oldText)
	b.sel = Selection{Anchor: end, Cursor: end}
	b.emitLocked()
	return true
}

// Redo reapplies the last undone edit.
func (b *Buffer) Redo() bool {
	b.mu.Lock()
	if len(b.redoStack) == 0 {
		b.mu.Unlock()
		return false
	}
	op := b.redoStack[len(b.redoStack)-1]
	b.redoStack = b.redoStack[:len(b.redoStack)-1]
	b.splice(op.offset, len(op.oldText), op.newText)
	b.undoStack = append(b.undoStack, op)
	end := op.offset + len(op.newText)
	b.sel = Selection{Anchor: end, Cursor: end}
	b.emitLocked()
	return true
}

// emitLocked releases the lock and reports the new content and cursor.
func (b *Buffer) emitLocked() {
	id, content := b.docID, string(b.text)
	st := b.statusLocked()
	change, cursor := b.onChange, b.onCursor
	b.mu.Unlock()

	if change != nil {
		change(id, content)
	}
	if cursor != nil {
		cursor(st)
	}
}

// ── cursor ──────────────────────────────────────────────────────────────────

func (b *Buffer) clamp(off int) int {
	if off < 0 {
		return 0
	}
	if off > len(b.text) {
		return len(b.text)
	}
	return off
}

// Select sets the selection; offsets are clamped to the text.
func (b *Buffer) Select(anchor, cursor int) {
	b.mu.Lock()
	b.sel = Selection{Anchor: b.clamp(anchor), Cursor: b.clamp(cursor)}
	st := b.statusLocked()
	cb := b.onCursor
	b.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

// SetCursor collapses the selection at off.
func (b *Buffer) SetCursor(off int) { b.Select(off, off) }

// Status reports the 1-based line and column of the cursor and the file
// type of the loaded document.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Buffer) statusLocked() Status {
	line, col := 1, 1
	for _, r := range b.text[:b.clamp(b.sel.Cursor)] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Status{
		Line:     line,
		Column:   col,
		FileType: document.FileType(b.lang),
		Text:     fmt.Sprintf("line %d, column %d", line, col),
	}
}

// ── find / replace ──────────────────────────────────────────────────────────

func (b *Buffer) compile(term string, opts search.Options) (*search.Matcher, error) {
	if opts.Timeout == 0 {
		opts.Timeout = b.searchTimeout
	}
	return search.Compile(term, opts)
}

// FindNext selects the next match after the selection, wrapping around.
func (b *Buffer) FindNext(term string, opts search.Options) (search.Match, bool, error) {
	m, err := b.compile(term, opts)
	if err != nil {
		return search.Match{}, false, err
	}
	b.mu.Lock()
	_, end := b.sel.Ordered()
	text := string(b.text)
	b.mu.Unlock()

	hit, ok, err := m.Next(text, end)
	if err != nil || !ok {
		return hit, ok, err
	}
	b.Select(hit.Start, hit.End)
	return hit, true, nil
}

// FindPrevious selects the last match before the selection, wrapping around.
func (b *Buffer) FindPrevious(term string, opts search.Options) (search.Match, bool, error) {
	m, err := b.compile(term, opts)
	if err != nil {
		return search.Match{}, false, err
	}
	b.mu.Lock()
	start, _ := b.sel.Ordered()
	text := string(b.text)
	b.mu.Unlock()

	hit, ok, err := m.Prev(text, start)
	if err != nil || !ok {
		return hit, ok, err
	}
	b.Select(hit.Start, hit.End)
	return hit, true, nil
}

// Replace replaces the selection if it is exactly a match, then moves on
// to the next match. It reports whether a replacement was made.
func (b *Buffer) Replace(term, repl string, opts search.Options) (bool, error) {
	m, err := b.compile(term, opts)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	if !b.loaded {
		b.mu.Unlock()
		return false, nil
	}
	start, end := b.sel.Ordered()
	text := string(b.text)
	hit, err := m.IsMatch(text, start, end)
	if err != nil || !hit || start == end {
		b.mu.Unlock()
		if err == nil {
			_, _, err = b.FindNext(term, opts)
		}
		return false, err
	}

	out, err := m.ReplaceAt(text, start, repl)
	if err != nil {
		b.mu.Unlock()
		return false, err
	}
	newRunes := []rune(out)
	inserted := end - start + len(newRunes) - len(b.text)
	b.applyLocked(start, b.text[start:end], newRunes[start:start+inserted])
	b.sel = Selection{Anchor: start + inserted, Cursor: start + inserted}
	b.emitLocked()

	_, _, err = b.FindNext(term, opts)
	return true, err
}

// ReplaceAll replaces every match as a single undoable edit.
func (b *Buffer) ReplaceAll(term, repl string, opts search.Options) (int, error) {
	m, err := b.compile(term, opts)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	if !b.loaded {
		b.mu.Unlock()
		return 0, nil
	}
	out, n, err := m.ReplaceAll(string(b.text), repl)
	if err != nil || n == 0 {
		b.mu.Unlock()
		return 0, err
	}
	b.applyLocked(0, b.text, []rune(out))
	b.sel = Selection{Anchor: b.clamp(b.sel.Anchor), Cursor: b.clamp(b.sel.Cursor)}
	b.emitLocked()
	return n, nil
}
