package editor

import (
	"testing"

	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/search"
)

func loaded(content string) (*Buffer, *[]string) {
	b := New(0)
	var changes []string
	b.OnContentChanged(func(id, c string) { changes = append(changes, c) })
	doc := document.NewFromDisk("/w/main.lua", content)
	b.Load(*doc)
	return b, &changes
}

func TestLoadAndClear(t *testing.T) {
	b, changes := loaded("x = 1")
	if b.Text() != "x = 1" || !b.Loaded() || b.DocumentID() == "" {
		t.Fatalf("after load: text=%q loaded=%v", b.Text(), b.Loaded())
	}
	if len(*changes) != 0 {
		t.Fatal("Load reported an edit")
	}
	b.Clear()
	if b.Loaded() || b.Text() != "" || b.DocumentID() != "" {
		t.Fatal("Clear left state behind")
	}
	b.SetText("ignored")
	if len(*changes) != 0 {
		t.Fatal("edit without a document was reported")
	}
}

func TestSetTextReportsChange(t *testing.T) {
	b, changes := loaded("a")
	b.SetText("ab")
	b.SetText("ab")
	if len(*changes) != 1 || (*changes)[0] != "ab" {
		t.Fatalf("changes = %v", *changes)
	}
}

func TestInsertUndoRedo(t *testing.T) {
	b, _ := loaded("hello world")
	b.Select(6, 11)
	b.Insert("lua")
	if b.Text() != "hello lua" {
		t.Fatalf("after insert = %q", b.Text())
	}
	if s := b.Selection(); s.Cursor != 9 {
		t.Fatalf("cursor = %d, want 9", s.Cursor)
	}
	if !b.Undo() || b.Text() != "hello world" {
		t.Fatalf("after undo = %q", b.Text())
	}
	if !b.Redo() || b.Text() != "hello lua" {
		t.Fatalf("after redo = %q", b.Text())
	}
	if b.Redo() {
		t.Fatal("redo with empty stack")
	}
}

func TestStatus(t *testing.T) {
	b, _ := loaded("local a = 1\nprint(a)\n")
	b.SetCursor(14)
	st := b.Status()
	if st.Line != 2 || st.Column != 3 {
		t.Fatalf("status = %+v, want line 2 column 3", st)
	}
	if st.Text != "line 2, column 3" || st.FileType != "lua" {
		t.Fatalf("status = %+v", st)
	}

	plain := New(0)
	plain.Load(*document.NewFromDisk("/w/notes.txt", ""))
	if ft := plain.Status().FileType; ft != "plain text" {
		t.Fatalf("file type = %q", ft)
	}
	if txt := plain.Status().Text; txt != "line 1, column 1" {
		t.Fatalf("status text = %q", txt)
	}
}

func TestCursorCallback(t *testing.T) {
	b, _ := loaded("ab\ncd")
	var got Status
	b.OnCursor(func(s Status) { got = s })
	b.SetCursor(4)
	if got.Line != 2 || got.Column != 2 {
		t.Fatalf("cursor callback = %+v", got)
	}
}

func TestFindNextPreviousWrap(t *testing.T) {
	b, _ := loaded("foo bar foo")

	m, ok, err := b.FindNext("foo", search.Options{})
	if err != nil || !ok || m.Start != 0 {
		t.Fatalf("first FindNext = %v %v %v", m, ok, err)
	}
	m, _, _ = b.FindNext("foo", search.Options{})
	if m.Start != 8 {
		t.Fatalf("second FindNext start = %d, want 8", m.Start)
	}
	m, _, _ = b.FindNext("foo", search.Options{})
	if m.Start != 0 {
		t.Fatalf("wrapped FindNext start = %d, want 0", m.Start)
	}
	if sel := b.SelectedText(); sel != "foo" {
		t.Fatalf("selection = %q", sel)
	}

	m, _, _ = b.FindPrevious("foo", search.Options{})
	if m.Start != 8 {
		t.Fatalf("wrapped FindPrevious start = %d, want 8", m.Start)
	}
}

func TestReplaceOnlyWhenSelectionMatches(t *testing.T) {
	b, changes := loaded("foo bar foo")

	replaced, err := b.Replace("foo", "baz", search.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if replaced {
		t.Fatal("replaced without a matching selection")
	}
	if b.SelectedText() != "foo" {
		t.Fatal("Replace should have moved to the first match")
	}

	replaced, err = b.Replace("foo", "baz", search.Options{})
	if err != nil || !replaced {
		t.Fatalf("Replace = %v %v", replaced, err)
	}
	if b.Text() != "baz bar foo" {
		t.Fatalf("text = %q", b.Text())
	}
	if s := b.Selection(); s.Anchor != 8 || s.Cursor != 11 {
		t.Fatalf("selection after replace = %+v, want next match", s)
	}
	if len(*changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(*changes))
	}
}

func TestReplaceAllSingleUndo(t *testing.T) {
	b, changes := loaded("print(1)\nprint(2)\n")
	n, err := b.ReplaceAll("print", "log", search.Options{WholeWord: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || b.Text() != "log(1)\nlog(2)\n" {
		t.Fatalf("ReplaceAll = %d, %q", n, b.Text())
	}
	if len(*changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(*changes))
	}
	b.Undo()
	if b.Text() != "print(1)\nprint(2)\n" {
		t.Fatalf("after undo = %q", b.Text())
	}

	n, _ = b.ReplaceAll("absent", "x", search.Options{})
	if n != 0 {
		t.Fatalf("n = %d for absent term", n)
	}
}

func TestRegexReplaceWithGroups(t *testing.T) {
	b, _ := loaded("a=1")
	b.FindNext(`(\w)=(\d)`, search.Options{Regex: true})
	if ok, err := b.Replace(`(\w)=(\d)`, "$2=$1", search.Options{Regex: true}); err != nil || !ok {
		t.Fatalf("Replace = %v %v", ok, err)
	}
	if b.Text() != "1=a" {
		t.Fatalf("text = %q", b.Text())
	}
}

func TestSetLanguage(t *testing.T) {
	b := New(0)
	doc := document.NewUntitled("untitled", 1)
	b.Load(*doc)
	if got := b.Status().FileType; got != "plain text" {
		t.Fatalf("file type = %q", got)
	}
	b.SetLanguage("someone-else", document.LangLua)
	if got := b.Status().FileType; got != "plain text" {
		t.Fatal("language of another document applied")
	}
	b.SetLanguage(doc.ID, document.LangLua)
	if got := b.Status().FileType; got != "lua" {
		t.Fatalf("file type = %q, want lua", got)
	}
}
