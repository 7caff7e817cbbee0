package preview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/capability/captest"
)

func TestContentType(t *testing.T) {
	cases := []struct {
		path string
		data string
		want Kind
	}{
		{"/a/logo.png", "", Image},
		{"/a/icon.svg", "<svg/>", Image},
		{"/a/manual.pdf", "", PDF},
		{"/a/README.md", "# hi", Markdown},
		{"/a/notes", "just text", Text},
		{"/a/blob", "\x00\x01\x02\x03", Binary},
	}
	for _, c := range cases {
		ct := ContentType(c.path, []byte(c.data))
		if got := KindOf(ct); got != c.want {
			t.Errorf("%s: kind = %s (%s), want %s", c.path, got, ct, c.want)
		}
	}
}

func TestRendererUnknownStyle(t *testing.T) {
	if _, err := NewRenderer("no-such-style"); err == nil {
		t.Fatal("expected error for unknown style")
	}
}

func TestRenderMarkdown(t *testing.T) {
	r, err := NewRenderer("monokai")
	if err != nil {
		t.Fatal(err)
	}
	src := "# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n```lua\nlocal x = 1\n```\n"
	html, err := r.Render([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h1", "Title", "<table>", "<pre"} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q:\n%s", want, html)
		}
	}
}

func TestPanePreviewMedia(t *testing.T) {
	files := captest.NewFiles()
	files.Put("/w/pic.png", "\x89PNG\r\n\x1a\n")
	r, _ := NewRenderer("monokai")
	p := NewPane(files, r)

	var seen []Item
	p.OnChange(func(it Item) { seen = append(seen, it) })

	if _, err := p.Current(); !errors.Is(err, ErrNothingShown) {
		t.Fatalf("empty pane err = %v", err)
	}
	if err := p.Preview(context.Background(), "/w/pic.png"); err != nil {
		t.Fatal(err)
	}
	it, err := p.Current()
	if err != nil {
		t.Fatal(err)
	}
	if it.Kind != Image || it.Name != "pic.png" || len(it.Data) != 8 || it.HTML != "" {
		t.Fatalf("item = %+v", it)
	}
	if len(seen) != 1 {
		t.Fatalf("change callbacks = %d", len(seen))
	}

	p.Clear()
	if _, err := p.Current(); !errors.Is(err, ErrNothingShown) {
		t.Fatal("clear did not empty the pane")
	}
}

func TestPanePreviewMarkdownFile(t *testing.T) {
	files := captest.NewFiles()
	files.Put("/w/doc.md", "*hello*")
	r, _ := NewRenderer("monokai")
	p := NewPane(files, r)

	if err := p.Preview(context.Background(), "/w/doc.md"); err != nil {
		t.Fatal(err)
	}
	it, _ := p.Current()
	if it.Kind != Markdown || !strings.Contains(it.HTML, "<em>hello</em>") || it.Data != nil {
		t.Fatalf("item = %+v", it)
	}
}

func TestPanePreviewReadFailure(t *testing.T) {
	files := captest.NewFiles()
	files.Put("/w/pic.png", "x")
	files.Fail("read", "/w/pic.png", errors.New("permission denied"))
	p := NewPane(files, nil)

	err := p.Preview(context.Background(), "/w/pic.png")
	var ioe *capability.IOError
	if !errors.As(err, &ioe) || ioe.Op != "read" {
		t.Fatalf("err = %v", err)
	}
	if _, err := p.Current(); !errors.Is(err, ErrNothingShown) {
		t.Fatal("failed preview replaced the pane")
	}
}

func TestShowMarkdown(t *testing.T) {
	r, _ := NewRenderer("monokai")
	p := NewPane(nil, r)
	if err := p.ShowMarkdown("untitled-1", "- [x] done"); err != nil {
		t.Fatal(err)
	}
	it, _ := p.Current()
	if it.Path != "" || !strings.Contains(it.HTML, "checkbox") {
		t.Fatalf("item = %+v", it)
	}

	if err := NewPane(nil, nil).ShowMarkdown("x", "y"); !errors.Is(err, capability.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
