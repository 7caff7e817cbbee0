package preview

import (
	"bytes"
	"fmt"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns markdown into an HTML fragment with highlighted code
// blocks.
type Renderer struct {
	md    goldmark.Markdown
	style string
}

// NewRenderer fails for a chroma style name it does not know.
func NewRenderer(style string) (*Renderer, error) {
	if _, ok := styles.Registry[style]; !ok {
		return nil, fmt.Errorf("unknown highlight style %q", style)
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			highlighting.NewHighlighting(highlighting.WithStyle(style)),
		),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Renderer{md: md, style: style}, nil
}

func (r *Renderer) Style() string { return r.style }

func (r *Renderer) Render(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
