// Package preview backs the preview pane: media files opened from the tree
// and rendered markdown for the active document.
package preview

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/document"
)

var ErrNothingShown = errors.New("nothing in the preview pane")

// Item is what the pane currently shows. Data holds the raw bytes of a
// media file; HTML holds rendered markdown.
type Item struct {
	Path        string    `json:"path,omitempty"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Kind        Kind      `json:"kind"`
	Size        int64     `json:"size"`
	HTML        string    `json:"html,omitempty"`
	Data        []byte    `json:"-"`
	ShownAt     time.Time `json:"shown_at"`
}

// Pane implements capability.Previewer. It is safe for concurrent use:
// the tab manager calls Preview off the event loop.
type Pane struct {
	files    capability.Files
	renderer *Renderer

	mu       sync.Mutex
	current  *Item
	onChange func(Item)
}

var _ capability.Previewer = (*Pane)(nil)

func NewPane(files capability.Files, r *Renderer) *Pane {
	return &Pane{files: files, renderer: r}
}

// OnChange registers a callback for every newly shown item.
func (p *Pane) OnChange(fn func(Item)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Preview reads path and shows it. Markdown files are rendered.
func (p *Pane) Preview(ctx context.Context, path string) error {
	if p.files == nil {
		return capability.ErrUnavailable
	}
	st, err := p.files.StatPath(ctx, path)
	if err != nil {
		return capability.NewIOError("stat", path, err)
	}
	raw, err := p.files.ReadFile(ctx, path)
	if err != nil {
		return capability.NewIOError("read", path, err)
	}
	data := []byte(raw)
	it := Item{
		Path:        path,
		Name:        document.BaseName(path),
		ContentType: ContentType(path, data),
		Size:        st.Size,
	}
	it.Kind = KindOf(it.ContentType)
	if it.Kind == Markdown && p.renderer != nil {
		if it.HTML, err = p.renderer.Render(data); err != nil {
			return err
		}
	} else {
		it.Data = data
	}
	log.Printf("PREVIEW: %s (%s, %d bytes)", it.Name, it.ContentType, it.Size)
	p.show(it)
	return nil
}

// ShowMarkdown renders unsaved markdown text, typically the active document.
func (p *Pane) ShowMarkdown(name, text string) error {
	if p.renderer == nil {
		return capability.ErrUnavailable
	}
	html, err := p.renderer.Render([]byte(text))
	if err != nil {
		return err
	}
	p.show(Item{
		Name:        name,
		ContentType: "text/html; charset=utf-8",
		Kind:        Markdown,
		Size:        int64(len(text)),
		HTML:        html,
	})
	return nil
}

func (p *Pane) show(it Item) {
	it.ShownAt = time.Now()
	p.mu.Lock()
	p.current = &it
	cb := p.onChange
	p.mu.Unlock()
	if cb != nil {
		cb(it)
	}
}

// Current returns the shown item.
func (p *Pane) Current() (Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Item{}, ErrNothingShown
	}
	return *p.current, nil
}

// Clear empties the pane.
func (p *Pane) Clear() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}
