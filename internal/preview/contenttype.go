package preview

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// ContentType returns a browser-safe Content-Type for path. Extensions the
// webview is strict about are fixed; the rest go through the mime table
// and finally content sniffing.
func ContentType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".svg":
		return "image/svg+xml"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	case ".lua":
		return "text/x-lua; charset=utf-8"
	case ".webp":
		return "image/webp"
	}

	if ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return mt
		}
	}
	return http.DetectContentType(data)
}

type Kind string

const (
	Image    Kind = "image"
	Audio    Kind = "audio"
	Video    Kind = "video"
	PDF      Kind = "pdf"
	Markdown Kind = "markdown"
	Text     Kind = "text"
	Binary   Kind = "binary"
)

// KindOf classifies a Content-Type for the preview pane.
func KindOf(contentType string) Kind {
	mt, _, _ := strings.Cut(contentType, ";")
	mt = strings.TrimSpace(mt)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return Image
	case strings.HasPrefix(mt, "audio/"):
		return Audio
	case strings.HasPrefix(mt, "video/"):
		return Video
	case mt == "application/pdf":
		return PDF
	case mt == "text/markdown":
		return Markdown
	case strings.HasPrefix(mt, "text/"):
		return Text
	}
	return Binary
}
