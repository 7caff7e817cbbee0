package bridge

import (
	"embed"
	"log"
	"path"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed static
var staticFS embed.FS

type asset struct {
	contentType string
	body        []byte
}

var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
}

// loadAssets reads the embedded client and minifies it once. A file that
// fails to minify is served as written.
func loadAssets() map[string]asset {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	entries, err := staticFS.ReadDir("static")
	if err != nil {
		log.Printf("BRIDGE: read embedded client: %v", err)
		return nil
	}
	out := make(map[string]asset, len(entries))
	for _, e := range entries {
		name := e.Name()
		mt, ok := mediaTypes[path.Ext(name)]
		if !ok {
			continue
		}
		raw, err := staticFS.ReadFile("static/" + name)
		if err != nil {
			log.Printf("BRIDGE: read %s: %v", name, err)
			continue
		}
		body, err := m.Bytes(mt, raw)
		if err != nil {
			log.Printf("BRIDGE: minify warning: %s: %v (using original)", name, err)
			body = raw
		}
		out["/"+name] = asset{contentType: mt + "; charset=utf-8", body: body}
	}
	if idx, ok := out["/index.html"]; ok {
		out["/"] = idx
	}
	return out
}
