package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/petervdpas/elypad/internal/document"
	"github.com/petervdpas/elypad/internal/util"
)

// DefaultFile is the config file name looked up next to the working directory.
const DefaultFile = "elypad.json"

type Config struct {
	Editor  Editor  `json:"editor"`
	Files   Files   `json:"files"`
	Watch   Watch   `json:"watch"`
	Search  Search  `json:"search"`
	Bridge  Bridge  `json:"bridge"`
	Preview Preview `json:"preview"`
}

type Editor struct {
	TabSize        int    `json:"tab_size"`
	FontSize       int    `json:"font_size"`
	Theme          string `json:"theme"`
	UntitledPrefix string `json:"untitled_prefix"`
}

type Files struct {
	// Extensions opened in the media preview instead of as a text document.
	MediaExtensions []string `json:"media_extensions"`
	// Extensions that get Lua syntax diagnostics.
	LuaExtensions []string `json:"lua_extensions"`
}

type Watch struct {
	IgnoreDotfiles bool `json:"ignore_dotfiles"`
	// Burst window for "changed" events on one path. 0 disables coalescing.
	DebounceMS int `json:"debounce_ms"`
}

type Search struct {
	RegexTimeoutMS int `json:"regex_timeout_ms"`
}

type Bridge struct {
	// Listen address for the local HTTP bridge. Port 0 picks a free port.
	HTTPAddr  string `json:"http_addr"`
	LogBuffer int    `json:"log_buffer"`
}

type Preview struct {
	// Chroma style used for fenced code blocks in markdown previews.
	MarkdownStyle string `json:"markdown_style"`
}

func Default() Config {
	return Config{
		Editor: Editor{
			TabSize:        2,
			FontSize:       13,
			Theme:          "dark",
			UntitledPrefix: "untitled",
		},
		Files: Files{
			MediaExtensions: append([]string(nil), document.DefaultMediaExtensions...),
			LuaExtensions:   []string{".lua"},
		},
		Watch: Watch{
			IgnoreDotfiles: true,
			DebounceMS:     50,
		},
		Search: Search{
			RegexTimeoutMS: 1000,
		},
		Bridge: Bridge{
			HTTPAddr:  "127.0.0.1:0",
			LogBuffer: 800,
		},
		Preview: Preview{
			MarkdownStyle: "monokai",
		},
	}
}

func (c *Config) Validate() error {
	// Editor
	if c.Editor.TabSize < 1 || c.Editor.TabSize > 16 {
		return errors.New("editor.tab_size must be 1..16")
	}
	if c.Editor.FontSize < 6 || c.Editor.FontSize > 72 {
		return errors.New("editor.font_size must be 6..72")
	}
	switch c.Editor.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("editor.theme must be dark or light, got %q", c.Editor.Theme)
	}
	p := strings.TrimSpace(c.Editor.UntitledPrefix)
	if p == "" {
		return errors.New("editor.untitled_prefix is required")
	}
	if strings.ContainsAny(p, `/\`) {
		return errors.New("editor.untitled_prefix must not contain slashes")
	}

	// Files
	for _, e := range c.Files.MediaExtensions {
		if strings.TrimSpace(e) == "" {
			return errors.New("files.media_extensions must not contain empty entries")
		}
	}
	if len(c.Files.LuaExtensions) == 0 {
		return errors.New("files.lua_extensions must list at least one extension")
	}

	// Watch
	if c.Watch.DebounceMS < 0 || c.Watch.DebounceMS > 5000 {
		return errors.New("watch.debounce_ms must be 0..5000")
	}

	// Search
	if c.Search.RegexTimeoutMS < 1 {
		return errors.New("search.regex_timeout_ms must be > 0")
	}

	// Bridge
	if a := strings.TrimSpace(c.Bridge.HTTPAddr); a != "" {
		if _, _, err := net.SplitHostPort(a); err != nil {
			return fmt.Errorf("bridge.http_addr: %w", err)
		}
	}
	if c.Bridge.LogBuffer <= 0 {
		return errors.New("bridge.log_buffer must be > 0")
	}

	// Preview
	if strings.TrimSpace(c.Preview.MarkdownStyle) == "" {
		return errors.New("preview.markdown_style is required")
	}

	return nil
}

// MediaSet returns the configured media extensions as a lookup set.
func (c *Config) MediaSet() document.MediaSet {
	return document.NewMediaSet(c.Files.MediaExtensions)
}

// IsLua reports whether path carries one of the configured Lua extensions.
func (c *Config) IsLua(path string) bool {
	return document.NewMediaSet(c.Files.LuaExtensions).IsMedia(path)
}

func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadPartial reads a config file without validation.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
