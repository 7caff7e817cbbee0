// app.go
package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/petervdpas/elypad/internal/bridge"
	"github.com/petervdpas/elypad/internal/capability"
	"github.com/petervdpas/elypad/internal/config"
	"github.com/petervdpas/elypad/internal/fsaccess"
	"github.com/petervdpas/elypad/internal/notify"
	"github.com/petervdpas/elypad/internal/shell"
	"github.com/petervdpas/elypad/internal/watch"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App is bound to the wails window. It owns the shell and the local bridge
// the frontend talks to, and provides native dialogs to the shell.
type App struct {
	ctx context.Context

	cfgPath string
	logs    *notify.LogBuffer

	mu        sync.RWMutex
	cfg       config.Config
	shell     *shell.Shell
	bridge    *bridge.Server
	bridgeURL string
	// workspace to open once the window is up
	initialDir string
}

var _ capability.Dialogs = (*App)(nil)

func NewApp(cfgPath string, cfg config.Config, logs *notify.LogBuffer, initialDir string) *App {
	return &App{cfgPath: cfgPath, cfg: cfg, logs: logs, initialDir: initialDir}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	sh, err := shell.New(a.cfg, shell.Deps{
		Files: fsaccess.New(),
		Watcher: watch.New(watch.Options{
			IgnoreDotfiles: a.cfg.Watch.IgnoreDotfiles,
			Debounce:       time.Duration(a.cfg.Watch.DebounceMS) * time.Millisecond,
		}),
		Dialogs: a,
	})
	if err != nil {
		log.Printf("APP: shell: %v", err)
		return
	}
	sh.Start()

	srv := bridge.New(sh, a.logs, nil)
	url, err := srv.Start(a.cfg.Bridge.HTTPAddr)
	if err != nil {
		log.Printf("APP: bridge start: %v", err)
	}

	a.mu.Lock()
	a.shell = sh
	a.bridge = srv
	a.bridgeURL = url
	a.mu.Unlock()

	go a.forwardEvents(sh)

	runtime.OnFileDrop(ctx, func(x, y int, paths []string) {
		for _, p := range paths {
			if err := sh.OpenDropped(ctx, p); err != nil {
				log.Printf("APP: drop %s: %v", p, err)
			}
		}
	})

	if a.initialDir != "" {
		go func() {
			if err := sh.LoadWorkspace(ctx, a.initialDir); err != nil {
				log.Printf("APP: open %s: %v", a.initialDir, err)
			}
		}()
	}
}

// forwardEvents mirrors shell events as wails events and keeps the window
// title in sync with the active document.
func (a *App) forwardEvents(sh *shell.Shell) {
	events, cancel := sh.Subscribe()
	defer cancel()
	for ev := range events {
		runtime.EventsEmit(a.ctx, "elypad:"+ev.Type, ev.Data)
		if ev.Type == shell.EventTabs {
			st, err := sh.State(a.ctx)
			if err == nil {
				runtime.WindowSetTitle(a.ctx, st.Title)
			}
		}
	}
}

// beforeClose asks before quitting with unsaved documents.
func (a *App) beforeClose(ctx context.Context) (prevent bool) {
	sh := a.currentShell()
	if sh == nil {
		return false
	}
	n, err := sh.DirtyCount(ctx)
	if err != nil || n == 0 {
		return false
	}
	res, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         "Unsaved changes",
		Message:       fmt.Sprintf("%d document(s) have unsaved changes. Quit anyway?", n),
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
		CancelButton:  "No",
	})
	if err != nil {
		log.Printf("APP: quit dialog: %v", err)
		return true
	}
	return !isYes(res)
}

func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	sh, srv := a.shell, a.bridge
	a.shell, a.bridge = nil, nil
	a.mu.Unlock()

	if srv != nil {
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := srv.Close(sctx); err != nil {
			log.Printf("SHUTDOWN: bridge: %v", err)
		}
		cancel()
	}
	if sh != nil {
		sh.Stop()
	}
	log.Println("SHUTDOWN: Complete")
}

func (a *App) currentShell() *shell.Shell {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shell
}

// -------------------------
// Bound methods for the wails frontend
// -------------------------

// GetBridgeURL is where the frontend loads the editor client from.
func (a *App) GetBridgeURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bridgeURL
}

func (a *App) GetTheme() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Editor.Theme
}

// SetTheme switches between "dark" and "light" and persists the choice.
func (a *App) SetTheme(theme string) error {
	a.mu.Lock()
	next := a.cfg
	next.Editor.Theme = strings.ToLower(strings.TrimSpace(theme))
	if err := next.Validate(); err != nil {
		a.mu.Unlock()
		return err
	}
	a.cfg = next
	a.mu.Unlock()
	return config.Save(a.cfgPath, next)
}

// -------------------------
// capability.Dialogs
// -------------------------

func (a *App) PickOpenFile(ctx context.Context) (string, error) {
	return runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Open file",
	})
}

func (a *App) PickOpenFolder(ctx context.Context) (string, error) {
	return runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Open folder",
	})
}

func (a *App) PickSaveFile(ctx context.Context) (string, error) {
	return runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title: "Save file",
	})
}

func (a *App) ConfirmSaveBeforeClose(ctx context.Context, name string) (bool, error) {
	res, err := runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         "Unsaved changes",
		Message:       fmt.Sprintf("save changes to %s?", name),
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "Yes",
	})
	if err != nil {
		return false, err
	}
	return isYes(res), nil
}

func isYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}
