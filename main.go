// main.go
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/petervdpas/elypad/internal/bridge"
	"github.com/petervdpas/elypad/internal/config"
	"github.com/petervdpas/elypad/internal/fsaccess"
	"github.com/petervdpas/elypad/internal/luacheck"
	"github.com/petervdpas/elypad/internal/notify"
	"github.com/petervdpas/elypad/internal/shell"
	"github.com/petervdpas/elypad/internal/util"
	"github.com/petervdpas/elypad/internal/watch"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	showHelp   = flag.Bool("h", false, "Show help")
	version    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "", "Config file (default: <user config dir>/elypad/elypad.json)")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("elypad v%s\n", appVersion)
		return
	}

	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()

	if len(args) == 0 {
		runDesktopApp("")
		return
	}

	command := args[0]

	switch command {
	case "open":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: open command requires a directory path")
			fmt.Fprintln(os.Stderr, "Usage: elypad open <directory>")
			os.Exit(1)
		}
		runDesktopApp(mustDir(args[1]))

	case "serve":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: serve command requires a directory path")
			fmt.Fprintln(os.Stderr, "Usage: elypad serve <directory>")
			os.Exit(1)
		}
		runServe(mustDir(args[1]))

	case "check":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: check command requires at least one file")
			fmt.Fprintln(os.Stderr, "Usage: elypad check <file.lua>...")
			os.Exit(1)
		}
		os.Exit(runCheck(args[1:]))

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

// setupLogs tees the standard logger into a ring buffer the bridge serves.
func setupLogs(size int) *notify.LogBuffer {
	logs := notify.NewLogBuffer(size)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))
	return logs
}

func loadConfig() (string, config.Config) {
	path := *configPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		path = filepath.Join(dir, "elypad", config.DefaultFile)
	} else {
		wd, _ := os.Getwd()
		path = util.ResolvePath(wd, path)
	}
	cfg, created, err := config.Ensure(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if created {
		log.Printf("CONFIG: wrote defaults to %s", path)
	}
	return path, cfg
}

func mustDir(arg string) string {
	abs, err := filepath.Abs(arg)
	if err != nil {
		log.Fatalf("Invalid directory: %v", err)
	}
	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		log.Fatalf("Directory does not exist: %s", abs)
	}
	return abs
}

func runDesktopApp(dir string) {
	cfgPath, cfg := loadConfig()
	logs := setupLogs(cfg.Bridge.LogBuffer)
	app := NewApp(cfgPath, cfg, logs, dir)

	err := wails.Run(&options.App{
		Title:  shell.AppName,
		Width:  1200,
		Height: 800,

		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop: true,
		},

		OnStartup:     app.startup,
		OnBeforeClose: app.beforeClose,
		OnShutdown:    app.shutdown,
		Bind:          []any{app},
	})
	if err != nil {
		log.Fatal(err)
	}
}

// runServe runs the editor without a window: the workspace is served over
// the bridge until interrupted.
func runServe(dir string) {
	cfgPath, cfg := loadConfig()
	logs := setupLogs(cfg.Bridge.LogBuffer)

	dialogs := bridge.NewDialogs(false)
	sh, err := shell.New(cfg, shell.Deps{
		Files: fsaccess.New(),
		Watcher: watch.New(watch.Options{
			IgnoreDotfiles: cfg.Watch.IgnoreDotfiles,
			Debounce:       time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		}),
		Dialogs: dialogs,
	})
	if err != nil {
		log.Fatalf("Failed to start editor: %v", err)
	}
	sh.Start()
	defer sh.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down gracefully...")
		cancel()
	}()

	if err := sh.LoadWorkspace(ctx, dir); err != nil {
		log.Fatalf("Failed to open %s: %v", dir, err)
	}

	srv := bridge.New(sh, logs, dialogs)
	url, err := srv.Start(cfg.Bridge.HTTPAddr)
	if err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}

	fmt.Println()
	fmt.Printf("Workspace:   %s\n", dir)
	fmt.Printf("Config File: %s\n", cfgPath)
	fmt.Printf("Editor:      %s\n", url)
	fmt.Println("(Press Ctrl+C to stop)")
	fmt.Println()

	<-ctx.Done()

	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	if err := srv.Close(sctx); err != nil {
		log.Printf("BRIDGE: shutdown: %v", err)
	}
}

// runCheck prints Lua diagnostics and returns the process exit code.
func runCheck(paths []string) int {
	sources := make(map[string]string, len(paths))
	order := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			return 2
		}
		if _, dup := sources[p]; !dup {
			order = append(order, p)
		}
		sources[p] = string(b)
	}
	sort.Strings(order)

	failed, report := luacheck.CheckAll(sources, order)
	for _, line := range report {
		fmt.Println(line)
	}
	if failed > 0 {
		return 1
	}
	fmt.Printf("%d file(s) ok\n", len(order))
	return 0
}

func showUsage() {
	fmt.Println("elypad - code editor")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  elypad                        Run desktop application (default)")
	fmt.Println("  elypad open <directory>       Run desktop application on a folder")
	fmt.Println("  elypad serve <directory>      Serve the editor over local HTTP, no window")
	fmt.Println("  elypad check <file.lua>...    Report Lua syntax errors")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h             Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println("  -config <file> Use a specific config file")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Edit a project in a browser tab")
	fmt.Println("  elypad serve ./myproject")
	fmt.Println()
	fmt.Println("  # Check scripts before committing")
	fmt.Println("  elypad check scripts/*.lua")
}
