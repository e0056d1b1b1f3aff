package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/mcp"
	"github.com/zot/nexus-shell/internal/server"
	"github.com/zot/nexus-shell/internal/shell"
	"github.com/zot/nexus-shell/internal/state"
	"github.com/zot/nexus-shell/internal/storage"
	"github.com/zot/nexus-shell/internal/vfs"
)

func loadConfig(args []string) (*config.Config, []string, bool) {
	cfg, rest, err := config.LoadWithArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load config: %v\n", err)
		return nil, nil, false
	}
	return cfg, rest, true
}

func runServe(args []string) int {
	cfg, _, ok := loadConfig(args)
	if !ok {
		return 1
	}

	sh, err := shell.Open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sh.Close()

	if err := sh.RunStartup(); err != nil {
		cfg.Log(0, "Startup script failed: %v", err)
	}
	if cfg.Lua.Watch {
		if err := sh.WatchStartup(); err != nil {
			cfg.Log(0, "Cannot watch startup script: %v", err)
		}
	}

	srv := server.New(sh)
	url, err := srv.StartHTTP(cfg.Server.Port)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg.Log(0, "Desktop bridge at %s", url)

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MCP.Enabled {
		go func() {
			if err := mcp.NewServer(sh, Version).Serve(ctx, os.Stdin, os.Stdout); err != nil {
				cfg.Log(0, "MCP server error: %v", err)
			}
			stop()
		}()
	}

	<-ctx.Done()
	cfg.Log(0, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		cfg.Log(0, "Shutdown error: %v", err)
	}
	return 0
}

func runMCP(args []string) int {
	cfg, _, ok := loadConfig(args)
	if !ok {
		return 1
	}

	sh, err := shell.Open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sh.Close()

	if err := sh.RunStartup(); err != nil {
		cfg.Log(0, "Startup script failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := mcp.NewServer(sh, Version).Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// openSaved loads the persisted desktop without starting a shell, so reading
// it never writes back.
func openSaved(cfg *config.Config) (*state.Store, *vfs.FileSystem, func(), error) {
	backend, err := storage.Open(storage.Options{
		Type: cfg.Storage.Type,
		Path: cfg.Storage.Path,
		URL:  cfg.Storage.URL,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := state.NewStore(cfg)
	store.SetStorage(backend)
	store.LoadFromStorage()
	return store, vfs.New(store), func() { backend.Close() }, nil
}

func runLs(args []string) int {
	cfg, rest, ok := loadConfig(args)
	if !ok {
		return 1
	}
	_, fs, closeFn, err := openSaved(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	path := ""
	if len(rest) > 0 {
		path = rest[0]
	}
	listing, err := fs.List(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, item := range listing.Items {
		if item.Type == state.TypeDirectory {
			fmt.Fprintf(stdout, "%s/\n", item.Name)
		} else {
			fmt.Fprintln(stdout, item.Name)
		}
	}
	return 0
}

func runCat(args []string) int {
	cfg, rest, ok := loadConfig(args)
	if !ok {
		return 1
	}
	if len(rest) < 1 {
		fmt.Fprintln(stderr, "Usage: nexus-shell cat [options] PATH")
		return 1
	}
	_, fs, closeFn, err := openSaved(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	status := 0
	for _, path := range rest {
		content, err := fs.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			status = 1
			continue
		}
		fmt.Fprint(stdout, content)
	}
	return status
}

func runTree(args []string) int {
	cfg, rest, ok := loadConfig(args)
	if !ok {
		return 1
	}
	_, fs, closeFn, err := openSaved(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	root := ""
	if len(rest) > 0 {
		root = rest[0]
	}
	base := fs.NormalizePath(root, "")
	depth := strings.Count(base, "/")
	if base == "/" {
		depth = 0
	}
	err = fs.Walk(base, func(path string, n *state.Node) error {
		if path == base {
			fmt.Fprintln(stdout, path)
			return nil
		}
		level := strings.Count(path, "/") - depth
		name := n.Name
		if n.IsDir() {
			name += "/"
		}
		fmt.Fprintf(stdout, "%s%s\n", strings.Repeat("  ", level), name)
		return nil
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runScript(args []string) int {
	cfg, rest, ok := loadConfig(args)
	if !ok {
		return 1
	}
	if len(rest) < 1 {
		fmt.Fprintln(stderr, "Usage: nexus-shell run [options] SCRIPT")
		return 1
	}
	cfg.Desktop.AutosaveInterval = 0

	sh, err := shell.Open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sh.Close()
	sh.Lua.SetOutput(stdout)

	_, err = shell.Call(sh, func() (struct{}, error) {
		return struct{}{}, sh.Lua.DoFile(rest[0])
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runReset(args []string) int {
	cfg, _, ok := loadConfig(args)
	if !ok {
		return 1
	}
	store, _, closeFn, err := openSaved(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	store.Reset()
	fmt.Fprintln(stdout, "Desktop reset")
	return 0
}
