package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaults verifies the out-of-the-box desktop settings.
func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Desktop.ViewportWidth != 1280 || cfg.Desktop.ViewportHeight != 800 {
		t.Errorf("Expected 1280x800 viewport, got %vx%v", cfg.Desktop.ViewportWidth, cfg.Desktop.ViewportHeight)
	}
	if cfg.Desktop.MinWindowWidth != 320 || cfg.Desktop.MinWindowHeight != 200 {
		t.Errorf("Expected 320x200 minimum, got %vx%v", cfg.Desktop.MinWindowWidth, cfg.Desktop.MinWindowHeight)
	}
	if cfg.Desktop.TaskbarHeight != 50 {
		t.Errorf("Expected taskbar 50, got %v", cfg.Desktop.TaskbarHeight)
	}
	if cfg.Storage.Key != "nexusShellState" {
		t.Errorf("Expected key nexusShellState, got %s", cfg.Storage.Key)
	}
	if cfg.Desktop.StartDirectory != "/home" {
		t.Errorf("Expected /home, got %s", cfg.Desktop.StartDirectory)
	}
}

// TestLoadFlags verifies flags override defaults and positional args are returned.
func TestLoadFlags(t *testing.T) {
	cfg, rest, err := LoadWithArgs([]string{
		"--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--port", "9090", "--storage", "sqlite", "--storage-path", "x.db",
		"--autosave", "0", "--lua=false", "--mcp", "-vvv", "ls", "/home",
	})
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.Path != "x.db" {
		t.Errorf("Expected sqlite x.db, got %s %s", cfg.Storage.Type, cfg.Storage.Path)
	}
	if cfg.Desktop.AutosaveInterval != 0 {
		t.Errorf("Expected autosave disabled, got %v", cfg.Desktop.AutosaveInterval)
	}
	if cfg.Lua.Enabled {
		t.Error("Expected Lua disabled")
	}
	if !cfg.MCP.Enabled {
		t.Error("Expected MCP enabled")
	}
	if cfg.Verbosity() != 3 {
		t.Errorf("Expected verbosity 3, got %d", cfg.Verbosity())
	}
	if len(rest) != 2 || rest[0] != "ls" || rest[1] != "/home" {
		t.Errorf("Expected [ls /home], got %v", rest)
	}
}

// TestLoadTOMLAndEnv verifies file < env < flag layering.
func TestLoadTOMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
[server]
host = "0.0.0.0"
port = 7000

[storage]
type = "memory"
key = "desk"

[desktop]
frame_interval = "8ms"
autosave_interval = "1m"
min_window_width = 400.0
`), 0644)
	if err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("NEXUS_PORT", "7100")
	t.Setenv("NEXUS_VERBOSITY", "2")

	cfg, err := Load([]string{"--config", path, "--host", "localhost"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected flag host, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Expected env port 7100, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "memory" || cfg.Storage.Key != "desk" {
		t.Errorf("Expected memory/desk from file, got %s/%s", cfg.Storage.Type, cfg.Storage.Key)
	}
	if cfg.Desktop.FrameInterval.Duration() != 8*time.Millisecond {
		t.Errorf("Expected 8ms frames, got %v", cfg.Desktop.FrameInterval)
	}
	if cfg.Desktop.AutosaveInterval.Duration() != time.Minute {
		t.Errorf("Expected 1m autosave, got %v", cfg.Desktop.AutosaveInterval)
	}
	if cfg.Desktop.MinWindowWidth != 400 || cfg.Desktop.MinWindowHeight != 200 {
		t.Errorf("Expected 400x200 minimum, got %vx%v", cfg.Desktop.MinWindowWidth, cfg.Desktop.MinWindowHeight)
	}
	if cfg.Verbosity() != 2 {
		t.Errorf("Expected env verbosity 2, got %d", cfg.Verbosity())
	}
}

// TestLoadBadTOML verifies a malformed config file is an error.
func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[desktop]\nframe_interval = \"soon\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load([]string{"--config", path}); err == nil {
		t.Error("Expected error for bad duration")
	}
}

// TestLogVerbosity verifies messages above the verbosity are dropped.
func TestLogVerbosity(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	cfg := DefaultConfig()
	cfg.Logging.Verbosity = 1
	cfg.Log(0, "lifecycle")
	cfg.Log(1, "connection")
	cfg.Log(2, "message")

	out := buf.String()
	if !strings.Contains(out, "lifecycle") || !strings.Contains(out, "[v1] connection") {
		t.Errorf("Expected levels 0 and 1, got %q", out)
	}
	if strings.Contains(out, "message") {
		t.Errorf("Expected level 2 dropped, got %q", out)
	}

	buf.Reset()
	var nilCfg *Config
	nilCfg.Log(0, "still here")
	nilCfg.Log(1, "hidden")
	if !strings.Contains(buf.String(), "still here") || strings.Contains(buf.String(), "hidden") {
		t.Errorf("Expected nil config to log level 0 only, got %q", buf.String())
	}
}
