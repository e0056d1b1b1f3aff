package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/shell"
	"github.com/zot/nexus-shell/internal/storage"
	"github.com/zot/nexus-shell/internal/window"
)

func newTestServer(t *testing.T) (*Server, *shell.Shell) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.Desktop.AutosaveInterval = 0
	cfg.Lua.Enabled = false
	sh := shell.New(cfg, storage.NewMemoryStorage(), shell.Options{Frames: window.NewManualFrames()})
	t.Cleanup(func() { sh.Close() })
	return NewServer(sh, "test"), sh
}

func text(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	tc, ok := res.Content[0].(mcpgo.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return res
}

// TestToolsRegistered verifies every tool is listed by the MCP server.
func TestToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	for _, name := range []string{"fs_list", "fs_read", "fs_write", "fs_mkdir", "fs_remove", "fs_rename", "fs_cd", "window_list", "window_open", "window_close", "window_focus"} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("Expected tool %s in %s", name, data)
		}
	}
	if len(s.Tools()) != 11 {
		t.Errorf("Expected 11 tools, got %d", len(s.Tools()))
	}
}

// TestFileTools verifies the filesystem tools against the default tree.
func TestFileTools(t *testing.T) {
	s, sh := newTestServer(t)

	res := call(t, s, "fs_list", map[string]any{"path": "/home"})
	if res.IsError || !strings.Contains(text(t, res), "documents") {
		t.Errorf("Expected documents in listing, got %s", text(t, res))
	}

	res = call(t, s, "fs_write", map[string]any{"path": "/home/todo.txt", "content": "ship it"})
	if res.IsError {
		t.Fatalf("fs_write failed: %s", text(t, res))
	}
	res = call(t, s, "fs_read", map[string]any{"path": "/home/todo.txt"})
	if got := text(t, res); got != "ship it" {
		t.Errorf("Expected bare content, got %q", got)
	}

	res = call(t, s, "fs_rename", map[string]any{"path": "/home/todo.txt", "newName": "done.txt"})
	if res.IsError {
		t.Errorf("fs_rename failed: %s", text(t, res))
	}
	res = call(t, s, "fs_mkdir", map[string]any{"path": "/home/work"})
	if res.IsError {
		t.Errorf("fs_mkdir failed: %s", text(t, res))
	}
	res = call(t, s, "fs_cd", map[string]any{"path": "work"})
	if res.IsError {
		t.Errorf("fs_cd failed: %s", text(t, res))
	}
	cwd, _ := shell.Call(sh, func() (string, error) { return sh.FS.Pwd(), nil })
	if cwd != "/home/work" {
		t.Errorf("Expected cwd /home/work, got %s", cwd)
	}

	res = call(t, s, "fs_remove", map[string]any{"path": "/home/done.txt"})
	if res.IsError {
		t.Errorf("fs_remove failed: %s", text(t, res))
	}
	exists, _ := shell.Call(sh, func() (bool, error) { return sh.FS.Exists("/home/done.txt"), nil })
	if exists {
		t.Error("Expected done.txt removed")
	}
}

// TestFileToolErrors verifies failures come back as tool errors carrying the code.
func TestFileToolErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"fs_read", map[string]any{"path": "/nope"}, "not-found"},
		{"fs_read", map[string]any{}, "path"},
		{"fs_remove", map[string]any{"path": "/"}, "root-protected"},
		{"fs_mkdir", map[string]any{"path": "/home"}, "already-exists"},
		{"fs_rename", map[string]any{"path": "/home", "newName": "a/b"}, "invalid-name"},
	}
	for _, tt := range tests {
		res := call(t, s, tt.tool, tt.args)
		if !res.IsError {
			t.Errorf("%s %v: expected error", tt.tool, tt.args)
			continue
		}
		if got := text(t, res); !strings.Contains(got, tt.want) {
			t.Errorf("%s %v: expected %q in %q", tt.tool, tt.args, tt.want, got)
		}
	}
}

// TestWindowTools verifies opening, listing, focusing and closing windows.
func TestWindowTools(t *testing.T) {
	s, sh := newTestServer(t)

	res := call(t, s, "window_open", map[string]any{"appType": "terminal"})
	if res.IsError {
		t.Fatalf("window_open failed: %s", text(t, res))
	}
	call(t, s, "window_open", map[string]any{"appType": "settings"})

	res = call(t, s, "window_list", nil)
	var windows []struct {
		ID        int  `json:"id"`
		IsFocused bool `json:"isFocused"`
	}
	if err := json.Unmarshal([]byte(text(t, res)), &windows); err != nil {
		t.Fatalf("Failed to decode windows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(windows))
	}

	call(t, s, "window_focus", map[string]any{"id": float64(1)})
	active, _ := shell.Call(sh, func() (int, error) { return sh.Store.ActiveWindowID(), nil })
	if active != 1 {
		t.Errorf("Expected window 1 active, got %d", active)
	}

	call(t, s, "window_close", map[string]any{"id": float64(1)})
	count, _ := shell.Call(sh, func() (int, error) { return len(sh.Store.Windows()), nil })
	if count != 1 {
		t.Errorf("Expected 1 window left, got %d", count)
	}

	res = call(t, s, "window_open", map[string]any{"appType": "paint"})
	if !res.IsError || !strings.Contains(text(t, res), "unknown-app") {
		t.Errorf("Expected unknown-app error, got %s", text(t, res))
	}
}

// TestStateResource verifies nexus://state returns the store record.
func TestStateResource(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"nexus://state"}}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	if !strings.Contains(string(data), "currentDirectory") {
		t.Errorf("Expected state in resource, got %s", data)
	}
}
