package lua

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	golua "github.com/yuin/gopher-lua"

	"github.com/zot/nexus-shell/internal/state"
	"github.com/zot/nexus-shell/internal/vfs"
	"github.com/zot/nexus-shell/internal/window"
)

func newTestRuntime(t *testing.T) (*Runtime, *state.Store) {
	t.Helper()
	store := state.NewStore(nil)
	fs := vfs.New(store)
	mgr := window.NewManager(store, window.NewManualFrames(), nil)
	r := NewRuntime(nil, store, fs, mgr)
	t.Cleanup(func() {
		r.Close()
		mgr.Close()
	})
	return r, store
}

// TestFSModule verifies the filesystem functions operate on the store's tree.
func TestFSModule(t *testing.T) {
	r, store := newTestRuntime(t)

	_, err := r.DoString("test", `
		assert(fs.mkdir("a") == "/home/a")
		assert(fs.touch("a/b.txt", "hello") == "/home/a/b.txt")
		assert(fs.cd("a") == "/home/a")
		assert(fs.cat("b.txt") == "hello")
		assert(fs.rename("/home/a", "z") == "/home/z")
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if got := store.CurrentDirectory(); got != "/home/z" {
		t.Errorf("Expected cwd /home/z, got %s", got)
	}
}

// TestFSModuleErrors verifies failures come back as nil plus a message.
func TestFSModuleErrors(t *testing.T) {
	r, _ := newTestRuntime(t)

	result, err := r.DoString("test", `
		local ok, msg = fs.cat("/missing")
		return { ok = ok == nil, msg = msg }
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	m, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected table result, got %T", result)
	}
	if m["ok"] != true {
		t.Error("Expected nil first result")
	}
	if msg, _ := m["msg"].(string); !strings.Contains(msg, vfs.ErrFileNotFound.Error()) {
		t.Errorf("Expected file-not-found message, got %q", msg)
	}

	if _, err := r.DoString("rm-root", `local ok, msg = fs.rm("/"); assert(ok == nil and msg ~= nil)`); err != nil {
		t.Errorf("Expected rm of root to fail softly: %v", err)
	}
}

// TestFSList verifies listings come back sorted as name/type tables.
func TestFSList(t *testing.T) {
	r, _ := newTestRuntime(t)

	result, err := r.DoString("test", `
		local names = {}
		for i, item in ipairs(fs.ls("/home")) do
			names[i] = item.name .. ":" .. item.type
		end
		return names
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	names, ok := result.([]interface{})
	if !ok || len(names) != 3 {
		t.Fatalf("Expected 3 entries, got %v", result)
	}
	if names[0] != "documents:directory" || names[2] != "pictures:directory" {
		t.Errorf("Unexpected listing %v", names)
	}
}

// TestWinModule verifies windows opened from Lua reach the store.
func TestWinModule(t *testing.T) {
	r, store := newTestRuntime(t)

	_, err := r.DoString("test", `
		local a = win.open("terminal")
		local b = win.open{ appType = "settings", title = "Custom", width = 300, height = 200 }
		assert(win.open("terminal") == a)
		win.move(b, 10, 20)
		win.minimize(a)
		assert(#win.list() == 2)
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}

	windows := store.Windows()
	if len(windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(windows))
	}
	if !windows[0].IsMinimized {
		t.Error("Expected terminal minimized")
	}
	b := windows[1]
	if b.Title != "Custom" || b.X == nil || *b.X != 10 || *b.Y != 20 {
		t.Errorf("Unexpected custom window %+v", b)
	}
}

// TestWinOpenUnknownApp verifies an unknown app type fails softly.
func TestWinOpenUnknownApp(t *testing.T) {
	r, store := newTestRuntime(t)

	if _, err := r.DoString("test", `local id, msg = win.open("nope"); assert(id == nil and msg ~= nil)`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(store.Windows()) != 0 {
		t.Error("Expected no windows")
	}
}

// TestWinGeometryErrors verifies move and resize refuse unusable numbers.
func TestWinGeometryErrors(t *testing.T) {
	r, store := newTestRuntime(t)

	_, err := r.DoString("test", `
		local id = win.open{ appType = "terminal", x = 10, y = 20, width = 300, height = 200 }
		local ok, msg = win.move(id, 0/0, 5)
		assert(ok == nil and msg ~= nil, "nan position")
		ok, msg = win.move(id, math.huge, 5)
		assert(ok == nil and msg ~= nil, "infinite position")
		ok, msg = win.resize(id, 100, -5)
		assert(ok == nil and msg ~= nil, "negative size")
		ok, msg = win.resize(id, 1/0, 100)
		assert(ok == nil and msg ~= nil, "infinite size")
		assert(win.move(id, 40, 50) == true)
		assert(win.resize(id, 320, 240) == true)
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}

	w := store.Windows()[0]
	if *w.X != 40 || *w.Y != 50 || *w.Width != 320 || *w.Height != 240 {
		t.Errorf("Expected 40,50 320x240, got %v,%v %vx%v", *w.X, *w.Y, *w.Width, *w.Height)
	}
	if _, err := store.MarshalSnapshot(); err != nil {
		t.Errorf("Expected snapshot to encode, got %v", err)
	}
}

// TestDeskModule verifies theme, history and get.
func TestDeskModule(t *testing.T) {
	r, store := newTestRuntime(t)

	result, err := r.DoString("test", `
		desk.theme("light")
		desk.history("ls")
		local h = desk.history("pwd")
		return { theme = desk.get("theme"), count = #h, next = desk.get("nextWindowId") }
	`)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	m := result.(map[string]interface{})
	if m["theme"] != "light" || store.Theme() != "light" {
		t.Errorf("Expected light theme, got %v", m["theme"])
	}
	if m["count"] != float64(2) {
		t.Errorf("Expected 2 history entries, got %v", m["count"])
	}
	if m["next"] != float64(1) {
		t.Errorf("Expected nextWindowId 1, got %v", m["next"])
	}
}

// TestPrintRedirect verifies print writes to the configured output.
func TestPrintRedirect(t *testing.T) {
	r, _ := newTestRuntime(t)
	var out bytes.Buffer
	r.SetOutput(&out)

	if _, err := r.DoString("test", `print("cwd", fs.pwd())`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if got := out.String(); got != "cwd\t/home\n" {
		t.Errorf("Expected tab-separated line, got %q", got)
	}
}

// TestDoFile verifies scripts load from disk and report errors with the path.
func TestDoFile(t *testing.T) {
	r, store := newTestRuntime(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "startup.lua")
	if err := os.WriteFile(good, []byte(`desk.theme("matrix")`), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	if err := r.DoFile(good); err != nil {
		t.Fatalf("DoFile failed: %v", err)
	}
	if store.Theme() != "matrix" {
		t.Errorf("Expected theme matrix, got %s", store.Theme())
	}

	bad := filepath.Join(dir, "bad.lua")
	if err := os.WriteFile(bad, []byte(`this is not lua`), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	if err := r.DoFile(bad); err == nil || !strings.Contains(err.Error(), bad) {
		t.Errorf("Expected error naming %s, got %v", bad, err)
	}
}

// TestLuaToGo verifies table conversion.
func TestLuaToGo(t *testing.T) {
	L := golua.NewState()
	defer L.Close()

	arr := L.NewTable()
	arr.Append(golua.LNumber(1))
	arr.Append(golua.LString("two"))
	got, ok := LuaToGo(arr).([]interface{})
	if !ok || len(got) != 2 || got[0] != float64(1) || got[1] != "two" {
		t.Errorf("Expected [1 two], got %v", LuaToGo(arr))
	}

	obj := L.NewTable()
	obj.RawSetString("name", golua.LString("x"))
	obj.RawSetString("_hidden", golua.LTrue)
	m, ok := LuaToGo(obj).(map[string]interface{})
	if !ok || m["name"] != "x" {
		t.Errorf("Expected map with name, got %v", LuaToGo(obj))
	}
	if _, hidden := m["_hidden"]; hidden {
		t.Error("Expected underscore keys skipped")
	}
}
