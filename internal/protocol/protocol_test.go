package protocol

import (
	"encoding/json"
	"testing"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/shell"
	"github.com/zot/nexus-shell/internal/state"
	"github.com/zot/nexus-shell/internal/storage"
	"github.com/zot/nexus-shell/internal/window"
)

func newTestHandler(t *testing.T) (*Handler, *shell.Shell, *window.ManualFrames) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.Desktop.AutosaveInterval = 0
	cfg.Lua.Enabled = false
	frames := window.NewManualFrames()
	s := shell.New(cfg, storage.NewMemoryStorage(), shell.Options{Frames: frames})
	t.Cleanup(func() { s.Close() })
	return NewHandler(s), s, frames
}

func callMessage(t *testing.T, id int64, method string, args interface{}) *Message {
	t.Helper()
	call := CallMessage{ID: id, Method: method}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("Failed to marshal args: %v", err)
		}
		call.Args = raw
	}
	msg, err := NewMessage(MsgCall, call)
	if err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}
	return msg
}

// call sends a call and decodes the reply into out, failing on error replies.
func call(t *testing.T, h *Handler, method string, args, out interface{}) {
	t.Helper()
	reply := h.HandleMessage("test", callMessage(t, 1, method, args))
	if reply.Type != MsgResult {
		t.Fatalf("%s: expected result, got %s %s", method, reply.Type, reply.Data)
	}
	if out == nil {
		return
	}
	var res struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(reply.Data, &res); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	if err := json.Unmarshal(res.Result, out); err != nil {
		t.Fatalf("Failed to decode result %s: %v", res.Result, err)
	}
}

func callError(t *testing.T, h *Handler, method string, args interface{}) ErrorMessage {
	t.Helper()
	reply := h.HandleMessage("test", callMessage(t, 7, method, args))
	if reply.Type != MsgError {
		t.Fatalf("%s: expected error, got %s %s", method, reply.Type, reply.Data)
	}
	var e ErrorMessage
	if err := json.Unmarshal(reply.Data, &e); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if e.ID != 7 {
		t.Errorf("Expected error for call 7, got %d", e.ID)
	}
	return e
}

// TestParseMessages verifies single, array and wrapped forms.
func TestParseMessages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"single", `{"type":"call","data":{"id":1,"method":"pwd"}}`, 1},
		{"array", `[{"type":"call"},{"type":"call"}]`, 2},
		{"wrapped", `{"messages":[{"type":"call"},{"type":"call"},{"type":"call"}]}`, 3},
		{"empty", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := ParseMessages([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseMessages failed: %v", err)
			}
			if len(msgs) != tt.count {
				t.Errorf("Expected %d messages, got %d", tt.count, len(msgs))
			}
		})
	}

	if _, err := ParseMessages([]byte(`{"type":`)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

// TestBatcherCoalesces verifies the last value wins and first-seen order is kept.
func TestBatcherCoalesces(t *testing.T) {
	b := NewMessageBatcher()
	if b.Flush() != nil {
		t.Error("Expected nil flush when empty")
	}

	b.QueueField(state.FieldTheme, "light")
	b.QueueField(state.FieldCurrentDirectory, "/home")
	b.QueueField(state.FieldTheme, "dark")

	msg := b.Flush()
	if msg == nil || msg.Type != MsgUpdate {
		t.Fatalf("Expected update message, got %+v", msg)
	}
	var update UpdateMessage
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		t.Fatalf("Failed to decode update: %v", err)
	}
	if len(update.Changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(update.Changes))
	}
	if update.Changes[0].Key != state.FieldTheme || string(update.Changes[0].Value) != `"dark"` {
		t.Errorf("Expected theme=dark first, got %s=%s", update.Changes[0].Key, update.Changes[0].Value)
	}
	if !b.IsEmpty() {
		t.Error("Expected batcher empty after flush")
	}
}

// TestBatcherPriority verifies windows go first and telemetry last.
func TestBatcherPriority(t *testing.T) {
	b := NewMessageBatcher()
	b.QueueField(state.FieldLastActivityAt, 1)
	b.QueueField(state.FieldTheme, "dark")
	b.QueueField(state.FieldWindows, []state.WindowRecord{})

	var update UpdateMessage
	json.Unmarshal(b.Flush().Data, &update)
	keys := []string{}
	for _, c := range update.Changes {
		keys = append(keys, c.Key)
	}
	want := []string{state.FieldWindows, state.FieldTheme, state.FieldLastActivityAt}
	for i := range want {
		if i >= len(keys) || keys[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, keys)
		}
	}
}

// TestHandlerWindows verifies window calls reach the store.
func TestHandlerWindows(t *testing.T) {
	h, s, _ := newTestHandler(t)

	var created idResult
	call(t, h, "launch", map[string]string{"appType": "terminal"}, &created)
	if created.ID != 1 {
		t.Errorf("Expected window 1, got %d", created.ID)
	}
	var custom idResult
	call(t, h, "createWindow", map[string]interface{}{"appType": "settings", "title": "Preferences"}, &custom)
	call(t, h, "focusWindow", map[string]int{"id": created.ID}, nil)
	call(t, h, "minimizeWindow", map[string]int{"id": custom.ID}, nil)
	call(t, h, "closeWindow", map[string]int{"id": 99}, nil)

	windows, _ := shell.Call(s, func() ([]state.WindowRecord, error) { return s.Store.Windows(), nil })
	if len(windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(windows))
	}
	if !windows[0].IsFocused || !windows[1].IsMinimized {
		t.Errorf("Unexpected window states %+v", windows)
	}

	if e := callError(t, h, "launch", map[string]string{"appType": "nope"}); e.Code != "unknown-app" {
		t.Errorf("Expected unknown-app, got %s", e.Code)
	}
	if e := callError(t, h, "createWindow", map[string]string{}); e.Code != "bad-request" {
		t.Errorf("Expected bad-request, got %s", e.Code)
	}
	if e := callError(t, h, "createWindow", map[string]string{"appType": "notes"}); e.Code != "unknown-app" {
		t.Errorf("Expected unknown-app for createWindow, got %s", e.Code)
	}
}

// TestHandlerFileSystem verifies filesystem calls and their error codes.
func TestHandlerFileSystem(t *testing.T) {
	h, _, _ := newTestHandler(t)

	var p pathResult
	call(t, h, "mkdir", map[string]string{"path": "/a"}, &p)
	if p.Path != "/a" {
		t.Errorf("Expected /a, got %s", p.Path)
	}
	call(t, h, "touch", map[string]string{"path": "/a/b.txt", "content": "hi"}, nil)
	call(t, h, "cd", map[string]string{"path": "/a"}, nil)

	var renamed struct {
		To  string `json:"to"`
		Cwd string `json:"cwd"`
	}
	call(t, h, "rename", map[string]string{"path": "/a", "newName": "z"}, &renamed)
	if renamed.To != "/z" || renamed.Cwd != "/z" {
		t.Errorf("Expected /z and cwd /z, got %+v", renamed)
	}
	call(t, h, "pwd", nil, &p)
	if p.Path != "/z" {
		t.Errorf("Expected pwd /z, got %s", p.Path)
	}

	var file map[string]string
	call(t, h, "readFile", map[string]string{"path": "b.txt"}, &file)
	if file["content"] != "hi" {
		t.Errorf("Expected content hi, got %q", file["content"])
	}

	var listing struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	call(t, h, "list", map[string]string{"path": "/z"}, &listing)
	if len(listing.Items) != 1 || listing.Items[0].Name != "b.txt" {
		t.Errorf("Unexpected listing %+v", listing)
	}

	codes := []struct {
		method string
		args   map[string]string
		code   string
	}{
		{"rm", map[string]string{"path": "/"}, "root-protected"},
		{"list", map[string]string{"path": "/nope"}, "not-found"},
		{"list", map[string]string{"path": "/z/b.txt"}, "not-a-directory"},
		{"mkdir", map[string]string{"path": "/z"}, "already-exists"},
		{"mkdir", map[string]string{"path": ".."}, "invalid-name"},
		{"back", nil, "no-history"},
		{"nope", nil, "unknown-method"},
	}
	for _, c := range codes {
		if e := callError(t, h, c.method, c.args); e.Code != c.code {
			t.Errorf("%s %v: expected %s, got %s (%s)", c.method, c.args, c.code, e.Code, e.Description)
		}
	}
}

// TestHandlerDrag verifies pointer calls throttle commits to frames and
// persist the final position on release.
func TestHandlerDrag(t *testing.T) {
	h, s, frames := newTestHandler(t)

	var created idResult
	call(t, h, "createWindow", map[string]interface{}{"appType": "terminal", "x": 100, "y": 100, "width": 300, "height": 200}, &created)

	var started bool
	call(t, h, "startDrag", map[string]interface{}{"id": created.ID, "x": 110, "y": 110}, &started)
	if !started {
		t.Fatal("Expected drag to start")
	}
	for i := 1; i <= 10; i++ {
		call(t, h, "pointerMove", map[string]interface{}{"id": created.ID, "x": 110 + i, "y": 110 + i}, nil)
	}
	if frames.Pending() != 1 {
		t.Errorf("Expected one pending frame, got %d", frames.Pending())
	}
	s.Do(func() { frames.Tick() })

	var bounds window.Rect
	call(t, h, "pointerUp", map[string]int{"id": created.ID}, &bounds)
	if bounds.X != 110 || bounds.Y != 110 {
		t.Errorf("Expected final bounds at 110,110, got %+v", bounds)
	}
	rec, _ := shell.Call(s, func() (state.WindowRecord, error) {
		r, _ := s.Store.Window(created.ID)
		return r, nil
	})
	if rec.X == nil || *rec.X != 110 {
		t.Errorf("Expected stored x 110, got %v", rec.X)
	}

	if e := callError(t, h, "pointerMove", map[string]interface{}{"id": 42}); e.Code != "not-found" {
		t.Errorf("Expected not-found, got %s", e.Code)
	}
	if e := callError(t, h, "startResize", map[string]interface{}{"id": created.ID, "direction": "up"}); e.Code != "bad-request" {
		t.Errorf("Expected bad-request, got %s", e.Code)
	}
}

// TestHandlerGet verifies get returns a field or the whole record.
func TestHandlerGet(t *testing.T) {
	h, _, _ := newTestHandler(t)

	call(t, h, "setTheme", map[string]string{"theme": "light"}, nil)
	var theme string
	call(t, h, "get", map[string]string{"key": "theme"}, &theme)
	if theme != "light" {
		t.Errorf("Expected light, got %s", theme)
	}

	var rec map[string]json.RawMessage
	call(t, h, "get", nil, &rec)
	if _, ok := rec[state.FieldFileSystem]; !ok {
		t.Error("Expected fileSystem in full record")
	}
	if e := callError(t, h, "get", map[string]string{"key": "bogus"}); e.Code != "not-found" {
		t.Errorf("Expected not-found, got %s", e.Code)
	}
}

// TestHandleNonCall verifies unexpected message types are rejected.
func TestHandleNonCall(t *testing.T) {
	h, _, _ := newTestHandler(t)
	msg, _ := NewMessage(MsgUpdate, nil)
	reply := h.HandleMessage("test", msg)
	if reply.Type != MsgError {
		t.Errorf("Expected error reply, got %s", reply.Type)
	}
}
