package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zot/nexus-shell/internal/shell"
	"github.com/zot/nexus-shell/internal/state"
	"github.com/zot/nexus-shell/internal/vfs"
	"github.com/zot/nexus-shell/internal/window"
)

var (
	// ErrBadRequest is returned for malformed messages and call arguments.
	ErrBadRequest = errors.New("bad request")

	// ErrUnknownMethod is returned for calls to methods the handler lacks.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrUnknownField is returned by get for fields the store does not hold.
	ErrUnknownField = errors.New("unknown field")

	// ErrNoWindow is returned by pointer calls for windows without a live instance.
	ErrNoWindow = errors.New("no such window")
)

type method func(args json.RawMessage) (interface{}, error)

// Handler dispatches calls onto the shell executor.
type Handler struct {
	shell   *shell.Shell
	methods map[string]method
}

// NewHandler creates a handler for calls against s.
func NewHandler(s *shell.Shell) *Handler {
	h := &Handler{shell: s}
	h.methods = map[string]method{
		"get":                  h.get,
		"setTheme":             h.setTheme,
		"setWallpaper":         h.setWallpaper,
		"createWindow":         h.createWindow,
		"launch":               h.launch,
		"closeWindow":          h.windowOp(s.Windows.CloseWindow),
		"focusWindow":          h.windowOp(s.Windows.FocusWindow),
		"minimizeWindow":       h.windowOp(s.Windows.MinimizeWindow),
		"restoreWindow":        h.windowOp(s.Windows.RestoreWindow),
		"toggleMaximize":       h.windowOp(s.Windows.ToggleMaximize),
		"updateWindowPosition": h.updateWindowPosition,
		"updateWindowSize":     h.updateWindowSize,
		"switchWindow":         h.switchWindow,
		"startDrag":            h.startDrag,
		"startResize":          h.startResize,
		"pointerMove":          h.pointerMove,
		"pointerUp":            h.pointerUp,
		"pwd":                  h.pwd,
		"cd":                   h.cd,
		"navigate":             h.navigate,
		"back":                 h.back,
		"list":                 h.list,
		"mkdir":                h.mkdir,
		"touch":                h.touch,
		"rm":                   h.rm,
		"rename":               h.rename,
		"readFile":             h.readFile,
		"history":              h.history,
	}
	return h
}

// Methods returns the names of every callable method.
func (h *Handler) Methods() []string {
	names := make([]string, 0, len(h.methods))
	for name := range h.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleMessage processes an incoming message and returns the reply.
func (h *Handler) HandleMessage(connectionID string, msg *Message) *Message {
	h.shell.Config.Log(2, "Message: type=%s from=%s", msg.Type, connectionID)

	if msg.Type != MsgCall {
		return errorMessage(0, fmt.Errorf("%w: unexpected message type %q", ErrBadRequest, msg.Type))
	}
	var call CallMessage
	if err := json.Unmarshal(msg.Data, &call); err != nil {
		return errorMessage(0, fmt.Errorf("%w: %v", ErrBadRequest, err))
	}

	result, err := h.Call(call.Method, call.Args)
	if err != nil {
		h.shell.Config.Log(1, "Call %s from %s failed: %v", call.Method, connectionID, err)
		return errorMessage(call.ID, err)
	}
	reply, err := NewMessage(MsgResult, ResultMessage{ID: call.ID, Result: result})
	if err != nil {
		return errorMessage(call.ID, err)
	}
	return reply
}

// Call runs a method on the shell executor and returns its encoded result.
// The result is encoded on the executor because it may share the store's tree.
func (h *Handler) Call(name string, args json.RawMessage) (json.RawMessage, error) {
	m, ok := h.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return shell.Call(h.shell, func() (json.RawMessage, error) {
		result, err := m(args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

func errorMessage(id int64, err error) *Message {
	msg, _ := NewMessage(MsgError, ErrorMessage{ID: id, Code: ErrorCode(err), Description: err.Error()})
	return msg
}

// ErrorCode maps an error to its one-word protocol code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, vfs.ErrMissingName):
		return "bad-request"
	case errors.Is(err, ErrUnknownMethod):
		return "unknown-method"
	case errors.Is(err, window.ErrUnknownApp):
		return "unknown-app"
	case errors.Is(err, ErrNoWindow), errors.Is(err, ErrUnknownField), errors.Is(err, vfs.ErrNotFound),
		errors.Is(err, vfs.ErrFileNotFound), errors.Is(err, vfs.ErrDirectoryNotFound),
		errors.Is(err, vfs.ErrParentNotFound):
		return "not-found"
	case errors.Is(err, vfs.ErrAlreadyExists), errors.Is(err, vfs.ErrNameCollision):
		return "already-exists"
	case errors.Is(err, vfs.ErrInvalidName):
		return "invalid-name"
	case errors.Is(err, vfs.ErrNotADirectory):
		return "not-a-directory"
	case errors.Is(err, vfs.ErrRootProtected):
		return "root-protected"
	case errors.Is(err, vfs.ErrNoHistory):
		return "no-history"
	case errors.Is(err, shell.ErrClosed):
		return "unavailable"
	default:
		return "internal"
	}
}

func decode(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

type keyArgs struct {
	Key string `json:"key"`
}

type idArgs struct {
	ID int `json:"id"`
}

type pathArgs struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	NewName string `json:"newName,omitempty"`
}

type pointArgs struct {
	ID        int              `json:"id"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Width     float64          `json:"width"`
	Height    float64          `json:"height"`
	Direction window.Direction `json:"direction,omitempty"`
	Persist   *bool            `json:"persist,omitempty"`
}

type idResult struct {
	ID int `json:"id"`
}

type pathResult struct {
	Path string `json:"path"`
}

// get returns one field, or the whole record when no key is given.
func (h *Handler) get(args json.RawMessage) (interface{}, error) {
	var a keyArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	rec := h.shell.Store.Snapshot()
	if a.Key == "" {
		return rec, nil
	}
	v, ok := rec[a.Key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, a.Key)
	}
	return v, nil
}

func (h *Handler) setTheme(args json.RawMessage) (interface{}, error) {
	var a struct {
		Theme string `json:"theme"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Theme == "" {
		return nil, fmt.Errorf("%w: theme required", ErrBadRequest)
	}
	h.shell.Store.SetState(state.Partial{state.FieldTheme: a.Theme})
	return nil, nil
}

func (h *Handler) setWallpaper(args json.RawMessage) (interface{}, error) {
	var wp state.Wallpaper
	if err := decode(args, &wp); err != nil {
		return nil, err
	}
	if wp.Src == "" {
		return nil, fmt.Errorf("%w: src required", ErrBadRequest)
	}
	if wp.Type == "" {
		wp.Type = "image"
	}
	h.shell.Store.SetState(state.Partial{state.FieldWallpaper: wp})
	return nil, nil
}

func (h *Handler) createWindow(args json.RawMessage) (interface{}, error) {
	var cfg state.WindowConfig
	if err := decode(args, &cfg); err != nil {
		return nil, err
	}
	if cfg.AppType == "" {
		return nil, fmt.Errorf("%w: appType required", ErrBadRequest)
	}
	id, err := h.shell.Windows.CreateWindow(cfg)
	if err != nil {
		return nil, err
	}
	return idResult{ID: id}, nil
}

func (h *Handler) launch(args json.RawMessage) (interface{}, error) {
	var a struct {
		AppType string `json:"appType"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	id, err := h.shell.Windows.Launch(a.AppType)
	if err != nil {
		return nil, err
	}
	return idResult{ID: id}, nil
}

// windowOp adapts a manager method taking only an id. Unknown ids are ignored.
func (h *Handler) windowOp(fn func(id int)) method {
	return func(args json.RawMessage) (interface{}, error) {
		var a idArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		fn(a.ID)
		return nil, nil
	}
}

func persisted(p *bool) bool {
	return p == nil || *p
}

func (h *Handler) updateWindowPosition(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	h.shell.Windows.UpdateWindowPosition(a.ID, a.X, a.Y, persisted(a.Persist))
	return nil, nil
}

func (h *Handler) updateWindowSize(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if !state.ValidSize(a.Width, a.Height) {
		return nil, fmt.Errorf("%w: width and height must be positive", ErrBadRequest)
	}
	h.shell.Windows.UpdateWindowSize(a.ID, a.Width, a.Height, persisted(a.Persist))
	return nil, nil
}

func (h *Handler) switchWindow(json.RawMessage) (interface{}, error) {
	id, ok := h.shell.Windows.SwitchWindow()
	if !ok {
		return nil, nil
	}
	return idResult{ID: id}, nil
}

func (h *Handler) instance(id int) (*window.Instance, error) {
	inst, ok := h.shell.Windows.Instance(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoWindow, id)
	}
	return inst, nil
}

// startDrag reports whether the drag began; maximized windows refuse.
func (h *Handler) startDrag(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	inst, err := h.instance(a.ID)
	if err != nil {
		return nil, err
	}
	h.shell.Windows.FocusWindow(a.ID)
	return inst.StartDrag(a.X, a.Y), nil
}

func (h *Handler) startResize(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if !a.Direction.Valid() {
		return nil, fmt.Errorf("%w: invalid direction %q", ErrBadRequest, a.Direction)
	}
	inst, err := h.instance(a.ID)
	if err != nil {
		return nil, err
	}
	h.shell.Windows.FocusWindow(a.ID)
	return inst.StartResize(a.Direction, a.X, a.Y), nil
}

func (h *Handler) pointerMove(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	inst, err := h.instance(a.ID)
	if err != nil {
		return nil, err
	}
	inst.PointerMove(a.X, a.Y)
	return inst.Bounds(), nil
}

func (h *Handler) pointerUp(args json.RawMessage) (interface{}, error) {
	var a idArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	inst, err := h.instance(a.ID)
	if err != nil {
		return nil, err
	}
	inst.PointerUp()
	return inst.Bounds(), nil
}

func (h *Handler) pwd(json.RawMessage) (interface{}, error) {
	return pathResult{Path: h.shell.FS.Pwd()}, nil
}

func (h *Handler) pathOp(args json.RawMessage, fn func(a pathArgs) (string, error)) (interface{}, error) {
	var a pathArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	p, err := fn(a)
	if err != nil {
		return nil, err
	}
	return pathResult{Path: p}, nil
}

func (h *Handler) cd(args json.RawMessage) (interface{}, error) {
	return h.pathOp(args, func(a pathArgs) (string, error) { return h.shell.FS.Cd(a.Path) })
}

func (h *Handler) navigate(args json.RawMessage) (interface{}, error) {
	return h.pathOp(args, func(a pathArgs) (string, error) { return h.shell.FS.NavigateTo(a.Path) })
}

func (h *Handler) back(json.RawMessage) (interface{}, error) {
	p, err := h.shell.FS.GoBack()
	if err != nil {
		return nil, err
	}
	return pathResult{Path: p}, nil
}

func (h *Handler) mkdir(args json.RawMessage) (interface{}, error) {
	return h.pathOp(args, func(a pathArgs) (string, error) { return h.shell.FS.Mkdir(a.Path) })
}

func (h *Handler) touch(args json.RawMessage) (interface{}, error) {
	return h.pathOp(args, func(a pathArgs) (string, error) { return h.shell.FS.Touch(a.Path, a.Content) })
}

func (h *Handler) rm(args json.RawMessage) (interface{}, error) {
	return h.pathOp(args, func(a pathArgs) (string, error) {
		return h.shell.FS.NormalizePath(a.Path, ""), h.shell.FS.Rm(a.Path)
	})
}

func (h *Handler) list(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return h.shell.FS.List(a.Path)
}

func (h *Handler) rename(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return h.shell.FS.Rename(a.Path, a.NewName)
}

func (h *Handler) readFile(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	content, err := h.shell.FS.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	return map[string]string{"path": h.shell.FS.NormalizePath(a.Path, ""), "content": content}, nil
}

// history returns the terminal history, appending command first when given.
func (h *Handler) history(args json.RawMessage) (interface{}, error) {
	var a struct {
		Command string `json:"command"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Command != "" {
		h.shell.Store.AddToTerminalHistory(a.Command)
	}
	return h.shell.Store.TerminalHistory(), nil
}
