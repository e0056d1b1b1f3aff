// Package lua embeds a gopher-lua VM scripted against the desktop core.
// Scripts see three global modules: fs for the virtual filesystem, win for
// windows and desk for the rest of the desktop state.
//
// A Runtime is not safe for concurrent use. The shell runs every script
// inside one executor call, so module functions call the core directly.
package lua

import (
	"fmt"
	"io"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/state"
	"github.com/zot/nexus-shell/internal/vfs"
	"github.com/zot/nexus-shell/internal/window"
)

// Runtime is a Lua VM bound to one desktop.
type Runtime struct {
	State   *lua.LState
	config  *config.Config
	store   *state.Store
	fs      *vfs.FileSystem
	windows *window.Manager
	out     io.Writer
}

// NewRuntime creates a VM with the fs, win and desk modules registered.
func NewRuntime(cfg *config.Config, store *state.Store, fs *vfs.FileSystem, windows *window.Manager) *Runtime {
	r := &Runtime{
		State:   lua.NewState(),
		config:  cfg,
		store:   store,
		fs:      fs,
		windows: windows,
		out:     os.Stdout,
	}
	r.registerPrint()
	r.registerFSModule()
	r.registerWinModule()
	r.registerDeskModule()
	return r
}

// SetOutput redirects print.
func (r *Runtime) SetOutput(w io.Writer) {
	r.out = w
}

// Log writes through the configured verbosity.
func (r *Runtime) Log(level int, format string, args ...interface{}) {
	r.config.Log(level, format, args...)
}

// Close shuts the VM down.
func (r *Runtime) Close() {
	r.State.Close()
}

// DoFile runs a script file.
func (r *Runtime) DoFile(path string) error {
	r.Log(1, "LuaRuntime: running %s", path)
	if err := r.State.DoFile(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// DoString runs a chunk and returns its first result converted to Go.
func (r *Runtime) DoString(name, code string) (interface{}, error) {
	fn, err := r.State.LoadString(code)
	if err != nil {
		return nil, fmt.Errorf("failed to load code %s: %w", name, err)
	}

	r.State.Push(fn)
	if err := r.State.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("failed to execute code %s: %w", name, err)
	}

	ret := r.State.Get(-1)
	r.State.Pop(1)
	if ret == lua.LNil {
		return nil, nil
	}
	return LuaToGo(ret), nil
}

// registerPrint replaces the base library print so output follows SetOutput.
func (r *Runtime) registerPrint() {
	r.State.SetGlobal("print", r.State.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		fmt.Fprintln(r.out, strings.Join(parts, "\t"))
		return 0
	}))
}

// fail pushes the nil, message pair module functions return on error.
func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}
