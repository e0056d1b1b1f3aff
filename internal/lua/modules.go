package lua

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/nexus-shell/internal/state"
)

func (r *Runtime) registerFSModule() {
	L := r.State
	mod := L.NewTable()

	// fs.pwd()
	L.SetField(mod, "pwd", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(r.fs.Pwd()))
		return 1
	}))

	// fs.cd(path)
	L.SetField(mod, "cd", L.NewFunction(func(L *lua.LState) int {
		p, err := r.fs.Cd(L.CheckString(1))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LString(p))
		return 1
	}))

	// fs.ls([path]) -> { {name=, type=}, ... }
	L.SetField(mod, "ls", L.NewFunction(func(L *lua.LState) int {
		listing, err := r.fs.List(L.OptString(1, ""))
		if err != nil {
			return fail(L, err)
		}
		tbl := L.NewTable()
		for i, item := range listing.Items {
			entry := L.NewTable()
			L.SetField(entry, "name", lua.LString(item.Name))
			L.SetField(entry, "type", lua.LString(string(item.Type)))
			L.RawSetInt(tbl, i+1, entry)
		}
		L.Push(tbl)
		return 1
	}))

	// fs.mkdir(path)
	L.SetField(mod, "mkdir", L.NewFunction(func(L *lua.LState) int {
		p, err := r.fs.Mkdir(L.CheckString(1))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LString(p))
		return 1
	}))

	// fs.touch(path[, content])
	L.SetField(mod, "touch", L.NewFunction(func(L *lua.LState) int {
		p, err := r.fs.Touch(L.CheckString(1), L.OptString(2, ""))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LString(p))
		return 1
	}))

	// fs.rm(path)
	L.SetField(mod, "rm", L.NewFunction(func(L *lua.LState) int {
		if err := r.fs.Rm(L.CheckString(1)); err != nil {
			return fail(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}))

	// fs.rename(path, newName) -> new path
	L.SetField(mod, "rename", L.NewFunction(func(L *lua.LState) int {
		res, err := r.fs.Rename(L.CheckString(1), L.CheckString(2))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LString(res.To))
		return 1
	}))

	// fs.cat(path)
	L.SetField(mod, "cat", L.NewFunction(func(L *lua.LState) int {
		content, err := r.fs.ReadFile(L.CheckString(1))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LString(content))
		return 1
	}))

	// fs.exists(path)
	L.SetField(mod, "exists", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(r.fs.Exists(L.CheckString(1))))
		return 1
	}))

	L.SetGlobal("fs", mod)
}

func (r *Runtime) registerWinModule() {
	L := r.State
	mod := L.NewTable()

	// win.open(appType) launches a catalogue app.
	// win.open{appType=, title=, icon=, x=, y=, width=, height=} opens a window as given.
	L.SetField(mod, "open", L.NewFunction(func(L *lua.LState) int {
		switch arg := L.Get(1).(type) {
		case lua.LString:
			id, err := r.windows.Launch(string(arg))
			if err != nil {
				return fail(L, err)
			}
			L.Push(lua.LNumber(id))
			return 1
		case *lua.LTable:
			cfg, err := windowConfig(arg)
			if err != nil {
				return fail(L, err)
			}
			id, err := r.windows.CreateWindow(cfg)
			if err != nil {
				return fail(L, err)
			}
			L.Push(lua.LNumber(id))
			return 1
		default:
			L.ArgError(1, "app type or window table expected")
			return 0
		}
	}))

	idFunc := func(name string, fn func(id int)) {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckInt(1))
			return 0
		}))
	}
	idFunc("close", r.windows.CloseWindow)
	idFunc("focus", r.windows.FocusWindow)
	idFunc("minimize", r.windows.MinimizeWindow)
	idFunc("restore", r.windows.RestoreWindow)
	idFunc("maximize", r.windows.ToggleMaximize)

	// win.move(id, x, y) -> true or nil, message
	L.SetField(mod, "move", L.NewFunction(func(L *lua.LState) int {
		id, x, y := L.CheckInt(1), float64(L.CheckNumber(2)), float64(L.CheckNumber(3))
		if !state.ValidPosition(x, y) {
			return fail(L, fmt.Errorf("invalid position %v,%v", x, y))
		}
		r.windows.UpdateWindowPosition(id, x, y, true)
		L.Push(lua.LTrue)
		return 1
	}))

	// win.resize(id, width, height) -> true or nil, message
	L.SetField(mod, "resize", L.NewFunction(func(L *lua.LState) int {
		id, w, h := L.CheckInt(1), float64(L.CheckNumber(2)), float64(L.CheckNumber(3))
		if !state.ValidSize(w, h) {
			return fail(L, fmt.Errorf("invalid size %vx%v", w, h))
		}
		r.windows.UpdateWindowSize(id, w, h, true)
		L.Push(lua.LTrue)
		return 1
	}))

	// win.list() -> window records
	L.SetField(mod, "list", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		for i, w := range r.store.Windows() {
			L.RawSetInt(tbl, i+1, r.GoToLua(w))
		}
		L.Push(tbl)
		return 1
	}))

	// win.switch() -> id or nil
	L.SetField(mod, "switch", L.NewFunction(func(L *lua.LState) int {
		id, ok := r.windows.SwitchWindow()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(id))
		return 1
	}))

	// win.closeAll()
	L.SetField(mod, "closeAll", L.NewFunction(func(L *lua.LState) int {
		r.windows.CloseAll()
		return 0
	}))

	L.SetGlobal("win", mod)
}

// windowConfig decodes a Lua window table through its JSON form.
func windowConfig(tbl *lua.LTable) (state.WindowConfig, error) {
	var cfg state.WindowConfig
	data, err := json.Marshal(LuaToGo(tbl))
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.AppType == "" {
		return cfg, fmt.Errorf("window table needs an appType")
	}
	return cfg, nil
}

func (r *Runtime) registerDeskModule() {
	L := r.State
	mod := L.NewTable()

	// desk.get(key)
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int {
		L.Push(r.GoToLua(r.store.Get(L.CheckString(1))))
		return 1
	}))

	// desk.theme([name]) returns the theme, setting it first when name is given.
	L.SetField(mod, "theme", L.NewFunction(func(L *lua.LState) int {
		if L.GetTop() >= 1 {
			r.store.SetState(state.Partial{state.FieldTheme: L.CheckString(1)})
		}
		L.Push(lua.LString(r.store.Theme()))
		return 1
	}))

	// desk.wallpaper(src[, type])
	L.SetField(mod, "wallpaper", L.NewFunction(func(L *lua.LState) int {
		wp := state.Wallpaper{Type: L.OptString(2, "image"), Src: L.CheckString(1)}
		r.store.SetState(state.Partial{state.FieldWallpaper: wp})
		return 0
	}))

	// desk.history([command]) returns the terminal history, appending command first.
	L.SetField(mod, "history", L.NewFunction(func(L *lua.LState) int {
		if L.GetTop() >= 1 {
			r.store.AddToTerminalHistory(L.CheckString(1))
		}
		L.Push(r.GoToLua(r.store.TerminalHistory()))
		return 1
	}))

	// desk.log([level,] message)
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		level := 0
		msg := ""
		if L.GetTop() == 1 {
			msg = L.CheckString(1)
		} else {
			level = L.CheckInt(1)
			msg = L.CheckString(2)
		}
		r.Log(level, "[lua] %s", msg)
		return 0
	}))

	// desk.json_encode(value)
	L.SetField(mod, "json_encode", L.NewFunction(func(L *lua.LState) int {
		data, err := json.Marshal(LuaToGo(L.Get(1)))
		if err != nil {
			return fail(L, err)
		}
		L.Push(lua.LString(string(data)))
		return 1
	}))

	// desk.json_decode(string)
	L.SetField(mod, "json_decode", L.NewFunction(func(L *lua.LState) int {
		var val interface{}
		if err := json.Unmarshal([]byte(L.CheckString(1)), &val); err != nil {
			return fail(L, err)
		}
		L.Push(r.GoToLua(val))
		return 1
	}))

	L.SetGlobal("desk", mod)
}
