package window

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zot/nexus-shell/internal/state"
)

// ErrUnknownApp is returned when opening an app type that is not in the catalogue.
var ErrUnknownApp = errors.New("unknown app")

// App describes a launchable application.
type App struct {
	Type   string  `json:"appType"`
	Title  string  `json:"title"`
	Icon   string  `json:"icon"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var apps = map[string]App{
	"terminal":       {Type: "terminal", Title: "Nexus Terminal", Icon: "assets/icons/terminal.svg", Width: 600, Height: 400},
	"file-explorer":  {Type: "file-explorer", Title: "File Explorer", Icon: "assets/icons/folder.svg", Width: 700, Height: 500},
	"system-monitor": {Type: "system-monitor", Title: "System Monitor", Icon: "assets/icons/activity.svg", Width: 500, Height: 400},
	"settings":       {Type: "settings", Title: "Settings", Icon: "assets/icons/settings.svg", Width: 600, Height: 500},
}

// LookupApp returns the catalogue entry for appType.
func LookupApp(appType string) (App, bool) {
	app, ok := apps[appType]
	return app, ok
}

// Apps returns the catalogue sorted by type.
func Apps() []App {
	list := make([]App, 0, len(apps))
	for _, app := range apps {
		list = append(list, app)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })
	return list
}

// Config returns the window configuration that opens app.
func (a App) Config() state.WindowConfig {
	return state.WindowConfig{
		AppType: a.Type,
		Title:   a.Title,
		Icon:    a.Icon,
		Width:   state.Float(a.Width),
		Height:  state.Float(a.Height),
	}
}

// Launch opens an app. Apps are single-instance: if a window of that type is
// already open it is restored or focused instead of creating another.
func (m *Manager) Launch(appType string) (int, error) {
	app, ok := LookupApp(appType)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownApp, appType)
	}
	for _, w := range m.store.Windows() {
		if w.AppType != app.Type {
			continue
		}
		if w.IsMinimized {
			m.RestoreWindow(w.ID)
		} else {
			m.FocusWindow(w.ID)
		}
		return w.ID, nil
	}
	return m.CreateWindow(app.Config())
}

// SwitchWindow cycles focus through the windows in stacking order, skipping
// minimized ones unless every window is minimized. It returns the window
// switched to, or false when there are no windows.
func (m *Manager) SwitchWindow() (int, bool) {
	windows := m.store.Windows()
	if len(windows) == 0 {
		return 0, false
	}

	var list []state.WindowRecord
	for _, w := range windows {
		if !w.IsMinimized {
			list = append(list, w)
		}
	}
	if len(list) == 0 {
		list = windows
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ZIndex < list[j].ZIndex })

	active := m.store.ActiveWindowID()
	next := len(list) - 1
	for i, w := range list {
		if w.ID == active {
			next = (i + 1) % len(list)
			break
		}
	}

	target := list[next]
	if target.IsMinimized {
		m.RestoreWindow(target.ID)
	} else {
		m.FocusWindow(target.ID)
	}
	return target.ID, true
}
