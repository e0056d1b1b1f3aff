// Package window manages the live windows of the desktop. The Manager keeps
// one Instance per record in the store's windows field and is the only
// writer of window lifecycle transitions; Instances handle pointer-driven
// drag and resize and commit their geometry back through the Manager.
package window

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/state"
)

// SurfaceFactory creates the visual side of a new window. It may return nil.
type SurfaceFactory func(rec state.WindowRecord) Surface

// Option configures a Manager.
type Option func(*Manager)

// WithSurfaces attaches a surface to every instance the manager creates.
func WithSurfaces(f SurfaceFactory) Option {
	return func(m *Manager) { m.surfaces = f }
}

// WithViewport overrides the configured viewport.
func WithViewport(v Viewport) Option {
	return func(m *Manager) { m.viewport = v }
}

// Manager reconciles the store's window records with live instances.
type Manager struct {
	store       *state.Store
	frames      FrameScheduler
	config      *config.Config
	viewport    Viewport
	minWidth    float64
	minHeight   float64
	surfaces    SurfaceFactory
	instances   map[int]*Instance
	unsubscribe func()
	mu          sync.Mutex
}

// NewManager creates a manager, subscribes it to the windows field and
// creates instances for any windows already in the store. cfg may be nil.
func NewManager(store *state.Store, frames FrameScheduler, cfg *config.Config, opts ...Option) *Manager {
	desktop := config.DefaultConfig().Desktop
	if cfg != nil {
		desktop = cfg.Desktop
	}
	m := &Manager{
		store:     store,
		frames:    frames,
		config:    cfg,
		viewport:  Viewport{Width: desktop.ViewportWidth, Height: desktop.ViewportHeight, Taskbar: desktop.TaskbarHeight},
		minWidth:  desktop.MinWindowWidth,
		minHeight: desktop.MinWindowHeight,
		instances: make(map[int]*Instance),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = store.Subscribe(state.FieldWindows, func(value, prev any) {
		windows, _ := value.([]state.WindowRecord)
		m.Sync(windows)
	})
	m.Sync(store.Windows())
	return m
}

// Close unsubscribes from the store and destroys every instance.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[int]*Instance)
	m.mu.Unlock()

	for _, inst := range instances {
		inst.Destroy()
	}
}

// Viewport returns the area windows are confined to.
func (m *Manager) Viewport() Viewport {
	return m.viewport
}

// Sync reconciles the registry with windows: instances are created for new
// ids, destroyed for missing ones and updated for the rest. Syncing the same
// collection twice is harmless.
func (m *Manager) Sync(windows []state.WindowRecord) {
	desired := make(map[int]state.WindowRecord, len(windows))
	order := make([]int, 0, len(windows))
	for _, rec := range windows {
		if _, dup := desired[rec.ID]; !dup {
			desired[rec.ID] = rec
			order = append(order, rec.ID)
		}
	}

	var removed []*Instance
	var fresh []int

	m.mu.Lock()
	for id, inst := range m.instances {
		if _, ok := desired[id]; !ok {
			removed = append(removed, inst)
			delete(m.instances, id)
		}
	}
	for _, id := range order {
		if _, ok := m.instances[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	m.mu.Unlock()

	for _, inst := range removed {
		inst.Destroy()
		m.log(2, "Destroyed window instance %d", inst.ID())
	}

	created := make(map[int]*Instance, len(fresh))
	for _, id := range fresh {
		rec := desired[id]
		var surface Surface
		if m.surfaces != nil {
			surface = m.surfaces(rec)
		}
		created[id] = newInstance(rec, m, m.frames, m.viewport, m.minWidth, m.minHeight, surface)
	}

	m.mu.Lock()
	targets := make([]*Instance, 0, len(order))
	for _, id := range order {
		if inst, ok := created[id]; ok {
			if _, raced := m.instances[id]; !raced {
				m.instances[id] = inst
				m.log(2, "Created window instance %d (%s)", id, desired[id].AppType)
			}
		}
		if inst, ok := m.instances[id]; ok {
			targets = append(targets, inst)
		}
	}
	m.mu.Unlock()

	for _, inst := range targets {
		inst.Update(desired[inst.ID()])
	}
}

// Instance returns the live instance for id.
func (m *Manager) Instance(id int) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// IDs returns the ids of every live instance in ascending order.
func (m *Manager) IDs() []int {
	m.mu.Lock()
	ids := make([]int, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Ints(ids)
	return ids
}

func (m *Manager) exists(id int) bool {
	_, ok := m.store.Window(id)
	return ok
}

// activity records a lifecycle event in the non-persisted telemetry fields.
func (m *Manager) activity(counter string) {
	if counter != "" {
		m.store.BumpCounter(counter, 1, state.NoPersist)
	}
	m.store.Touch()
}

// CreateWindow opens a new focused window on top and returns its id. The
// app type must be in the catalogue.
func (m *Manager) CreateWindow(cfg state.WindowConfig) (int, error) {
	if _, ok := LookupApp(cfg.AppType); !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownApp, cfg.AppType)
	}
	rec := m.store.AddWindow(cfg)
	m.activity(state.FieldWindowsCreated)
	m.log(1, "Created window %d (%s)", rec.ID, rec.AppType)
	return rec.ID, nil
}

// CloseWindow destroys the instance and removes the record. Unknown ids are ignored.
func (m *Manager) CloseWindow(id int) {
	m.mu.Lock()
	inst, live := m.instances[id]
	delete(m.instances, id)
	m.mu.Unlock()

	if live {
		inst.Destroy()
	}
	if !m.exists(id) {
		return
	}
	m.store.RemoveWindow(id)
	m.activity(state.FieldWindowsClosed)
	m.log(1, "Closed window %d", id)
}

// CloseAll closes every open window.
func (m *Manager) CloseAll() {
	for _, w := range m.store.Windows() {
		m.CloseWindow(w.ID)
	}
}

// FocusWindow raises and focuses a window.
func (m *Manager) FocusWindow(id int) {
	if !m.exists(id) {
		return
	}
	m.store.FocusWindow(id)
	m.activity(state.FieldWindowsFocused)
}

// MinimizeWindow hides a window.
func (m *Manager) MinimizeWindow(id int) {
	if !m.exists(id) {
		return
	}
	m.store.MinimizeWindow(id)
	m.activity(state.FieldWindowsMinimized)
}

// RestoreWindow un-minimizes and focuses a window.
func (m *Manager) RestoreWindow(id int) {
	if !m.exists(id) {
		return
	}
	m.store.RestoreWindow(id)
	m.activity(state.FieldWindowsRestored)
}

// ToggleMaximize flips a window between maximized and normal.
func (m *Manager) ToggleMaximize(id int) {
	if !m.exists(id) {
		return
	}
	m.store.ToggleMaximize(id)
	m.activity(state.FieldWindowsMaximized)
}

// UpdateWindowPosition stores a window's position. Interactive moves pass
// persist=false; the final position of a drag is committed with persist=true.
// Non-finite coordinates are ignored.
func (m *Manager) UpdateWindowPosition(id int, x, y float64, persist bool) {
	if !m.exists(id) || !state.ValidPosition(x, y) {
		return
	}
	m.store.UpdateWindow(id, state.WindowPatch{X: state.Float(x), Y: state.Float(y)}, persistOption(persist))
	m.store.BumpCounter(state.FieldWindowsMoved, 1, state.NoPersist)
	m.log(4, "Window %d position %.0f,%.0f persist=%v", id, x, y, persist)
}

// UpdateWindowSize stores a window's size, with the same persistence rule as
// UpdateWindowPosition. Sizes that are not finite and positive are ignored.
func (m *Manager) UpdateWindowSize(id int, width, height float64, persist bool) {
	if !m.exists(id) || !state.ValidSize(width, height) {
		return
	}
	m.store.UpdateWindow(id, state.WindowPatch{Width: state.Float(width), Height: state.Float(height)}, persistOption(persist))
	m.store.BumpCounter(state.FieldWindowsResized, 1, state.NoPersist)
	m.log(4, "Window %d size %.0fx%.0f persist=%v", id, width, height, persist)
}

func persistOption(persist bool) state.Option {
	if persist {
		return nil
	}
	return state.NoPersist
}

func (m *Manager) log(level int, format string, args ...interface{}) {
	m.config.Log(level, format, args...)
}
