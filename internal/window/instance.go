package window

import (
	"math"
	"strings"
	"sync"

	"github.com/zot/nexus-shell/internal/state"
)

// Default size of a window whose record leaves it unset.
const (
	DefaultWidth  = 600
	DefaultHeight = 400

	// minMargin keeps auto-centered windows off the viewport edge.
	minMargin = 20
)

// Mode is the interaction state of a window.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Direction is the compass edge or corner a resize is anchored on.
type Direction string

const (
	North     Direction = "n"
	South     Direction = "s"
	East      Direction = "e"
	West      Direction = "w"
	NorthEast Direction = "ne"
	NorthWest Direction = "nw"
	SouthEast Direction = "se"
	SouthWest Direction = "sw"
)

// Valid reports whether d is one of the eight resize directions.
func (d Direction) Valid() bool {
	switch d {
	case North, South, East, West, NorthEast, NorthWest, SouthEast, SouthWest:
		return true
	}
	return false
}

func (d Direction) has(edge string) bool {
	return strings.Contains(string(d), edge)
}

// Rect is a window's on-screen geometry.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the desktop area windows are confined to. The taskbar band at
// the bottom is reserved.
type Viewport struct {
	Width   float64
	Height  float64
	Taskbar float64
}

// Committer receives the geometry an instance settles on.
type Committer interface {
	FocusWindow(id int)
	UpdateWindowPosition(id int, x, y float64, persist bool)
	UpdateWindowSize(id int, width, height float64, persist bool)
}

// Surface is the visual side of a window, drawn by an external chrome.
type Surface interface {
	Render(rec state.WindowRecord, bounds Rect)
	Close()
}

type point struct{ x, y float64 }
type size struct{ w, h float64 }

// Instance is the live counterpart of a WindowRecord. It owns pointer-driven
// drag and resize: geometry is applied immediately to its bounds and surface,
// and committed to the store at most once per frame, then once more with
// persistence when the pointer is released.
type Instance struct {
	id        int
	rec       state.WindowRecord
	bounds    Rect
	mode      Mode
	dir       Direction
	grabX     float64 // pointer offset inside the window while dragging
	grabY     float64
	originX   float64 // pointer position when a resize started
	originY   float64
	start     Rect
	viewport  Viewport
	minWidth  float64
	minHeight float64
	committer Committer
	surface   Surface
	positions *Throttle[point]
	sizes     *Throttle[size]
	destroyed bool
	mu        sync.Mutex
}

func newInstance(rec state.WindowRecord, committer Committer, frames FrameScheduler, viewport Viewport, minWidth, minHeight float64, surface Surface) *Instance {
	inst := &Instance{
		id:        rec.ID,
		rec:       rec,
		viewport:  viewport,
		minWidth:  minWidth,
		minHeight: minHeight,
		committer: committer,
		surface:   surface,
	}
	inst.bounds = inst.boundsFor(rec)
	inst.positions = NewThrottle(frames, func(p point) {
		committer.UpdateWindowPosition(inst.id, p.x, p.y, false)
	})
	inst.sizes = NewThrottle(frames, func(s size) {
		committer.UpdateWindowSize(inst.id, s.w, s.h, false)
	})
	return inst
}

// ID returns the window id.
func (w *Instance) ID() int {
	return w.id
}

// Record returns the last record the instance was updated with.
func (w *Instance) Record() state.WindowRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rec
}

// Bounds returns the geometry currently shown.
func (w *Instance) Bounds() Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

// Mode returns the interaction state.
func (w *Instance) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// boundsFor derives geometry from a record. Unset size falls back to the
// default and unset position centers the window.
func (w *Instance) boundsFor(rec state.WindowRecord) Rect {
	if rec.IsMaximized {
		return Rect{Width: w.viewport.Width, Height: w.viewport.Height - w.viewport.Taskbar}
	}
	r := Rect{Width: DefaultWidth, Height: DefaultHeight}
	if finite(rec.Width) && *rec.Width > 0 {
		r.Width = *rec.Width
	}
	if finite(rec.Height) && *rec.Height > 0 {
		r.Height = *rec.Height
	}
	r.X = math.Max(minMargin, (w.viewport.Width-r.Width)/2)
	r.Y = math.Max(minMargin, (w.viewport.Height-r.Height)/2-w.viewport.Taskbar)
	if finite(rec.X) {
		r.X = *rec.X
	}
	if finite(rec.Y) {
		r.Y = *rec.Y
	}
	return r
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// Update applies a new record. While a drag or resize is in progress the
// record's geometry is ignored so stale commits cannot snap the window back.
func (w *Instance) Update(rec state.WindowRecord) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.rec = rec
	if w.mode == Idle {
		w.bounds = w.boundsFor(rec)
	}
	if rec.IsMaximized && w.mode != Idle {
		w.mode = Idle
		w.positions.Cancel()
		w.sizes.Cancel()
		w.bounds = w.boundsFor(rec)
	}
	bounds := w.bounds
	w.mu.Unlock()

	w.render(rec, bounds)
}

func (w *Instance) render(rec state.WindowRecord, bounds Rect) {
	if w.surface != nil {
		w.surface.Render(rec, bounds)
	}
}

// Destroy tears the instance down. Pending commits are discarded.
func (w *Instance) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.mode = Idle
	w.mu.Unlock()

	w.positions.Cancel()
	w.sizes.Cancel()
	if w.surface != nil {
		w.surface.Close()
	}
}

// Focus asks the manager to focus this window.
func (w *Instance) Focus() {
	w.committer.FocusWindow(w.id)
}

// StartDrag begins moving the window from a titlebar press at pointer (px, py).
// It reports false when the window is maximized or already interacting.
func (w *Instance) StartDrag(px, py float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed || w.rec.IsMaximized || w.mode != Idle {
		return false
	}
	w.mode = Dragging
	w.grabX = px - w.bounds.X
	w.grabY = py - w.bounds.Y
	return true
}

// StartResize begins resizing from the given edge or corner.
func (w *Instance) StartResize(dir Direction, px, py float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed || w.rec.IsMaximized || w.mode != Idle || !dir.Valid() {
		return false
	}
	w.mode = Resizing
	w.dir = dir
	w.originX = px
	w.originY = py
	w.start = w.bounds
	return true
}

// PointerMove tracks the pointer during a drag or resize. The new geometry is
// shown at once and committed without persistence on the next frame.
func (w *Instance) PointerMove(px, py float64) {
	w.mu.Lock()
	mode := w.mode
	dir := w.dir
	switch mode {
	case Dragging:
		w.bounds.X, w.bounds.Y = w.clampPosition(px-w.grabX, py-w.grabY, w.bounds.Width, w.bounds.Height)
	case Resizing:
		w.bounds = w.resized(px-w.originX, py-w.originY)
	default:
		w.mu.Unlock()
		return
	}
	rec, bounds := w.rec, w.bounds
	w.mu.Unlock()

	w.render(rec, bounds)
	if mode == Dragging || dir.has("n") || dir.has("w") {
		w.positions.Push(point{bounds.X, bounds.Y})
	}
	if mode == Resizing {
		w.sizes.Push(size{bounds.Width, bounds.Height})
	}
}

// PointerUp ends the interaction: frame-pending commits are flushed and the
// final geometry is committed once with persistence.
func (w *Instance) PointerUp() {
	w.mu.Lock()
	mode := w.mode
	dir := w.dir
	bounds := w.bounds
	w.mu.Unlock()
	if mode == Idle {
		return
	}

	w.positions.Flush()
	w.sizes.Flush()
	if mode == Dragging || dir.has("n") || dir.has("w") {
		w.committer.UpdateWindowPosition(w.id, bounds.X, bounds.Y, true)
	}
	if mode == Resizing {
		w.committer.UpdateWindowSize(w.id, bounds.Width, bounds.Height, true)
	}

	w.mu.Lock()
	w.mode = Idle
	w.dir = ""
	w.mu.Unlock()
}

// clampPosition keeps a window of the given size inside the viewport, above
// the taskbar band.
func (w *Instance) clampPosition(x, y, width, height float64) (float64, float64) {
	maxX := w.viewport.Width - width
	maxY := w.viewport.Height - height - w.viewport.Taskbar
	return math.Max(0, math.Min(x, maxX)), math.Max(0, math.Min(y, maxY))
}

// resized computes the geometry for a pointer delta from the resize origin.
// The opposite edge stays fixed. The result is kept inside the viewport and
// at least the minimum size, the minimum winning when both cannot hold.
func (w *Instance) resized(dx, dy float64) Rect {
	s := w.start
	left, top := s.X, s.Y
	right, bottom := s.X+s.Width, s.Y+s.Height
	floor := w.viewport.Height - w.viewport.Taskbar

	if w.dir.has("e") {
		right = math.Min(right+dx, w.viewport.Width)
		right = math.Max(right, left+w.minWidth)
	}
	if w.dir.has("w") {
		left = math.Max(left+dx, 0)
		left = math.Min(left, right-w.minWidth)
	}
	if w.dir.has("s") {
		bottom = math.Min(bottom+dy, floor)
		bottom = math.Max(bottom, top+w.minHeight)
	}
	if w.dir.has("n") {
		top = math.Max(top+dy, 0)
		top = math.Min(top, bottom-w.minHeight)
	}
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}
