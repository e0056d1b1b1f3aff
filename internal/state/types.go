package state

import "math"

// Field names of the store record.
const (
	FieldWindows          = "windows"
	FieldActiveWindowID   = "activeWindowId"
	FieldNextWindowID     = "nextWindowId"
	FieldMaxZIndex        = "maxZIndex"
	FieldCurrentDirectory = "currentDirectory"
	FieldFileSystem       = "fileSystem"
	FieldTheme            = "theme"
	FieldWallpaper        = "wallpaper"
	FieldTerminalHistory  = "terminalHistory"
	FieldStartMenuOpen    = "startMenuOpen"
	FieldContextMenuOpen  = "contextMenuOpen"

	// Telemetry, never persisted.
	FieldSessionStart     = "sessionStart"
	FieldLastActivityAt   = "lastActivityAt"
	FieldCommandsExecuted = "commandsExecuted"
	FieldWindowsCreated   = "windowsCreated"
	FieldWindowsClosed    = "windowsClosed"
	FieldWindowsFocused   = "windowsFocused"
	FieldWindowsMinimized = "windowsMinimized"
	FieldWindowsRestored  = "windowsRestored"
	FieldWindowsMaximized = "windowsMaximized"
	FieldWindowsMoved     = "windowsMoved"
	FieldWindowsResized   = "windowsResized"

	// Wildcard subscribes to every mutation.
	Wildcard = "*"
)

const (
	// FirstZIndex is the lowest z-index handed out to a window.
	FirstZIndex = 100

	// MaxTerminalHistory bounds the stored terminal history.
	MaxTerminalHistory = 100
)

// Record is the full set of store fields.
type Record map[string]any

// Partial is a set of fields to merge into the record.
type Partial map[string]any

// Listener receives the new and previous value of a field.
// Wildcard listeners receive the new and previous Record.
type Listener func(value, prev any)

// Option modifies a single SetState call.
type Option func(*setOptions)

type setOptions struct {
	persist bool
}

// NoPersist suppresses the storage write that normally follows a mutation.
func NoPersist(o *setOptions) {
	o.persist = false
}

func applyOptions(opts []Option) setOptions {
	o := setOptions{persist: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Wallpaper describes the desktop background.
type Wallpaper struct {
	Type string `json:"type"`
	Src  string `json:"src"`
	ID   string `json:"id,omitempty"`
}

// DefaultWallpaper is the background of a fresh session.
var DefaultWallpaper = Wallpaper{Type: "image", Src: "assets/wallpapers/1.jpg", ID: "1.jpg"}

// WindowRecord is the serializable state of one open window.
// Nil geometry means "auto-center".
type WindowRecord struct {
	ID          int      `json:"id"`
	AppType     string   `json:"appType"`
	Title       string   `json:"title,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	ZIndex      int      `json:"zIndex"`
	IsMinimized bool     `json:"isMinimized"`
	IsMaximized bool     `json:"isMaximized"`
	IsFocused   bool     `json:"isFocused"`
}

// WindowConfig describes a window to open.
type WindowConfig struct {
	AppType string   `json:"appType"`
	Title   string   `json:"title,omitempty"`
	Icon    string   `json:"icon,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Width   *float64 `json:"width,omitempty"`
	Height  *float64 `json:"height,omitempty"`
}

// WindowPatch holds the fields UpdateWindow may change. Nil fields are left alone.
type WindowPatch struct {
	Title  *string
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
}

// ValidPosition reports whether x and y can be stored as a window position.
func ValidPosition(x, y float64) bool {
	return isFinite(x) && isFinite(y)
}

// ValidSize reports whether width and height can be stored as a window size.
func ValidSize(width, height float64) bool {
	return isFinite(width) && isFinite(height) && width > 0 && height > 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// valid reports whether every geometry field set in the patch is storable.
func (p WindowPatch) valid() bool {
	if (p.X != nil && !isFinite(*p.X)) || (p.Y != nil && !isFinite(*p.Y)) {
		return false
	}
	if (p.Width != nil && (!isFinite(*p.Width) || *p.Width <= 0)) ||
		(p.Height != nil && (!isFinite(*p.Height) || *p.Height <= 0)) {
		return false
	}
	return true
}

// position returns v when it is a finite coordinate, otherwise nil (auto).
func position(v *float64) *float64 {
	if v == nil || !isFinite(*v) {
		return nil
	}
	return Float(*v)
}

// extent returns v when it is a finite positive length, otherwise nil (auto).
func extent(v *float64) *float64 {
	if v == nil || !isFinite(*v) || *v <= 0 {
		return nil
	}
	return Float(*v)
}

// Float returns a pointer to v, for geometry fields.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
