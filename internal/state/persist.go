package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/zot/nexus-shell/internal/storage"
)

// ErrPersistence wraps every storage failure reported by the store.
var ErrPersistence = errors.New("persistence failure")

// maxWindowID bounds ids accepted from a snapshot (largest exact float64 integer).
const maxWindowID = 1 << 53

// Snapshot is the persisted subset of the record.
type Snapshot struct {
	Theme           string         `json:"theme"`
	Wallpaper       Wallpaper      `json:"wallpaper"`
	TerminalHistory []string       `json:"terminalHistory"`
	FileSystem      *Tree          `json:"fileSystem"`
	Windows         []WindowRecord `json:"windows"`
	ActiveWindowID  *int           `json:"activeWindowId"`
	NextWindowID    int            `json:"nextWindowId"`
	MaxZIndex       int            `json:"maxZIndex"`
}

// persistedSnapshot decodes each field on its own so one corrupt field falls
// back to its default instead of discarding the whole snapshot.
type persistedSnapshot struct {
	Theme           json.RawMessage `json:"theme"`
	Wallpaper       json.RawMessage `json:"wallpaper"`
	TerminalHistory json.RawMessage `json:"terminalHistory"`
	FileSystem      json.RawMessage `json:"fileSystem"`
	Windows         json.RawMessage `json:"windows"`
	ActiveWindowID  json.RawMessage `json:"activeWindowId"`
}

// persistedWindow is a window entry as found in storage, before validation.
type persistedWindow struct {
	ID          *float64 `json:"id"`
	AppType     string   `json:"appType"`
	Title       string   `json:"title"`
	Icon        string   `json:"icon"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
	ZIndex      *float64 `json:"zIndex"`
	IsMinimized bool     `json:"isMinimized"`
	IsMaximized bool     `json:"isMaximized"`
}

// TakeSnapshot extracts the persisted subset of the current record.
func (s *Store) TakeSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Windows: append([]WindowRecord{}, windowsOf(s.record)...),
	}
	snap.Theme, _ = s.record[FieldTheme].(string)
	snap.Wallpaper, _ = s.record[FieldWallpaper].(Wallpaper)
	snap.TerminalHistory, _ = s.record[FieldTerminalHistory].([]string)
	snap.FileSystem, _ = s.record[FieldFileSystem].(*Tree)
	snap.NextWindowID, _ = s.record[FieldNextWindowID].(int)
	snap.MaxZIndex, _ = s.record[FieldMaxZIndex].(int)
	if active, _ := s.record[FieldActiveWindowID].(int); active > 0 {
		snap.ActiveWindowID = &active
	}
	if snap.TerminalHistory == nil {
		snap.TerminalHistory = []string{}
	}
	return snap
}

// MarshalSnapshot serializes the persisted subset of the record.
func (s *Store) MarshalSnapshot() ([]byte, error) {
	snap := s.TakeSnapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	// The tree is shared with the record, so encode it under the lock.
	return json.Marshal(snap)
}

// SaveToStorage writes the snapshot to the storage backend. Failures are
// logged and returned wrapped in ErrPersistence; the in-memory record stays
// authoritative either way. Without a backend this is a no-op.
func (s *Store) SaveToStorage() error {
	s.mu.Lock()
	backend := s.storage
	key := s.storageKey
	s.mu.Unlock()

	if backend == nil {
		return nil
	}

	data, err := s.MarshalSnapshot()
	if err == nil {
		err = backend.Save(key, data)
	}
	if err != nil {
		s.log(0, "Failed to save state to storage: %v", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log(4, "Saved state (%d bytes)", len(data))
	return nil
}

// LoadFromStorage hydrates the record from the stored snapshot. Windows are
// revalidated and the file tree is merged with the current defaults. Loading
// never triggers a save. It reports whether a snapshot was applied.
func (s *Store) LoadFromStorage() bool {
	s.mu.Lock()
	backend := s.storage
	key := s.storageKey
	now := s.now
	s.mu.Unlock()

	if backend == nil {
		return false
	}

	data, err := backend.Load(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		s.log(0, "Failed to load state from storage: %v", err)
		return false
	}

	p, err := DecodeSnapshot(data, DefaultFileSystem(now()))
	if err != nil {
		s.log(0, "Failed to load state from storage: %v", err)
		return false
	}

	s.SetState(p, NoPersist)
	s.log(1, "Loaded state from storage (%d bytes)", len(data))
	return true
}

// DecodeSnapshot parses a stored snapshot into the fields it can restore.
// Fields that are absent or malformed are left out so the record keeps its
// defaults. The window fields are always present and normalized.
func DecodeSnapshot(data []byte, defaults *Tree) (Partial, error) {
	var raw persistedSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	p := Partial{}

	var theme string
	if json.Unmarshal(raw.Theme, &theme) == nil && theme != "" {
		p[FieldTheme] = theme
	}

	var wallpaper Wallpaper
	if json.Unmarshal(raw.Wallpaper, &wallpaper) == nil && wallpaper.Src != "" {
		p[FieldWallpaper] = wallpaper
	}

	var history []string
	if json.Unmarshal(raw.TerminalHistory, &history) == nil && history != nil {
		if len(history) > MaxTerminalHistory {
			history = history[len(history)-MaxTerminalHistory:]
		}
		p[FieldTerminalHistory] = history
	}

	var tree Tree
	if json.Unmarshal(raw.FileSystem, &tree) == nil && repairTree(&tree) {
		p[FieldFileSystem] = MergeFileSystemDefaults(&tree, defaults)
	}

	var entries []json.RawMessage
	if json.Unmarshal(raw.Windows, &entries) != nil {
		entries = nil
	}
	var active float64
	activeID := 0
	if json.Unmarshal(raw.ActiveWindowID, &active) == nil && validID(active) {
		activeID = int(active)
	}

	n := NormalizeWindows(entries, activeID)
	p[FieldWindows] = n.Windows
	p[FieldActiveWindowID] = n.ActiveWindowID
	p[FieldNextWindowID] = n.NextWindowID
	p[FieldMaxZIndex] = n.MaxZIndex
	return p, nil
}

// NormalizedWindows is a revalidated window collection and its counters.
type NormalizedWindows struct {
	Windows        []WindowRecord
	ActiveWindowID int
	NextWindowID   int
	MaxZIndex      int
}

func validID(v float64) bool {
	return v >= 1 && v <= maxWindowID && v == math.Trunc(v)
}

// NormalizeWindows revalidates persisted window entries: malformed entries
// and duplicate ids are dropped (first occurrence wins), a missing or
// duplicated z-index is reassigned, exactly one window is focused and it is
// topmost, and the id and z-index counters are recomputed from the survivors.
// If activeID does not survive, the last surviving window becomes active.
func NormalizeWindows(entries []json.RawMessage, activeID int) NormalizedWindows {
	seen := make(map[int]bool)
	var windows []WindowRecord
	for _, raw := range entries {
		var pw persistedWindow
		if err := json.Unmarshal(raw, &pw); err != nil {
			continue
		}
		if pw.ID == nil || !validID(*pw.ID) || pw.AppType == "" {
			continue
		}
		id := int(*pw.ID)
		if seen[id] {
			continue
		}
		seen[id] = true

		z := FirstZIndex
		if pw.ZIndex != nil && *pw.ZIndex >= 0 && *pw.ZIndex <= maxWindowID {
			z = int(*pw.ZIndex)
		}
		windows = append(windows, WindowRecord{
			ID:          id,
			AppType:     pw.AppType,
			Title:       pw.Title,
			Icon:        pw.Icon,
			X:           pw.X,
			Y:           pw.Y,
			Width:       pw.Width,
			Height:      pw.Height,
			ZIndex:      z,
			IsMinimized: pw.IsMinimized,
			IsMaximized: pw.IsMaximized,
		})
	}

	out := NormalizedWindows{
		Windows:      []WindowRecord{},
		NextWindowID: 1,
		MaxZIndex:    FirstZIndex,
	}
	if len(windows) == 0 {
		return out
	}

	uniqueZ(windows)

	maxID, maxZ := 0, FirstZIndex
	for _, w := range windows {
		maxID = max(maxID, w.ID)
		maxZ = max(maxZ, w.ZIndex)
	}

	if !seen[activeID] {
		activeID = windows[len(windows)-1].ID
	}
	for i := range windows {
		windows[i].IsFocused = windows[i].ID == activeID
		if windows[i].IsFocused && windows[i].ZIndex < maxZ {
			maxZ++
			windows[i].ZIndex = maxZ
		}
	}

	out.Windows = windows
	out.ActiveWindowID = activeID
	out.NextWindowID = max(1, maxID+1)
	out.MaxZIndex = max(FirstZIndex, maxZ+1)
	return out
}

// uniqueZ renumbers z-indexes upward from FirstZIndex, keeping the existing
// stacking order (ties broken by position), when any two windows share one.
func uniqueZ(windows []WindowRecord) {
	seen := make(map[int]bool, len(windows))
	dup := false
	for _, w := range windows {
		if seen[w.ZIndex] {
			dup = true
			break
		}
		seen[w.ZIndex] = true
	}
	if !dup {
		return
	}

	order := make([]int, len(windows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return windows[order[a]].ZIndex < windows[order[b]].ZIndex
	})
	for rank, i := range order {
		windows[i].ZIndex = FirstZIndex + rank
	}
}
