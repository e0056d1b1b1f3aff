package state

import "testing"

func addWindows(s *Store, n int) []WindowRecord {
	var out []WindowRecord
	for i := 0; i < n; i++ {
		out = append(out, s.AddWindow(WindowConfig{AppType: "terminal", Title: "Terminal"}))
	}
	return out
}

func focusedCount(windows []WindowRecord) int {
	n := 0
	for _, w := range windows {
		if w.IsFocused {
			n++
		}
	}
	return n
}

// TestAddWindow verifies ids, z-order and focus of new windows
func TestAddWindow(t *testing.T) {
	s := NewStore(nil)
	created := addWindows(s, 3)

	for i, w := range created {
		if w.ID != i+1 {
			t.Errorf("Expected id %d, got %d", i+1, w.ID)
		}
		if w.ZIndex != FirstZIndex+i {
			t.Errorf("Expected zIndex %d, got %d", FirstZIndex+i, w.ZIndex)
		}
	}
	if s.ActiveWindowID() != 3 {
		t.Errorf("Expected window 3 active, got %d", s.ActiveWindowID())
	}
	if s.Int(FieldNextWindowID) != 4 || s.Int(FieldMaxZIndex) != FirstZIndex+3 {
		t.Errorf("Unexpected counters: next=%d maxZ=%d", s.Int(FieldNextWindowID), s.Int(FieldMaxZIndex))
	}
	windows := s.Windows()
	if focusedCount(windows) != 1 || !windows[2].IsFocused {
		t.Error("Expected only the newest window focused")
	}
}

// TestFocusRaises verifies focusing raises the window above all others
func TestFocusRaises(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 3)

	s.FocusWindow(1)

	w, _ := s.Window(1)
	for _, other := range s.Windows() {
		if other.ID != 1 && other.ZIndex >= w.ZIndex {
			t.Errorf("Window %d (z=%d) not below focused window (z=%d)", other.ID, other.ZIndex, w.ZIndex)
		}
	}
	if s.ActiveWindowID() != 1 || !w.IsFocused {
		t.Error("Expected window 1 active and focused")
	}
	if focusedCount(s.Windows()) != 1 {
		t.Error("Expected exactly one focused window")
	}
}

// TestCloseInactiveKeepsActive verifies closing another window keeps the active one
func TestCloseInactiveKeepsActive(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 3)
	s.FocusWindow(1)

	s.RemoveWindow(2)

	if s.ActiveWindowID() != 1 {
		t.Errorf("Expected window 1 to stay active, got %d", s.ActiveWindowID())
	}
	if len(s.Windows()) != 2 {
		t.Errorf("Expected 2 windows, got %d", len(s.Windows()))
	}
	if w, _ := s.Window(1); !w.IsFocused {
		t.Error("Expected window 1 to stay focused")
	}
}

// TestCloseActiveFocusesLast verifies the most recently added window takes over
func TestCloseActiveFocusesLast(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 3)
	s.FocusWindow(3)
	s.FocusWindow(2)

	s.RemoveWindow(2)

	if s.ActiveWindowID() != 3 {
		t.Errorf("Expected window 3 active, got %d", s.ActiveWindowID())
	}
	w3, _ := s.Window(3)
	w1, _ := s.Window(1)
	if !w3.IsFocused || w3.ZIndex <= w1.ZIndex {
		t.Error("Expected window 3 focused and on top")
	}
}

// TestCloseLastWindow verifies the active id clears when nothing is left
func TestCloseLastWindow(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 1)

	s.RemoveWindow(1)

	if s.ActiveWindowID() != 0 {
		t.Errorf("Expected no active window, got %d", s.ActiveWindowID())
	}
	if s.Int(FieldNextWindowID) != 2 {
		t.Errorf("Expected ids never to be reused, next=%d", s.Int(FieldNextWindowID))
	}
}

// TestUnknownIDsAreIgnored verifies operations on missing windows do nothing
func TestUnknownIDsAreIgnored(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 1)
	calls := 0
	s.Subscribe(FieldWindows, func(value, prev any) { calls++ })

	s.RemoveWindow(42)
	s.FocusWindow(42)
	s.MinimizeWindow(42)
	s.RestoreWindow(42)
	s.ToggleMaximize(42)
	s.UpdateWindow(42, WindowPatch{X: Float(1)})

	if calls != 0 {
		t.Errorf("Expected no notifications, got %d", calls)
	}
}

// TestMinimizeRestore verifies restore brings a window back and focuses it
func TestMinimizeRestore(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 2)

	s.MinimizeWindow(1)
	if w, _ := s.Window(1); !w.IsMinimized {
		t.Fatal("Expected window 1 minimized")
	}
	if s.ActiveWindowID() != 2 {
		t.Errorf("Expected minimize to leave focus alone, got %d", s.ActiveWindowID())
	}

	calls := 0
	s.Subscribe(FieldWindows, func(value, prev any) { calls++ })
	s.RestoreWindow(1)

	w, _ := s.Window(1)
	if w.IsMinimized || !w.IsFocused || s.ActiveWindowID() != 1 {
		t.Errorf("Expected window 1 restored and focused: %+v", w)
	}
	if calls != 1 {
		t.Errorf("Expected restore to be a single mutation, got %d", calls)
	}
}

// TestToggleMaximize verifies the flag flips
func TestToggleMaximize(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 1)

	s.ToggleMaximize(1)
	if w, _ := s.Window(1); !w.IsMaximized {
		t.Error("Expected maximized")
	}
	s.ToggleMaximize(1)
	if w, _ := s.Window(1); w.IsMaximized {
		t.Error("Expected not maximized")
	}
}

// TestUpdateWindow verifies partial geometry updates
func TestUpdateWindow(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 1)

	s.UpdateWindow(1, WindowPatch{X: Float(10), Y: Float(20)}, NoPersist)
	s.UpdateWindow(1, WindowPatch{Width: Float(300), Title: String("Renamed")}, NoPersist)

	w, _ := s.Window(1)
	if w.X == nil || *w.X != 10 || w.Y == nil || *w.Y != 20 {
		t.Errorf("Unexpected position: %v %v", w.X, w.Y)
	}
	if w.Width == nil || *w.Width != 300 || w.Height != nil {
		t.Errorf("Unexpected size: %v %v", w.Width, w.Height)
	}
	if w.Title != "Renamed" {
		t.Errorf("Expected title Renamed, got %s", w.Title)
	}
}

// TestWindowsReturnsCopy verifies callers cannot mutate the record
func TestWindowsReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	addWindows(s, 1)

	windows := s.Windows()
	windows[0].Title = "changed"

	if w, _ := s.Window(1); w.Title == "changed" {
		t.Error("Expected Windows to return a copy")
	}
}
