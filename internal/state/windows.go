package state

// Windows returns a copy of the window collection.
func (s *Store) Windows() []WindowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WindowRecord(nil), windowsOf(s.record)...)
}

// Window returns the record for id.
func (s *Store) Window(id int) (WindowRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range windowsOf(s.record) {
		if w.ID == id {
			return w, true
		}
	}
	return WindowRecord{}, false
}

// ActiveWindowID returns the active window id, or 0 when none is active.
func (s *Store) ActiveWindowID() int {
	return s.Int(FieldActiveWindowID)
}

func windowsOf(r Record) []WindowRecord {
	w, _ := r[FieldWindows].([]WindowRecord)
	return w
}

func indexOf(windows []WindowRecord, id int) int {
	for i, w := range windows {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// AddWindow opens a window: it gets the next id and the next z-index, every
// other window loses focus, and the new one becomes active.
func (s *Store) AddWindow(cfg WindowConfig) WindowRecord {
	var created WindowRecord
	s.update(func(r Record) Partial {
		id, _ := r[FieldNextWindowID].(int)
		z, _ := r[FieldMaxZIndex].(int)
		if id < 1 {
			id = 1
		}
		if z < FirstZIndex {
			z = FirstZIndex
		}

		created = WindowRecord{
			ID:        id,
			AppType:   cfg.AppType,
			Title:     cfg.Title,
			Icon:      cfg.Icon,
			X:         position(cfg.X),
			Y:         position(cfg.Y),
			Width:     extent(cfg.Width),
			Height:    extent(cfg.Height),
			ZIndex:    z,
			IsFocused: true,
		}

		old := windowsOf(r)
		windows := make([]WindowRecord, 0, len(old)+1)
		for _, w := range old {
			w.IsFocused = false
			windows = append(windows, w)
		}
		windows = append(windows, created)

		return Partial{
			FieldWindows:        windows,
			FieldActiveWindowID: created.ID,
			FieldNextWindowID:   id + 1,
			FieldMaxZIndex:      z + 1,
		}
	})
	return created
}

// RemoveWindow closes a window. If it was the active one, the most recently
// added remaining window is focused and raised; otherwise the active window
// is kept. Unknown ids are ignored.
func (s *Store) RemoveWindow(id int) {
	s.update(func(r Record) Partial {
		old := windowsOf(r)
		if indexOf(old, id) < 0 {
			return nil
		}
		windows := make([]WindowRecord, 0, len(old))
		for _, w := range old {
			if w.ID != id {
				windows = append(windows, w)
			}
		}

		active, _ := r[FieldActiveWindowID].(int)
		if active != id && indexOf(windows, active) >= 0 {
			return Partial{FieldWindows: windows}
		}
		if len(windows) == 0 {
			return Partial{FieldWindows: windows, FieldActiveWindowID: 0}
		}

		next := windows[len(windows)-1].ID
		z, _ := r[FieldMaxZIndex].(int)
		windows, z = focusIn(windows, next, z)
		return Partial{
			FieldWindows:        windows,
			FieldActiveWindowID: next,
			FieldMaxZIndex:      z,
		}
	})
}

// UpdateWindow applies patch to one window. Unknown ids are ignored, and so
// is a patch with a non-finite coordinate or a non-positive size.
func (s *Store) UpdateWindow(id int, patch WindowPatch, opts ...Option) {
	if !patch.valid() {
		s.log(1, "Ignoring invalid geometry for window %d", id)
		return
	}
	s.update(func(r Record) Partial {
		windows, i := copyWindows(r, id)
		if i < 0 {
			return nil
		}
		w := &windows[i]
		if patch.Title != nil {
			w.Title = *patch.Title
		}
		if patch.X != nil {
			w.X = Float(*patch.X)
		}
		if patch.Y != nil {
			w.Y = Float(*patch.Y)
		}
		if patch.Width != nil {
			w.Width = Float(*patch.Width)
		}
		if patch.Height != nil {
			w.Height = Float(*patch.Height)
		}
		return Partial{FieldWindows: windows}
	}, opts...)
}

// FocusWindow focuses id, raising it above every other window.
func (s *Store) FocusWindow(id int) {
	s.update(func(r Record) Partial {
		old := windowsOf(r)
		if indexOf(old, id) < 0 {
			return nil
		}
		z, _ := r[FieldMaxZIndex].(int)
		windows, z := focusIn(append([]WindowRecord(nil), old...), id, z)
		return Partial{
			FieldWindows:        windows,
			FieldActiveWindowID: id,
			FieldMaxZIndex:      z,
		}
	})
}

// MinimizeWindow hides a window. Focus is left where it is.
func (s *Store) MinimizeWindow(id int) {
	s.update(func(r Record) Partial {
		windows, i := copyWindows(r, id)
		if i < 0 {
			return nil
		}
		windows[i].IsMinimized = true
		return Partial{FieldWindows: windows}
	})
}

// RestoreWindow un-minimizes a window and focuses it.
func (s *Store) RestoreWindow(id int) {
	s.update(func(r Record) Partial {
		windows, i := copyWindows(r, id)
		if i < 0 {
			return nil
		}
		windows[i].IsMinimized = false
		z, _ := r[FieldMaxZIndex].(int)
		windows, z = focusIn(windows, id, z)
		return Partial{
			FieldWindows:        windows,
			FieldActiveWindowID: id,
			FieldMaxZIndex:      z,
		}
	})
}

// ToggleMaximize flips the maximized flag of a window.
func (s *Store) ToggleMaximize(id int) {
	s.update(func(r Record) Partial {
		windows, i := copyWindows(r, id)
		if i < 0 {
			return nil
		}
		windows[i].IsMaximized = !windows[i].IsMaximized
		return Partial{FieldWindows: windows}
	})
}

// copyWindows returns a copy of the collection and the index of id in it.
func copyWindows(r Record, id int) ([]WindowRecord, int) {
	old := windowsOf(r)
	i := indexOf(old, id)
	if i < 0 {
		return nil, -1
	}
	return append([]WindowRecord(nil), old...), i
}

// focusIn marks id as the only focused window and gives it zIndex z.
// It returns the windows and the next free z-index.
func focusIn(windows []WindowRecord, id, z int) ([]WindowRecord, int) {
	if z < FirstZIndex {
		z = FirstZIndex
	}
	for i := range windows {
		windows[i].IsFocused = windows[i].ID == id
		if windows[i].ID == id {
			windows[i].ZIndex = z
		}
	}
	return windows, z + 1
}
