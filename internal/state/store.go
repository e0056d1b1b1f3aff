// Package state implements the central reactive store of the desktop shell.
// Windows, the current directory, the file tree and session preferences all
// live in one record. Every mutation notifies subscribers synchronously, in
// the calling goroutine, and by default persists the snapshot.
package state

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/storage"
)

// DefaultStorageKey is the key the persisted snapshot lives under.
const DefaultStorageKey = "nexusShellState"

// listener is one registered callback. Removal is by handle, so the same
// function subscribed twice yields two independent registrations.
type listener struct {
	id      uint64
	fn      Listener
	removed atomic.Bool
}

// Store holds the shell's record and its subscribers.
type Store struct {
	record     Record
	listeners  map[string][]*listener
	nextSub    uint64
	storage    storage.Backend
	storageKey string
	config     *config.Config
	now        func() time.Time
	mu         sync.Mutex
}

// NewStore creates a store with every field at its default value.
// cfg may be nil.
func NewStore(cfg *config.Config) *Store {
	s := &Store{
		listeners:  make(map[string][]*listener),
		storageKey: DefaultStorageKey,
		config:     cfg,
		now:        time.Now,
	}
	if cfg != nil && cfg.Storage.Key != "" {
		s.storageKey = cfg.Storage.Key
	}
	s.record = s.defaults()
	return s
}

// defaults returns a fresh record with every field at its default.
func (s *Store) defaults() Record {
	now := s.now()
	cwd := "/home"
	if s.config != nil && s.config.Desktop.StartDirectory != "" {
		cwd = s.config.Desktop.StartDirectory
	}
	return Record{
		FieldWindows:          []WindowRecord{},
		FieldActiveWindowID:   0,
		FieldNextWindowID:     1,
		FieldMaxZIndex:        FirstZIndex,
		FieldCurrentDirectory: cwd,
		FieldFileSystem:       DefaultFileSystem(now),
		FieldTheme:            "dark",
		FieldWallpaper:        DefaultWallpaper,
		FieldTerminalHistory:  []string{},
		FieldStartMenuOpen:    false,
		FieldContextMenuOpen:  false,
		FieldSessionStart:     now.UnixMilli(),
		FieldLastActivityAt:   now.UnixMilli(),
		FieldCommandsExecuted: 0,
		FieldWindowsCreated:   0,
		FieldWindowsClosed:    0,
		FieldWindowsFocused:   0,
		FieldWindowsMinimized: 0,
		FieldWindowsRestored:  0,
		FieldWindowsMaximized: 0,
		FieldWindowsMoved:     0,
		FieldWindowsResized:   0,
	}
}

// SetStorage sets the storage backend for persistence.
func (s *Store) SetStorage(backend storage.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage = backend
}

// SetClock replaces the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Now returns the store clock's current time in Unix milliseconds.
func (s *Store) Now() int64 {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	return now().UnixMilli()
}

// Get returns the current value of a field, or nil for unknown keys.
func (s *Store) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record[key]
}

// Snapshot returns a shallow copy of the whole record.
func (s *Store) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyRecord()
}

func (s *Store) copyRecord() Record {
	cp := make(Record, len(s.record))
	for k, v := range s.record {
		cp[k] = v
	}
	return cp
}

// SetState shallow-merges p into the record, then notifies the listeners of
// every key in p with (new, previous), then wildcard listeners with the full
// records. A field written with the same value still notifies: writing back a
// mutated tree is how its subscribers learn about the change.
func (s *Store) SetState(p Partial, opts ...Option) {
	s.update(func(Record) Partial { return p }, opts...)
}

// update computes a partial from the current record and applies it in one
// critical section, then notifies outside the lock so listeners may call back
// into the store. A nil or empty partial is a no-op.
func (s *Store) update(compute func(Record) Partial, opts ...Option) {
	o := applyOptions(opts)

	s.mu.Lock()
	p := compute(s.record)
	if len(p) == 0 {
		s.mu.Unlock()
		return
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	wildcard := append([]*listener(nil), s.listeners[Wildcard]...)
	var prev Record
	if len(wildcard) > 0 {
		prev = s.copyRecord()
	}

	type delivery struct {
		value, prev any
		targets     []*listener
	}
	deliveries := make([]delivery, 0, len(keys))
	for _, k := range keys {
		old := s.record[k]
		s.record[k] = p[k]
		if targets := s.listeners[k]; len(targets) > 0 {
			deliveries = append(deliveries, delivery{
				value:   p[k],
				prev:    old,
				targets: append([]*listener(nil), targets...),
			})
		}
	}

	var next Record
	if len(wildcard) > 0 {
		next = s.copyRecord()
	}
	s.mu.Unlock()

	s.log(3, "setState %v persist=%v", keys, o.persist)

	for _, d := range deliveries {
		for _, l := range d.targets {
			if !l.removed.Load() {
				l.fn(d.value, d.prev)
			}
		}
	}
	for _, l := range wildcard {
		if !l.removed.Load() {
			l.fn(next, prev)
		}
	}

	if o.persist {
		s.SaveToStorage()
	}
}

// Subscribe registers fn for changes to key ("*" for every mutation) and
// returns a function that removes this registration. Calling it more than
// once is harmless.
func (s *Store) Subscribe(key string, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	l := &listener{id: s.nextSub, fn: fn}
	s.listeners[key] = append(s.listeners[key], l)
	s.mu.Unlock()

	return func() {
		if l.removed.Swap(true) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.listeners[key]
		for i, other := range list {
			if other.id == l.id {
				s.listeners[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(s.listeners[key]) == 0 {
			delete(s.listeners, key)
		}
	}
}

// ListenerCount returns the number of listeners registered for key.
func (s *Store) ListenerCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[key])
}

// BumpCounter adds delta to a numeric field. Missing or non-numeric fields count from zero.
func (s *Store) BumpCounter(key string, delta int, opts ...Option) {
	s.update(func(r Record) Partial {
		current, _ := r[key].(int)
		return Partial{key: current + delta}
	}, opts...)
}

// Touch records user activity without persisting.
func (s *Store) Touch() {
	s.SetState(Partial{FieldLastActivityAt: s.Now()}, NoPersist)
}

// AddToTerminalHistory appends a command, keeping the most recent
// MaxTerminalHistory entries, and counts it as executed.
func (s *Store) AddToTerminalHistory(command string) {
	s.update(func(r Record) Partial {
		old, _ := r[FieldTerminalHistory].([]string)
		history := make([]string, 0, len(old)+1)
		history = append(history, old...)
		history = append(history, command)
		if len(history) > MaxTerminalHistory {
			history = history[len(history)-MaxTerminalHistory:]
		}
		executed, _ := r[FieldCommandsExecuted].(int)
		return Partial{
			FieldTerminalHistory:  history,
			FieldCommandsExecuted: executed + 1,
		}
	})
}

// Int returns a numeric field, or zero.
func (s *Store) Int(key string) int {
	v, _ := s.Get(key).(int)
	return v
}

// Theme returns the current theme name.
func (s *Store) Theme() string {
	v, _ := s.Get(FieldTheme).(string)
	return v
}

// CurrentDirectory returns the working directory, "/" if unset.
func (s *Store) CurrentDirectory() string {
	if v, ok := s.Get(FieldCurrentDirectory).(string); ok && v != "" {
		return v
	}
	return "/"
}

// FileSystem returns the live file tree. Callers that mutate it must write it
// back with SetState.
func (s *Store) FileSystem() *Tree {
	t, _ := s.Get(FieldFileSystem).(*Tree)
	return t
}

// TerminalHistory returns a copy of the terminal history.
func (s *Store) TerminalHistory() []string {
	h, _ := s.Get(FieldTerminalHistory).([]string)
	return append([]string(nil), h...)
}

// Reset deletes the persisted snapshot and restores every default.
// Subscribers are not notified; callers rebuild from the new record.
func (s *Store) Reset() {
	s.mu.Lock()
	backend := s.storage
	key := s.storageKey
	s.record = s.defaults()
	s.mu.Unlock()

	if backend != nil {
		if err := backend.Delete(key); err != nil {
			s.log(0, "Failed to clear stored state: %v", err)
		}
	}
}

func (s *Store) log(level int, format string, args ...interface{}) {
	s.config.Log(level, format, args...)
}
