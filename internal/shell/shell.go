// Package shell assembles one desktop: the state store and its storage
// backend, the virtual filesystem, the window manager and the Lua runtime.
// Every call into them is serialized on a single executor goroutine.
package shell

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/lua"
	"github.com/zot/nexus-shell/internal/state"
	"github.com/zot/nexus-shell/internal/storage"
	"github.com/zot/nexus-shell/internal/vfs"
	"github.com/zot/nexus-shell/internal/window"
)

// Shell is a running desktop. Store, FS, Windows and Lua must only be used
// from functions passed to Do, Call or Post.
type Shell struct {
	Config  *config.Config
	Store   *state.Store
	FS      *vfs.FileSystem
	Windows *window.Manager
	Lua     *lua.Runtime

	backend storage.Backend
	hot     *lua.HotLoader
	svc     *ChanSvc
	stop    chan struct{}
	once    sync.Once
}

// Options adjusts how New builds the desktop.
type Options struct {
	// Frames overrides the timer-driven frame scheduler.
	Frames window.FrameScheduler

	// Surfaces attaches a surface to every window instance.
	Surfaces window.SurfaceFactory
}

// Open creates the configured storage backend and a shell on top of it.
func Open(cfg *config.Config) (*Shell, error) {
	backend, err := storage.Open(storage.Options{
		Type: cfg.Storage.Type,
		Path: cfg.Storage.Path,
		URL:  cfg.Storage.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return New(cfg, backend, Options{}), nil
}

// New builds a shell over backend, restores the persisted session and starts
// the executor and autosave. The shell owns backend and closes it; a nil
// backend runs without persistence.
func New(cfg *config.Config, backend storage.Backend, opts Options) *Shell {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Shell{
		Config:  cfg,
		backend: backend,
		svc:     NewChanSvc(),
		stop:    make(chan struct{}),
	}

	s.Store = state.NewStore(cfg)
	s.Store.SetStorage(backend)
	if s.Store.LoadFromStorage() {
		s.log(0, "Restored session from %s storage", cfg.Storage.Type)
	}

	s.FS = vfs.New(s.Store)
	frames := opts.Frames
	if frames == nil {
		frames = &window.TimerFrames{Interval: cfg.Desktop.FrameInterval.Duration(), Post: s.Post}
	}
	var wopts []window.Option
	if opts.Surfaces != nil {
		wopts = append(wopts, window.WithSurfaces(opts.Surfaces))
	}
	s.Windows = window.NewManager(s.Store, frames, cfg, wopts...)
	s.Lua = lua.NewRuntime(cfg, s.Store, s.FS, s.Windows)

	RunSvc(s.svc)
	s.startAutosave(cfg.Desktop.AutosaveInterval.Duration())
	return s
}

// RunStartup runs the configured Lua startup script. A missing script is
// not an error.
func (s *Shell) RunStartup() error {
	if !s.Config.Lua.Enabled || s.Config.Lua.Startup == "" {
		return nil
	}
	path := s.Config.Lua.Startup
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.log(1, "No Lua startup script at %s", path)
		return nil
	}
	_, err := Call(s, func() (struct{}, error) {
		return struct{}{}, s.Lua.DoFile(path)
	})
	return err
}

// WatchStartup re-runs the startup script whenever it changes, until Close.
// Call it once, before the shell is shared.
func (s *Shell) WatchStartup() error {
	if !s.Config.Lua.Enabled || s.Config.Lua.Startup == "" {
		return nil
	}
	h, err := lua.NewHotLoader(s.Config, s.Config.Lua.Startup, func(path string) {
		s.Post(func() {
			if err := s.Lua.DoFile(path); err != nil {
				s.log(0, "Startup script failed: %v", err)
			}
		})
	})
	if err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		h.Stop()
		return err
	}
	s.hot = h
	return nil
}

// Do runs fn on the executor and waits for it. It must not be called from
// the executor itself.
func (s *Shell) Do(fn func()) error {
	_, err := Call(s, func() (struct{}, error) {
		fn()
		return struct{}{}, nil
	})
	return err
}

// Call runs fn on the executor and returns its result.
func Call[T any](s *Shell, fn func() (T, error)) (T, error) {
	return SvcSync(s.svc, fn)
}

// Post queues fn on the executor without waiting. Posts after Close are dropped.
func (s *Shell) Post(fn func()) {
	Svc(s.svc, fn)
}

// Reset deletes the persisted session and returns every field to its
// default, notifying subscribers so windows and clients rebuild.
func (s *Shell) Reset() error {
	return s.Do(func() {
		s.Store.Reset()
		s.FS.ClearHistory()
		s.Store.SetState(state.Partial(s.Store.Snapshot()), state.NoPersist)
	})
}

func (s *Shell) startAutosave(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Post(func() {
					s.Store.SaveToStorage()
				})
			case <-s.stop:
				return
			}
		}
	}()
}

// Close saves the session, tears down windows and the Lua VM, stops the
// executor and closes storage. It is safe to call more than once.
func (s *Shell) Close() error {
	var err error
	s.once.Do(func() {
		if s.hot != nil {
			s.hot.Stop()
		}
		close(s.stop)
		s.Do(func() {
			s.Windows.Close()
			err = s.Store.SaveToStorage()
			s.Lua.Close()
		})
		StopSvc(s.svc)
		if s.backend != nil {
			if cerr := s.backend.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		s.log(1, "Shell closed")
	})
	return err
}

func (s *Shell) log(level int, format string, args ...interface{}) {
	s.Config.Log(level, format, args...)
}
