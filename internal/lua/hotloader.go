package lua

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zot/nexus-shell/internal/config"
)

// HotLoader watches a script and calls reload after it changes. Editors that
// replace files are handled by watching the containing directory; a symlinked
// script also has its target's directory watched.
type HotLoader struct {
	config  *config.Config
	script  string
	target  string // resolved symlink target, empty when script is a regular file
	watcher *fsnotify.Watcher
	reload  func(path string)
	mu      sync.Mutex

	// Debouncing
	pendingSince  time.Time
	debounceMu    sync.Mutex
	debounceDelay time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewHotLoader creates a hot loader for script. reload is called from the
// loader's goroutine with the script path.
func NewHotLoader(cfg *config.Config, script string, reload func(path string)) (*HotLoader, error) {
	abs, err := filepath.Abs(script)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &HotLoader{
		config:        cfg,
		script:        abs,
		watcher:       watcher,
		reload:        reload,
		debounceDelay: 100 * time.Millisecond,
		done:          make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (h *HotLoader) Start() error {
	if err := h.watcher.Add(filepath.Dir(h.script)); err != nil {
		return err
	}
	h.updateSymlinkWatch()

	go h.eventLoop()
	go h.debounceLoop()

	h.config.Log(1, "HotLoader: watching %s for changes", h.script)
	return nil
}

// Stop stops the hot loader. Calling it more than once is harmless.
func (h *HotLoader) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		close(h.done)
		err = h.watcher.Close()
	})
	return err
}

// updateSymlinkWatch follows the script if it is a symlink.
func (h *HotLoader) updateSymlinkWatch() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.target != "" {
		if filepath.Dir(h.target) != filepath.Dir(h.script) {
			h.watcher.Remove(filepath.Dir(h.target))
		}
		h.target = ""
	}

	info, err := os.Lstat(h.script)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return
	}
	target, err := filepath.EvalSymlinks(h.script)
	if err != nil {
		h.config.Log(2, "HotLoader: cannot resolve symlink %s: %v", h.script, err)
		return
	}
	h.target = target
	if dir := filepath.Dir(target); dir != filepath.Dir(h.script) {
		if err := h.watcher.Add(dir); err != nil {
			h.config.Log(1, "HotLoader: cannot watch %s: %v", dir, err)
			return
		}
		h.config.Log(2, "HotLoader: watching symlink target dir %s", dir)
	}
}

// eventLoop processes file system events.
func (h *HotLoader) eventLoop() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handleEvent(event)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.config.Log(1, "HotLoader: watcher error: %v", err)
		}
	}
}

// handleEvent queues a reload when the script or its target is written or replaced.
func (h *HotLoader) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	h.mu.Lock()
	target := h.target
	h.mu.Unlock()

	if name != h.script && name != target {
		return
	}
	h.config.Log(3, "HotLoader: event %s on %s", event.Op, name)

	if name == h.script && event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		h.updateSymlinkWatch()
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		h.queueReload()
	}
}

func (h *HotLoader) queueReload() {
	h.debounceMu.Lock()
	h.pendingSince = time.Now()
	h.debounceMu.Unlock()
}

// debounceLoop reloads once no change has arrived for debounceDelay.
func (h *HotLoader) debounceLoop() {
	ticker := time.NewTicker(h.debounceDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.processPendingReload()
		}
	}
}

func (h *HotLoader) processPendingReload() {
	h.debounceMu.Lock()
	ready := !h.pendingSince.IsZero() && time.Since(h.pendingSince) >= h.debounceDelay
	if ready {
		h.pendingSince = time.Time{}
	}
	h.debounceMu.Unlock()

	if ready {
		h.reloadScript()
	}
}

// reloadScript calls reload with panic recovery so a bad callback cannot
// take the server down.
func (h *HotLoader) reloadScript() {
	if _, err := os.Stat(h.script); err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.config.Log(0, "HotLoader: PANIC reloading %s: %v", h.script, r)
		}
	}()

	h.config.Log(1, "HotLoader: reloading %s", h.script)
	h.reload(h.script)
}
