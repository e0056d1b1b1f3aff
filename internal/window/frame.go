package window

import (
	"sync"
	"sync/atomic"
	"time"
)

// FrameScheduler runs a callback at the next frame boundary. The returned
// function cancels the request if it has not run yet.
type FrameScheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// TimerFrames approximates animation frames with a fixed interval. Post hands
// the callback to the goroutine that owns the store; when nil the callback
// runs on the timer's goroutine.
type TimerFrames struct {
	Interval time.Duration
	Post     func(func())
}

// RequestFrame implements FrameScheduler.
func (f *TimerFrames) RequestFrame(fn func()) func() {
	var cancelled atomic.Bool
	run := func() {
		if !cancelled.Load() {
			fn()
		}
	}
	timer := time.AfterFunc(f.Interval, func() {
		if f.Post != nil {
			f.Post(run)
			return
		}
		run()
	})
	return func() {
		cancelled.Store(true)
		timer.Stop()
	}
}

// ManualFrames is a FrameScheduler advanced explicitly with Tick.
type ManualFrames struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]func()
	order   []int
}

// NewManualFrames returns an idle manual scheduler.
func NewManualFrames() *ManualFrames {
	return &ManualFrames{pending: make(map[int]func())}
}

// RequestFrame implements FrameScheduler.
func (m *ManualFrames) RequestFrame(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.pending[id] = fn
	m.order = append(m.order, id)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.pending, id)
	}
}

// Tick runs every callback requested before the tick and returns how many ran.
// Callbacks requested during the tick wait for the next one.
func (m *ManualFrames) Tick() int {
	m.mu.Lock()
	order := m.order
	m.order = nil
	var due []func()
	for _, id := range order {
		if fn, ok := m.pending[id]; ok {
			due = append(due, fn)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	return len(due)
}

// Pending returns the number of outstanding frame requests.
func (m *ManualFrames) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Throttle coalesces a stream of values into at most one commit per frame.
// Push overwrites the pending value and requests a frame if none is
// outstanding; the frame commits whatever is pending when it runs.
type Throttle[T any] struct {
	frames  FrameScheduler
	commit  func(T)
	pending T
	has     bool
	cancel  func()
	mu      sync.Mutex
}

// NewThrottle returns a throttle committing through commit.
func NewThrottle[T any](frames FrameScheduler, commit func(T)) *Throttle[T] {
	return &Throttle[T]{frames: frames, commit: commit}
}

// Push records v as the value to commit on the next frame.
func (t *Throttle[T]) Push(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = v
	t.has = true
	if t.cancel == nil {
		t.cancel = t.frames.RequestFrame(t.flush)
	}
}

// Flush commits any pending value now and drops the frame request.
func (t *Throttle[T]) Flush() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	t.flush()
}

// Cancel discards any pending value without committing it.
func (t *Throttle[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	var zero T
	t.pending = zero
	t.has = false
}

// Pending reports whether a value is waiting to be committed.
func (t *Throttle[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.has
}

func (t *Throttle[T]) flush() {
	t.mu.Lock()
	t.cancel = nil
	if !t.has {
		t.mu.Unlock()
		return
	}
	v := t.pending
	var zero T
	t.pending = zero
	t.has = false
	t.mu.Unlock()

	t.commit(v)
}
