package shell

import (
	"errors"
	"sync"
)

// ErrClosed is returned by calls made after the executor stopped.
var ErrClosed = errors.New("shell closed")

// ChanSvc is a single-goroutine executor. Everything that touches the store,
// the filesystem or the window manager runs as one of its functions.
type ChanSvc struct {
	queue chan func()
	done  chan struct{}
	stop  sync.Once
}

// NewChanSvc returns an executor that runs once RunSvc is called.
func NewChanSvc() *ChanSvc {
	return &ChanSvc{queue: make(chan func()), done: make(chan struct{})}
}

// SvcSync runs code on s and waits for its result.
func SvcSync[T any](s *ChanSvc, code func() (T, error)) (T, error) {
	result := make(chan struct{})
	var value T
	var err error
	if !Svc(s, func() {
		defer close(result)
		value, err = code()
	}) {
		return value, ErrClosed
	}
	select {
	case <-result:
		return value, err
	case <-s.done:
		// the function may already be running
		select {
		case <-result:
			return value, err
		default:
			return value, ErrClosed
		}
	}
}

// Svc queues code on s without waiting. It reports false when s is stopped.
func Svc(s *ChanSvc, code func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	go func() { // using a goroutine so the channel won't block
		select {
		case s.queue <- code:
		case <-s.done:
		}
	}()
	return true
}

// RunSvc runs the executor loop until StopSvc is called.
func RunSvc(s *ChanSvc) {
	go func() {
		for {
			select {
			case cmd := <-s.queue:
				cmd()
			case <-s.done:
				return
			}
		}
	}()
}

// StopSvc stops the loop. Queued functions that have not started are dropped.
func StopSvc(s *ChanSvc) {
	s.stop.Do(func() { close(s.done) })
}
