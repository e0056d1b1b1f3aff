package protocol

import (
	"encoding/json"
	"sync"

	"github.com/zot/nexus-shell/internal/state"
)

// Priority levels for batching
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityMedium Priority = 1
	PriorityLow    Priority = 2
)

// FieldPriority orders fields within a flush: window geometry first so the
// chrome can repaint, telemetry last.
func FieldPriority(key string) Priority {
	switch key {
	case state.FieldWindows, state.FieldActiveWindowID:
		return PriorityHigh
	case state.FieldSessionStart, state.FieldLastActivityAt, state.FieldCommandsExecuted,
		state.FieldWindowsCreated, state.FieldWindowsClosed, state.FieldWindowsFocused,
		state.FieldWindowsMinimized, state.FieldWindowsRestored, state.FieldWindowsMaximized,
		state.FieldWindowsMoved, state.FieldWindowsResized:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// MessageBatcher coalesces field changes by key. The last value queued for a
// key wins; keys keep the order they were first queued in within their priority.
type MessageBatcher struct {
	pending map[string]json.RawMessage
	order   []string
	mu      sync.Mutex
}

// NewMessageBatcher creates a new message batcher.
func NewMessageBatcher() *MessageBatcher {
	return &MessageBatcher{
		pending: make(map[string]json.RawMessage),
	}
}

// QueueValue queues the new value of a field.
func (b *MessageBatcher) QueueValue(key string, value json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pending[key]; !ok {
		b.order = append(b.order, key)
	}
	b.pending[key] = value
}

// QueueField marshals value and queues it.
func (b *MessageBatcher) QueueField(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b.QueueValue(key, data)
	return nil
}

// IsEmpty returns true if no changes are pending.
func (b *MessageBatcher) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) == 0
}

// Flush builds the pending update message and clears pending state.
// Returns nil if no changes are pending.
func (b *MessageBatcher) Flush() *Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}

	changes := make([]Change, 0, len(b.order))
	for p := PriorityHigh; p <= PriorityLow; p++ {
		for _, key := range b.order {
			if FieldPriority(key) == p {
				changes = append(changes, Change{Key: key, Value: b.pending[key]})
			}
		}
	}

	b.pending = make(map[string]json.RawMessage)
	b.order = nil

	msg, _ := NewMessage(MsgUpdate, UpdateMessage{Changes: changes})
	return msg
}

// FlushJSON returns the encoded update message, or nil if nothing is pending.
func (b *MessageBatcher) FlushJSON() ([]byte, error) {
	msg := b.Flush()
	if msg == nil {
		return nil, nil
	}
	return msg.Encode()
}
