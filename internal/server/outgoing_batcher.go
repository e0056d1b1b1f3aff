// Package server serves the desktop to the browser chrome over HTTP and
// WebSocket.
package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/zot/nexus-shell/internal/protocol"
)

// DefaultDebounce is how long field changes gather before they are sent.
const DefaultDebounce = 10 * time.Millisecond

// MessageSender sends protocol messages and logs.
type MessageSender interface {
	Send(connectionID string, msg *protocol.Message) error
	Log(level int, format string, args ...interface{})
}

// OutgoingBatcher gathers field changes for one connection and sends them as
// a single update once the debounce interval passes. Changes to the same
// field within one batch collapse to the latest value.
type OutgoingBatcher struct {
	mu               sync.Mutex
	connectionID     string
	changes          *protocol.MessageBatcher
	debounceTimer    *time.Timer
	debounceInterval time.Duration
	sender           MessageSender
	batchCount       int
}

// NewOutgoingBatcher creates a batcher sending to connectionID through sender.
func NewOutgoingBatcher(connectionID string, sender MessageSender, debounce time.Duration) *OutgoingBatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &OutgoingBatcher{
		connectionID:     connectionID,
		changes:          protocol.NewMessageBatcher(),
		debounceInterval: debounce,
		sender:           sender,
	}
}

// Queue adds an encoded field value and starts the debounce timer.
func (b *OutgoingBatcher) Queue(key string, value json.RawMessage) {
	b.changes.QueueValue(key, value)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Only start timer if not already running
	if b.debounceTimer == nil {
		b.debounceTimer = time.AfterFunc(b.debounceInterval, func() {
			b.flush()
		})
	}
}

// FlushNow immediately sends all pending changes.
func (b *OutgoingBatcher) FlushNow() {
	b.mu.Lock()
	if b.debounceTimer != nil {
		b.debounceTimer.Stop()
	}
	b.mu.Unlock()

	b.flush()
}

// flush sends pending changes (called by timer or FlushNow).
func (b *OutgoingBatcher) flush() {
	b.mu.Lock()
	b.debounceTimer = nil
	b.batchCount += 1
	count := b.batchCount
	b.mu.Unlock()

	msg := b.changes.Flush()
	if msg == nil {
		return
	}

	b.sender.Log(4, "[OUT] BATCH %d to=%s", count, b.connectionID)
	if err := b.sender.Send(b.connectionID, msg); err != nil {
		b.sender.Log(1, "Failed to send update to %s: %v", b.connectionID, err)
	}
}

// Clear drops pending changes and stops the timer.
// Called when the connection closes.
func (b *OutgoingBatcher) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.debounceTimer != nil {
		b.debounceTimer.Stop()
	}
	b.debounceTimer = nil
	b.changes.Flush()
}

// Pending reports whether changes are waiting to be sent.
func (b *OutgoingBatcher) Pending() bool {
	return !b.changes.IsEmpty()
}
