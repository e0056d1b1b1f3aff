package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/zot/nexus-shell/internal/protocol"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*protocol.Message
}

func (s *recordingSender) Send(connectionID string, msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Log(level int, format string, args ...interface{}) {}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSender) changes(t *testing.T, i int) []protocol.Change {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var update protocol.UpdateMessage
	if err := json.Unmarshal(s.sent[i].Data, &update); err != nil {
		t.Fatalf("Failed to decode update: %v", err)
	}
	return update.Changes
}

// TestOutgoingBatcherDebounce verifies queued changes go out together after the debounce.
func TestOutgoingBatcherDebounce(t *testing.T) {
	sender := &recordingSender{}
	batcher := NewOutgoingBatcher("conn1", sender, 50*time.Millisecond)

	batcher.Queue("theme", json.RawMessage(`"light"`))
	batcher.Queue("currentDirectory", json.RawMessage(`"/home"`))
	batcher.Queue("theme", json.RawMessage(`"dark"`))

	if !batcher.Pending() {
		t.Error("Expected pending changes")
	}

	deadline := time.Now().Add(time.Second)
	for sender.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sender.count() != 1 {
		t.Fatalf("Expected 1 sent message, got %d", sender.count())
	}
	changes := sender.changes(t, 0)
	if len(changes) != 2 || string(changes[0].Value) != `"dark"` {
		t.Errorf("Expected coalesced theme first, got %+v", changes)
	}
	if batcher.Pending() {
		t.Error("Should have no pending after flush")
	}
}

// TestOutgoingBatcherFlushNow verifies immediate flush.
func TestOutgoingBatcherFlushNow(t *testing.T) {
	sender := &recordingSender{}
	batcher := NewOutgoingBatcher("conn1", sender, time.Hour)

	batcher.Queue("theme", json.RawMessage(`"light"`))
	batcher.FlushNow()

	if sender.count() != 1 {
		t.Errorf("Expected 1 sent message after FlushNow, got %d", sender.count())
	}

	batcher.FlushNow()
	if sender.count() != 1 {
		t.Error("Expected empty flush to send nothing")
	}
}

// TestOutgoingBatcherClear verifies cleared changes are never sent.
func TestOutgoingBatcherClear(t *testing.T) {
	sender := &recordingSender{}
	batcher := NewOutgoingBatcher("conn1", sender, 5*time.Millisecond)

	batcher.Queue("theme", json.RawMessage(`"light"`))
	batcher.Clear()
	time.Sleep(20 * time.Millisecond)

	if sender.count() != 0 {
		t.Errorf("Expected nothing sent after Clear, got %d", sender.count())
	}
}
