// Package protocol implements the bridge between the desktop core and the
// browser chrome: a snapshot on connect, coalesced field updates, and calls
// answered with a result or an error.
package protocol

import (
	"encoding/json"
)

// MessageType identifies the type of protocol message.
type MessageType string

const (
	// Server to client
	MsgSnapshot MessageType = "snapshot"
	MsgUpdate   MessageType = "update"
	MsgResult   MessageType = "result"
	MsgError    MessageType = "error"

	// Client to server
	MsgCall MessageType = "call"
)

// Message is the base protocol message structure.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CallMessage asks the server to run a method.
type CallMessage struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ResultMessage answers a successful call.
type ResultMessage struct {
	ID     int64       `json:"id"`
	Result interface{} `json:"result"`
}

// ErrorMessage answers a failed call, or reports a malformed message when ID is zero.
type ErrorMessage struct {
	ID          int64  `json:"id,omitempty"`
	Code        string `json:"code"`        // One-word error code (e.g., "not-found", "bad-request")
	Description string `json:"description"` // Human-readable error description
}

// Change is one field of an update.
type Change struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// UpdateMessage carries the fields that changed since the last flush.
type UpdateMessage struct {
	Changes []Change `json:"changes"`
}

// BatchWrapper wraps a batch of messages.
type BatchWrapper struct {
	Messages []Message `json:"messages"`
}

// ParseMessage parses a raw JSON message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParseMessages parses raw JSON that may be a single message, an array, or a batch wrapper.
func ParseMessages(data []byte) ([]*Message, error) {
	if len(data) == 0 {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var msgs []Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, err
		}
		result := make([]*Message, len(msgs))
		for i := range msgs {
			result[i] = &msgs[i]
		}
		return result, nil

	case '{':
		var wrapper BatchWrapper
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		if len(wrapper.Messages) > 0 {
			result := make([]*Message, len(wrapper.Messages))
			for i := range wrapper.Messages {
				result[i] = &wrapper.Messages[i]
			}
			return result, nil
		}

		msg, err := ParseMessage(data)
		if err != nil {
			return nil, err
		}
		return []*Message{msg}, nil

	default:
		return nil, nil
	}
}

// NewMessage creates a new message with the given type and data.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Type: msgType,
		Data: raw,
	}, nil
}

// Encode serializes a message to JSON.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
