package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/protocol"
	"github.com/zot/nexus-shell/internal/shell"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// client is one browser connection.
type client struct {
	id       string
	conn     *websocket.Conn
	outgoing *OutgoingBatcher
	writeMu  sync.Mutex
}

// WebSocketEndpoint handles WebSocket connections. Every connection receives
// a snapshot of the store when it connects and an update for each batch of
// field changes after that.
type WebSocketEndpoint struct {
	config       *config.Config
	shell        *shell.Shell
	handler      *protocol.Handler
	debounce     time.Duration
	connections  map[string]*client
	unsubscribes []func()
	mu           sync.RWMutex
}

// NewWebSocketEndpoint creates an endpoint and subscribes it to every store field.
func NewWebSocketEndpoint(sh *shell.Shell, handler *protocol.Handler) *WebSocketEndpoint {
	ws := &WebSocketEndpoint{
		config:      sh.Config,
		shell:       sh,
		handler:     handler,
		debounce:    DefaultDebounce,
		connections: make(map[string]*client),
	}
	sh.Do(func() {
		keys := make([]string, 0)
		for key := range sh.Store.Snapshot() {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			key := key
			ws.unsubscribes = append(ws.unsubscribes, sh.Store.Subscribe(key, func(value, _ any) {
				ws.queueChange(key, value)
			}))
		}
	})
	return ws
}

// Log logs a message via the config.
func (ws *WebSocketEndpoint) Log(level int, format string, args ...interface{}) {
	ws.config.Log(level, format, args...)
}

// queueChange runs on the shell executor, so the value is encoded before the
// store can change it again.
func (ws *WebSocketEndpoint) queueChange(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		ws.Log(0, "Failed to encode %s: %v", key, err)
		return
	}

	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for _, c := range ws.connections {
		c.outgoing.Queue(key, data)
	}
}

// HandleWebSocket upgrades the request and serves the connection.
func (ws *WebSocketEndpoint) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.Log(0, "WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{id: generateConnectionID(), conn: conn}
	c.outgoing = NewOutgoingBatcher(c.id, ws, ws.debounce)

	// Hold the write lock until the snapshot is out so no update can overtake it.
	c.writeMu.Lock()
	snapshot, err := shell.Call(ws.shell, func() (json.RawMessage, error) {
		data, err := json.Marshal(ws.shell.Store.Snapshot())
		if err != nil {
			return nil, err
		}
		ws.mu.Lock()
		ws.connections[c.id] = c
		ws.mu.Unlock()
		return data, nil
	})
	if err == nil {
		err = ws.write(c, &protocol.Message{Type: protocol.MsgSnapshot, Data: snapshot})
	}
	c.writeMu.Unlock()
	if err != nil {
		ws.Log(0, "Failed to send snapshot: %v", err)
		ws.onDisconnect(c)
		return
	}

	ws.Log(1, "WebSocket connected: conn=%s", c.id)
	go ws.readPump(c)
}

// readPump reads messages from a WebSocket connection.
func (ws *WebSocketEndpoint) readPump(c *client) {
	defer ws.onDisconnect(c)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.Log(0, "WebSocket error: %v", err)
			}
			return
		}
		ws.processMessage(c, message)
	}
}

// processMessage handles one or more messages. Changes a call causes are
// flushed before its reply so the reply never arrives ahead of them.
func (ws *WebSocketEndpoint) processMessage(c *client, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			ws.Log(0, "PANIC in processMessage: %v", r)
			ws.sendError(c.id, fmt.Errorf("internal error: %v", r))
		}
	}()

	msgs, err := protocol.ParseMessages(message)
	if err != nil {
		ws.Log(0, "Failed to parse message: %v", err)
		ws.sendError(c.id, fmt.Errorf("%w: %v", protocol.ErrBadRequest, err))
		return
	}

	for _, msg := range msgs {
		reply := ws.handler.HandleMessage(c.id, msg)
		c.outgoing.FlushNow()
		if reply != nil {
			ws.Send(c.id, reply)
		}
	}
}

func (ws *WebSocketEndpoint) sendError(connectionID string, err error) {
	msg, _ := protocol.NewMessage(protocol.MsgError, protocol.ErrorMessage{
		Code:        protocol.ErrorCode(err),
		Description: err.Error(),
	})
	ws.Send(connectionID, msg)
}

// onDisconnect handles connection close.
func (ws *WebSocketEndpoint) onDisconnect(c *client) {
	ws.mu.Lock()
	delete(ws.connections, c.id)
	ws.mu.Unlock()

	c.outgoing.Clear()
	c.conn.Close()
	ws.Log(1, "WebSocket disconnected: conn=%s", c.id)
}

// Send sends a message to a specific connection.
func (ws *WebSocketEndpoint) Send(connectionID string, msg *protocol.Message) error {
	ws.mu.RLock()
	c, ok := ws.connections[connectionID]
	ws.mu.RUnlock()

	if !ok {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.write(c, msg)
}

// write encodes and writes msg; the caller holds c.writeMu.
func (ws *WebSocketEndpoint) write(c *client, msg *protocol.Message) error {
	msgType := strings.ToUpper(string(msg.Type))
	if ws.config.Verbosity() >= 4 {
		ws.Log(4, "[OUT] %s: to=%s data=%s", msgType, c.id, string(msg.Data))
	} else {
		ws.Log(2, "[OUT] %s: to=%s", msgType, c.id)
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ConnectionCount returns the number of open connections.
func (ws *WebSocketEndpoint) ConnectionCount() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.connections)
}

// Close unsubscribes from the store and closes every connection.
func (ws *WebSocketEndpoint) Close() {
	ws.shell.Do(func() {
		for _, unsubscribe := range ws.unsubscribes {
			unsubscribe()
		}
	})
	ws.unsubscribes = nil

	ws.mu.RLock()
	conns := make([]*client, 0, len(ws.connections))
	for _, c := range ws.connections {
		conns = append(conns, c)
	}
	ws.mu.RUnlock()

	for _, c := range conns {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}

func generateConnectionID() string {
	return "conn-" + uuid.NewString()
}
