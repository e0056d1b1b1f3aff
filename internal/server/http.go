package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zot/nexus-shell/internal/protocol"
	"github.com/zot/nexus-shell/internal/shell"
)

// HTTPEndpoint handles HTTP requests.
type HTTPEndpoint struct {
	shell      *shell.Shell
	handler    *protocol.Handler
	wsEndpoint *WebSocketEndpoint
	staticDir  string
	mux        *http.ServeMux
}

// NewHTTPEndpoint creates a new HTTP endpoint.
func NewHTTPEndpoint(sh *shell.Shell, handler *protocol.Handler, wsEndpoint *WebSocketEndpoint) *HTTPEndpoint {
	h := &HTTPEndpoint{
		shell:      sh,
		handler:    handler,
		wsEndpoint: wsEndpoint,
		mux:        http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

// SetStaticDir sets the directory the chrome is served from.
func (h *HTTPEndpoint) SetStaticDir(dir string) {
	h.staticDir = dir
}

// setupRoutes configures HTTP routes.
func (h *HTTPEndpoint) setupRoutes() {
	h.mux.HandleFunc("/", h.handleRoot)
	h.mux.HandleFunc("/ws", h.wsEndpoint.HandleWebSocket)
	h.mux.HandleFunc("/api/state", h.handleState)
	h.mux.HandleFunc("/api/call/", h.handleCall)
	h.mux.HandleFunc("/debug/state", h.handleStateBrowser)
}

// ServeHTTP implements http.Handler.
func (h *HTTPEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleRoot serves the static site.
func (h *HTTPEndpoint) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.serveStatic(w, r, strings.TrimPrefix(r.URL.Path, "/"))
}

// serveStatic serves a static file.
func (h *HTTPEndpoint) serveStatic(w http.ResponseWriter, r *http.Request, path string) {
	if h.staticDir == "" {
		http.NotFound(w, r)
		return
	}
	if path == "" {
		path = "index.html"
	}

	// Set content type based on extension (http.ServeFile uses content sniffing which fails for CSS)
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeFile(w, r, filepath.Join(h.staticDir, filepath.FromSlash(path)))
}

// handleState returns the whole store record.
func (h *HTTPEndpoint) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		h.writeError(w, protocol.ErrorMessage{Code: "method-not-allowed", Description: "Method not allowed"}, http.StatusMethodNotAllowed)
		return
	}

	data, err := shell.Call(h.shell, func() ([]byte, error) {
		return json.Marshal(h.shell.Store.Snapshot())
	})
	if err != nil {
		h.writeError(w, protocol.ErrorMessage{Code: protocol.ErrorCode(err), Description: err.Error()}, http.StatusServiceUnavailable)
		return
	}
	w.Write(data)
}

// handleCall runs a bridge method: POST /api/call/METHOD with the arguments as the body.
func (h *HTTPEndpoint) handleCall(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		h.writeError(w, protocol.ErrorMessage{Code: "method-not-allowed", Description: "Method not allowed"}, http.StatusMethodNotAllowed)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/api/call/")
	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, protocol.ErrorMessage{Code: "bad-request", Description: "Invalid JSON"}, http.StatusBadRequest)
		return
	}

	result, err := h.handler.Call(method, args)
	if err != nil {
		code := protocol.ErrorCode(err)
		h.writeError(w, protocol.ErrorMessage{Code: code, Description: err.Error()}, statusFor(code))
		return
	}
	json.NewEncoder(w).Encode(protocol.ResultMessage{Result: result})
}

// handleStateBrowser serves the state browser page.
func (h *HTTPEndpoint) handleStateBrowser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(stateBrowserHTML))
}

func statusFor(code string) int {
	switch code {
	case "not-found", "unknown-method":
		return http.StatusNotFound
	case "already-exists":
		return http.StatusConflict
	case "unavailable":
		return http.StatusServiceUnavailable
	case "internal":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// writeError writes an error response.
func (h *HTTPEndpoint) writeError(w http.ResponseWriter, e protocol.ErrorMessage, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(e)
}
