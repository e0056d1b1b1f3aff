package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/zot/nexus-shell/internal/config"
	"github.com/zot/nexus-shell/internal/protocol"
	"github.com/zot/nexus-shell/internal/shell"
)

// Server is the bridge between one desktop and its browser chrome.
type Server struct {
	config       *config.Config
	shell        *shell.Shell
	handler      *protocol.Handler
	httpServer   *http.Server
	httpEndpoint *HTTPEndpoint
	wsEndpoint   *WebSocketEndpoint
}

// New creates a server for sh.
func New(sh *shell.Shell) *Server {
	s := &Server{
		config:  sh.Config,
		shell:   sh,
		handler: protocol.NewHandler(sh),
	}
	s.wsEndpoint = NewWebSocketEndpoint(sh, s.handler)
	s.httpEndpoint = NewHTTPEndpoint(sh, s.handler, s.wsEndpoint)
	if sh.Config.Server.Dir != "" {
		s.httpEndpoint.SetStaticDir(sh.Config.Server.Dir)
		s.config.Log(1, "Serving chrome from %s", sh.Config.Server.Dir)
	}
	return s
}

// Start starts the HTTP server on the configured port.
func (s *Server) Start() error {
	_, err := s.StartHTTP(s.config.Server.Port)
	return err
}

// StartHTTP starts the HTTP server on the specified port.
// It returns the full base URL.
func (s *Server) StartHTTP(port int) (string, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpEndpoint,
	}

	// We need to capture the actual port if 0 was passed
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	// Update port in config if it was 0
	if port == 0 {
		addr = listener.Addr().String()
		_, portStr, _ := net.SplitHostPort(addr)
		s.config.Server.Port, _ = strconv.Atoi(portStr)
	}

	go func() {
		s.config.Log(0, "HTTP server listening on %s", addr)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.config.Log(0, "HTTP server error: %v", err)
		}
	}()

	host := s.config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return fmt.Sprintf("http://%s:%d", host, s.config.Server.Port), nil
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpEndpoint
}

// GetHandler returns the protocol handler.
func (s *Server) GetHandler() *protocol.Handler {
	return s.handler
}

// Shutdown stops accepting requests and closes every WebSocket connection.
// The shell is left running; its owner closes it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsEndpoint.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
