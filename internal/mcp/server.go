// Package mcp exposes the desktop to AI agents as an MCP tool server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/zot/nexus-shell/internal/protocol"
	"github.com/zot/nexus-shell/internal/shell"
)

// StateURI names the resource holding the whole store record.
const StateURI = "nexus://state"

// ToolHandler answers one tool call.
type ToolHandler = server.ToolHandlerFunc

// Server implements an MCP server over one shell. Tools go through the same
// call handler the browser bridge uses, so they run on the shell executor.
type Server struct {
	shell   *shell.Shell
	handler *protocol.Handler
	mcp     *server.MCPServer
	tools   map[string]ToolHandler
}

// NewServer creates a new MCP server for sh.
func NewServer(sh *shell.Shell, version string) *Server {
	s := &Server{
		shell:   sh,
		handler: protocol.NewHandler(sh),
		tools:   make(map[string]ToolHandler),
		mcp: server.NewMCPServer(
			"nexus-shell",
			version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Tools returns the registered tool names.
func (s *Server) Tools() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	return names
}

// Serve processes MCP messages from in until it closes or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.shell.Config.Log(1, "MCP server ready")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// CallTool runs a registered tool directly.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcpgo.CallToolResult, error) {
	h, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %s", name)
	}
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return h(ctx, req)
}

func (s *Server) addTool(tool mcpgo.Tool, h ToolHandler) {
	s.tools[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

// call runs a bridge method and renders its result as tool output.
func (s *Server) call(method string, args any) *mcpgo.CallToolResult {
	data, err := json.Marshal(args)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error())
	}
	result, err := s.handler.Call(method, data)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("%s: %v", protocol.ErrorCode(err), err))
	}
	return mcpgo.NewToolResultText(string(result))
}

func (s *Server) registerResources() {
	state := mcpgo.NewResource(StateURI, "Desktop state",
		mcpgo.WithResourceDescription("Windows, filesystem, theme and counters of the running desktop"),
		mcpgo.WithMIMEType("application/json"),
	)
	s.mcp.AddResource(state, func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		data, err := s.handler.Call("get", nil)
		if err != nil {
			return nil, err
		}
		return []mcpgo.ResourceContents{
			mcpgo.TextResourceContents{URI: StateURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
