package mcp

import (
	"context"
	"encoding/json"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/zot/nexus-shell/internal/state"
)

func (s *Server) registerTools() {
	s.addTool(mcpgo.NewTool("fs_list",
		mcpgo.WithDescription("List a directory of the desktop filesystem, sorted by name"),
		mcpgo.WithString("path", mcpgo.Description("Directory to list (default: current directory)")),
	), s.handleList)

	s.addTool(mcpgo.NewTool("fs_read",
		mcpgo.WithDescription("Read the content of a file"),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("File path, absolute or relative to the current directory")),
	), s.handleRead)

	s.addTool(mcpgo.NewTool("fs_write",
		mcpgo.WithDescription("Create a file or replace its content"),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("File path")),
		mcpgo.WithString("content", mcpgo.Description("New content")),
	), s.handleWrite)

	s.addTool(mcpgo.NewTool("fs_mkdir",
		mcpgo.WithDescription("Create an empty directory"),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Directory path")),
	), s.pathTool("mkdir"))

	s.addTool(mcpgo.NewTool("fs_remove",
		mcpgo.WithDescription("Delete a file or directory with everything beneath it"),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Path to delete")),
	), s.pathTool("rm"))

	s.addTool(mcpgo.NewTool("fs_rename",
		mcpgo.WithDescription("Rename a file or directory within its parent"),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Path to rename")),
		mcpgo.WithString("newName", mcpgo.Required(), mcpgo.Description("New name (no slashes)")),
	), s.handleRename)

	s.addTool(mcpgo.NewTool("fs_cd",
		mcpgo.WithDescription("Change the current directory"),
		mcpgo.WithString("path", mcpgo.Required(), mcpgo.Description("Directory path")),
	), s.pathTool("cd"))

	s.addTool(mcpgo.NewTool("window_list",
		mcpgo.WithDescription("List open windows in creation order"),
	), s.handleWindowList)

	s.addTool(mcpgo.NewTool("window_open",
		mcpgo.WithDescription("Launch an application window"),
		mcpgo.WithString("appType", mcpgo.Required(), mcpgo.Description("Application: terminal, file-explorer, system-monitor, settings")),
	), s.handleWindowOpen)

	s.addTool(mcpgo.NewTool("window_close",
		mcpgo.WithDescription("Close a window"),
		mcpgo.WithNumber("id", mcpgo.Required(), mcpgo.Description("Window id")),
	), s.windowTool("closeWindow"))

	s.addTool(mcpgo.NewTool("window_focus",
		mcpgo.WithDescription("Focus and raise a window"),
		mcpgo.WithNumber("id", mcpgo.Required(), mcpgo.Description("Window id")),
	), s.windowTool("focusWindow"))
}

func (s *Server) handleList(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.call("list", map[string]string{"path": req.GetString("path", "")}), nil
}

func (s *Server) handleRead(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	res := s.call("readFile", map[string]string{"path": path})
	if res.IsError {
		return res, nil
	}
	// hand back the bare content rather than the JSON envelope
	var file struct {
		Content string `json:"content"`
	}
	if text, ok := res.Content[0].(mcpgo.TextContent); ok && json.Unmarshal([]byte(text.Text), &file) == nil {
		return mcpgo.NewToolResultText(file.Content), nil
	}
	return res, nil
}

func (s *Server) handleWrite(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return s.call("touch", map[string]string{"path": path, "content": req.GetString("content", "")}), nil
}

func (s *Server) handleRename(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("newName")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return s.call("rename", map[string]string{"path": path, "newName": newName}), nil
}

// pathTool builds a handler for a bridge method taking only a path.
func (s *Server) pathTool(method string) ToolHandler {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return s.call(method, map[string]string{"path": path}), nil
	}
}

func (s *Server) handleWindowList(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.call("get", map[string]string{"key": state.FieldWindows}), nil
}

func (s *Server) handleWindowOpen(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	appType, err := req.RequireString("appType")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return s.call("launch", map[string]string{"appType": appType}), nil
}

// windowTool builds a handler for a bridge method taking only a window id.
func (s *Server) windowTool(method string) ToolHandler {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return s.call(method, map[string]int{"id": id}), nil
	}
}
