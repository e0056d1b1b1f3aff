// This file re-exports internal packages for embedding the desktop in other programs.
package cli

import (
	"github.com/zot/nexus-shell/internal/mcp"
	"github.com/zot/nexus-shell/internal/server"
	"github.com/zot/nexus-shell/internal/shell"
)

// Re-export core types for embedding
type (
	Shell        = shell.Shell
	ShellOptions = shell.Options
	Server       = server.Server
	MCPServer    = mcp.Server
)

// Re-export constructors
var (
	OpenShell    = shell.Open
	NewShell     = shell.New
	NewServer    = server.New
	NewMCPServer = mcp.NewServer
)
