// Package cli provides the command-line interface for nexus-shell.
// It exports Run() and RunWithHooks() to allow extension by wrapper projects.
package cli

import (
	"fmt"
	"io"
	"os"
)

// Version is the release reported by the version command and the MCP server.
const Version = "0.1.0"

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Hooks allows extending the CLI with additional commands.
type Hooks struct {
	// BeforeDispatch is called before command dispatch.
	// Return (handled=true, exitCode) to skip normal dispatch.
	BeforeDispatch func(command string, args []string) (handled bool, exitCode int)

	// CustomHelp returns additional help text to append.
	CustomHelp func() string

	// CustomVersion returns version info to append (optional).
	CustomVersion func() string
}

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	if len(args) < 1 {
		return runServe(args)
	}

	command := args[0]
	cmdArgs := args[1:]

	// Let hooks intercept first
	if hooks != nil && hooks.BeforeDispatch != nil {
		if handled, code := hooks.BeforeDispatch(command, cmdArgs); handled {
			return code
		}
	}

	switch command {
	case "serve":
		return runServe(cmdArgs)
	case "mcp":
		return runMCP(cmdArgs)
	case "ls":
		return runLs(cmdArgs)
	case "cat":
		return runCat(cmdArgs)
	case "tree":
		return runTree(cmdArgs)
	case "run":
		return runScript(cmdArgs)
	case "reset":
		return runReset(cmdArgs)
	case "help", "-h", "--help":
		printHelp(hooks)
		return 0
	case "version", "--version":
		printVersion(hooks)
		return 0
	default:
		// Check if it's a flag (starts with -)
		if len(command) > 0 && command[0] == '-' {
			return runServe(args)
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printHelp(hooks)
		return 1
	}
}

func printHelp(hooks *Hooks) {
	fmt.Fprintln(stdout, `Nexus Shell

Usage: nexus-shell [command] [options] [args]

Server Commands:
  serve           Start the desktop bridge (default)
  mcp             Serve MCP tools on stdio

Session Commands:
  ls [path]       List a directory of the saved desktop
  cat PATH        Print a file of the saved desktop
  tree [path]     Print a directory tree of the saved desktop
  run SCRIPT      Run a Lua script against the saved desktop and save it
  reset           Delete the saved desktop

Options:
  --host          Bridge listen address (default: 127.0.0.1)
  --port          Bridge listen port (default: 8080)
  --dir           Serve the chrome from directory
  --config        Config file (default: config/config.toml)
  --storage       Storage type: memory, file, sqlite, postgresql
  --storage-path  SQLite database path or state directory
  --storage-url   PostgreSQL connection URL
  --autosave      Autosave interval (0=disabled)
  --lua           Run the Lua startup script (default: true)
  --lua-startup   Lua startup script (default: lua/startup.lua)
  --lua-watch     Re-run the startup script when it changes
  --mcp           Also serve MCP on stdio while serving the bridge
  -v, -vv, -vvv   Verbosity

Examples:
  nexus-shell serve --port 8080 --dir chrome/
  nexus-shell ls --storage file --storage-path state/ /home/documents
  nexus-shell run --storage sqlite --storage-path nexus.db setup.lua`)

	if hooks != nil && hooks.CustomHelp != nil {
		fmt.Fprintln(stdout, hooks.CustomHelp())
	}
}

func printVersion(hooks *Hooks) {
	fmt.Fprintf(stdout, "Nexus Shell v%s\n", Version)
	if hooks != nil && hooks.CustomVersion != nil {
		fmt.Fprintln(stdout, hooks.CustomVersion())
	}
}
