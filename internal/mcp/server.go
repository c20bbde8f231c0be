// Package mcp exposes a lodeb session through Model Context Protocol tools.
//
// The tools are the UI of the session: each one records an intent on the
// session State and waits for the driver to act on it, then returns a
// snapshot. No tool talks to the debug engine directly.
//
// Configuration:
//   - lodeb_set_exe: Set the executable, working directory, args and env
//   - lodeb_launch_config: Import the executable from a VS Code launch.json
//   - lodeb_load: (Re)load the target
//   - lodeb_start: Launch the loaded target
//
// Source and breakpoints:
//   - lodeb_open: Show a source file
//   - lodeb_source: Read lines of the shown source file
//   - lodeb_toggle_breakpoint: Toggle a breakpoint at a line
//   - lodeb_search_symbols: Fuzzy-search functions of the target
//
// Execution control:
//   - lodeb_step: Step in or over
//   - lodeb_continue: Resume execution
//   - lodeb_run_to_line: Resume until a line is reached
//   - lodeb_kill: Terminate the process
//
// Inspection:
//   - lodeb_snapshot: Session, stack and variables
//   - lodeb_select_frame: Show another frame of the stack
//   - lodeb_toggle_variable: Expand or collapse a variable
//   - lodeb_output: Captured program output
package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/internal/session"
)

const (
	defaultSettleTimeout = 10 * time.Second
	defaultStopTimeout   = 30 * time.Second
	defaultSymbolLimit   = 50
	pollInterval         = 10 * time.Millisecond
)

// Options configures a Server
type Options struct {
	Name    string
	Version string

	// SettleTimeout bounds how long a tool waits for the driver to consume
	// its intent
	SettleTimeout time.Duration
	// StopTimeout bounds how long an execution-control tool waits for the
	// process to stop again
	StopTimeout time.Duration
	// SymbolLimit caps symbol search results
	SymbolLimit int
	// Workspace is the default root for launch.json discovery
	Workspace string

	Logger *slog.Logger
}

// Server wraps the MCP server around one debug session
type Server struct {
	mcpServer *server.MCPServer
	st        *session.State

	settle      time.Duration
	stop        time.Duration
	symbolLimit int
	workspace   string
	log         *slog.Logger
}

// NewServer creates the MCP server for st
func NewServer(st *session.State, opts Options) *Server {
	name, version := opts.Name, opts.Version
	if name == "" {
		name = "lodeb"
	}
	if version == "" {
		version = "dev"
	}

	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer:   mcpServer,
		st:          st,
		settle:      opts.SettleTimeout,
		stop:        opts.StopTimeout,
		symbolLimit: opts.SymbolLimit,
		workspace:   opts.Workspace,
		log:         logging.OrDefault(opts.Logger).With("component", "mcp"),
	}
	if s.settle <= 0 {
		s.settle = defaultSettleTimeout
	}
	if s.stop <= 0 {
		s.stop = defaultStopTimeout
	}
	if s.symbolLimit <= 0 {
		s.symbolLimit = defaultSymbolLimit
	}

	s.registerTools()

	return s
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Serve runs the stdio transport until stdin closes or ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("serving MCP over stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
