package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the session tools
func (s *Server) registerTools() {
	// Configuration
	s.registerSetExe()
	s.registerLaunchConfig()
	s.registerLoad()
	s.registerStart()

	// Source and breakpoints
	s.registerOpen()
	s.registerSource()
	s.registerToggleBreakpoint()
	s.registerSearchSymbols()

	// Execution control
	s.registerStep()
	s.registerContinue()
	s.registerRunToLine()
	s.registerKill()

	// Inspection
	s.registerSnapshot()
	s.registerSelectFrame()
	s.registerToggleVariable()
	s.registerOutput()
}

// Configuration Tools

func (s *Server) registerSetExe() {
	tool := mcp.NewTool("lodeb_set_exe",
		mcp.WithDescription("Set the executable to debug. The target is reloaded unless load=false; breakpoints and any running process are discarded by a reload."),
		mcp.WithString("exePath",
			mcp.Required(),
			mcp.Description("Path to the executable, absolute or relative to workingDir"),
		),
		mcp.WithString("workingDir",
			mcp.Required(),
			mcp.Description("Working directory the program runs in"),
		),
		mcp.WithString("args",
			mcp.Description("JSON array of program arguments. Example: [\"--verbose\", \"input.txt\"]"),
		),
		mcp.WithString("env",
			mcp.Description("JSON object of extra environment variables. Example: {\"RUST_BACKTRACE\": \"1\"}"),
		),
		mcp.WithBoolean("stopOnEntry",
			mcp.Description("Stop at the program entry point (default: false)"),
		),
		mcp.WithBoolean("load",
			mcp.Description("Load the target right away (default: true)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSetExe)
}

func (s *Server) registerLaunchConfig() {
	tool := mcp.NewTool("lodeb_launch_config",
		mcp.WithDescription("Import the executable from a VS Code launch.json configuration and load it. Supports ${workspaceFolder}, ${env:...} and ${input:...} (input defaults) variables."),
		mcp.WithString("configPath",
			mcp.Description("Path to launch.json. Auto-discovers .vscode/launch.json from the workspace if not provided."),
		),
		mcp.WithString("configName",
			mcp.Description("Name of the configuration. Defaults to the first launch configuration."),
		),
		mcp.WithString("workspace",
			mcp.Description("Workspace root for variable resolution and config discovery."),
		),
		mcp.WithString("inputValues",
			mcp.Description("JSON object with values for ${input:} variables. Example: {\"dataFile\": \"test.txt\"}"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleLaunchConfig)
}

func (s *Server) registerLoad() {
	tool := mcp.NewTool("lodeb_load",
		mcp.WithDescription("(Re)load the target from the current executable settings. Kills the running process and clears breakpoints. Symbol resolution continues in the background."),
	)
	s.mcpServer.AddTool(tool, s.handleLoad)
}

func (s *Server) registerStart() {
	tool := mcp.NewTool("lodeb_start",
		mcp.WithDescription("Launch the loaded target under the debugger, replacing any running process. Breakpoints set before the start are honoured."),
		mcp.WithBoolean("wait",
			mcp.Description("Wait until the process stops or exits (default: false)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleStart)
}

// Source and Breakpoint Tools

func (s *Server) registerOpen() {
	tool := mcp.NewTool("lodeb_open",
		mcp.WithDescription("Show a source file, optionally scrolled to a line"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Source file path"),
		),
		mcp.WithNumber("line",
			mcp.Description("Line to bring into view (1-based)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleOpen)
}

func (s *Server) registerSource() {
	tool := mcp.NewTool("lodeb_source",
		mcp.WithDescription("Read lines of the shown source file around the current line. Breakpoint and current-line markers are included."),
		mcp.WithNumber("line",
			mcp.Description("Center line (default: the stopped line or the last scroll target)"),
		),
		mcp.WithNumber("context",
			mcp.Description("Lines of context on each side (default: 10)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSource)
}

func (s *Server) registerToggleBreakpoint() {
	tool := mcp.NewTool("lodeb_toggle_breakpoint",
		mcp.WithDescription("Set a breakpoint at a line, or remove it if one is set there. Only lines with executable code are accepted."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Source file path"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Line number (1-based)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleToggleBreakpoint)
}

func (s *Server) registerSearchSymbols() {
	tool := mcp.NewTool("lodeb_search_symbols",
		mcp.WithDescription("Fuzzy-search the functions of the loaded target. Results carry the source location, usable with lodeb_open and lodeb_toggle_breakpoint."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text; characters must appear in order"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default: 50)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for symbol resolution to finish (default: true)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSearchSymbols)
}

// Execution Control Tools

func (s *Server) registerStep() {
	tool := mcp.NewTool("lodeb_step",
		mcp.WithDescription("Step the stopped process and wait for it to stop again"),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("'over' (next line) or 'in' (into the call)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleStep)
}

func (s *Server) registerContinue() {
	tool := mcp.NewTool("lodeb_continue",
		mcp.WithDescription("Resume the stopped process"),
		mcp.WithBoolean("wait",
			mcp.Description("Wait until the process stops or exits (default: true)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleContinue)
}

func (s *Server) registerRunToLine() {
	tool := mcp.NewTool("lodeb_run_to_line",
		mcp.WithDescription("Resume until a line is reached. The temporary breakpoint is removed on the next stop for any reason."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Source file path"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Line number (1-based)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait until the process stops or exits (default: true)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleRunToLine)
}

func (s *Server) registerKill() {
	tool := mcp.NewTool("lodeb_kill",
		mcp.WithDescription("Terminate the process. Takes precedence over any pending command."),
	)
	s.mcpServer.AddTool(tool, s.handleKill)
}

// Inspection Tools

func (s *Server) registerSnapshot() {
	tool := mcp.NewTool("lodeb_snapshot",
		mcp.WithDescription("Get the session state: executable, breakpoints, process status, stack, selected frame and variables. Also returns errors reported since the last call."),
	)
	s.mcpServer.AddTool(tool, s.handleSnapshot)
}

func (s *Server) registerSelectFrame() {
	tool := mcp.NewTool("lodeb_select_frame",
		mcp.WithDescription("Show the source and variables of another frame of the stopped stack"),
		mcp.WithNumber("index",
			mcp.Required(),
			mcp.Description("Frame index, 0 is the innermost"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSelectFrame)
}

func (s *Server) registerToggleVariable() {
	tool := mcp.NewTool("lodeb_toggle_variable",
		mcp.WithDescription("Expand or collapse a variable of the selected frame. Nested members are addressed as parent.child."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Variable path, e.g. 'node' or 'node.next'"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleToggleVariable)
}

func (s *Server) registerOutput() {
	tool := mcp.NewTool("lodeb_output",
		mcp.WithDescription("Get the captured stdout/stderr of the process"),
		mcp.WithNumber("tail",
			mcp.Description("Only return the last N bytes"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleOutput)
}
