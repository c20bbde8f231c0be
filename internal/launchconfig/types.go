// Package launchconfig imports executable parameters from a VS Code
// launch.json, so a project already set up for VS Code can be debugged
// without re-entering the program, arguments and environment.
package launchconfig

import (
	"github.com/ctagard/lodeb/internal/config"
)

// LaunchJSON represents a VS Code launch.json file structure.
type LaunchJSON struct {
	Version        string               `json:"version"`
	Configurations []DebugConfiguration `json:"configurations"`
	Inputs         []InputConfig        `json:"inputs,omitempty"`
}

// DebugConfiguration is the subset of a launch.json entry that maps onto
// executable parameters. Unknown fields are ignored.
type DebugConfiguration struct {
	Type    string `json:"type"`    // e.g. "lldb", "cppdbg", "gdb", "go"
	Request string `json:"request"` // "launch" or "attach"
	Name    string `json:"name"`

	Program     string            `json:"program,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	StopOnEntry bool              `json:"stopOnEntry,omitempty"`

	// cppdbg selects its debugger through MIMode
	MIMode string `json:"MIMode,omitempty"`
	// cppdbg spells the environment as a list
	Environment []EnvEntry `json:"environment,omitempty"`
}

// EnvEntry is one cppdbg environment variable
type EnvEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InputConfig represents a user input variable definition. Only defaults are
// used; lodeb never prompts.
type InputConfig struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
}

// ResolutionContext provides context for variable resolution.
type ResolutionContext struct {
	WorkspaceFolder string            // Root folder of the workspace
	CurrentFile     string            // Currently open source file (for ${file} variables)
	InputValues     map[string]string // Values for ${input:} variables
	EnvOverrides    map[string]string // Override environment variables
}

// IsLaunchRequest returns true if this is a launch configuration (not attach).
func (c *DebugConfiguration) IsLaunchRequest() bool {
	return c.Request == "launch"
}

// Adapter returns the debug adapter the configuration was written for
func (c *DebugConfiguration) Adapter() (config.AdapterKind, bool) {
	switch c.Type {
	case "lldb", "lldb-dap", "codelldb":
		return config.AdapterLLDB, true
	case "gdb":
		return config.AdapterGDB, true
	case "go":
		return config.AdapterDelve, true
	case "cppdbg":
		if c.MIMode == "lldb" {
			return config.AdapterLLDB, true
		}
		return config.AdapterGDB, true
	}
	return "", false
}
