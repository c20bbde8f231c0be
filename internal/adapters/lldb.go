package adapters

import (
	"context"
	"log/slog"

	"github.com/ctagard/lodeb/internal/config"
	"github.com/ctagard/lodeb/pkg/types"
)

// LLDBAdapter drives lldb-dap (formerly lldb-vscode) over stdio.
// It handles C, C++, Rust, Objective-C and Swift targets.
type LLDBAdapter struct {
	lldbDapPath string
}

// NewLLDBAdapter creates a new LLDB adapter
func NewLLDBAdapter(cfg config.AdapterPath) *LLDBAdapter {
	path := cfg.Path
	if path == "" {
		path = "lldb-dap"
	}

	return &LLDBAdapter{
		lldbDapPath: path,
	}
}

// Kind implements Adapter
func (l *LLDBAdapter) Kind() config.AdapterKind {
	return config.AdapterLLDB
}

// Path implements Adapter
func (l *LLDBAdapter) Path() string {
	return l.lldbDapPath
}

// Spawn starts lldb-dap and connects to it via stdin/stdout
func (l *LLDBAdapter) Spawn(ctx context.Context, workingDir string, log *slog.Logger) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// auto REPL mode accepts both expressions and backtick-prefixed commands
	return spawnStdio(l.lldbDapPath, []string{"--repl-mode=auto"}, workingDir, log)
}

// LaunchArgs builds the launch arguments for lldb-dap.
// lldb-dap takes the environment as a list of KEY=VALUE strings.
func (l *LLDBAdapter) LaunchArgs(p types.ExeParams) map[string]interface{} {
	args := baseLaunchArgs(p)
	if len(p.Env) > 0 {
		args["env"] = envList(p.Env)
	}
	return args
}
