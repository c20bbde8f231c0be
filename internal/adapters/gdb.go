package adapters

import (
	"context"
	"log/slog"

	"github.com/ctagard/lodeb/internal/config"
	"github.com/ctagard/lodeb/pkg/types"
)

// GDBAdapter drives GDB's built-in DAP interpreter over stdio.
// Requires GDB 14.1 or later.
type GDBAdapter struct {
	gdbPath string
}

// NewGDBAdapter creates a new GDB adapter
func NewGDBAdapter(cfg config.AdapterPath) *GDBAdapter {
	path := cfg.Path
	if path == "" {
		path = "gdb"
	}

	return &GDBAdapter{
		gdbPath: path,
	}
}

// Kind implements Adapter
func (g *GDBAdapter) Kind() config.AdapterKind {
	return config.AdapterGDB
}

// Path implements Adapter
func (g *GDBAdapter) Path() string {
	return g.gdbPath
}

// Spawn starts GDB in DAP mode and connects to it via stdin/stdout
func (g *GDBAdapter) Spawn(ctx context.Context, workingDir string, log *slog.Logger) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gdbArgs := []string{
		"--interpreter=dap",
		"--eval-command", "set print pretty on",
		// startup banners would corrupt the DAP stream
		"--quiet",
	}
	return spawnStdio(g.gdbPath, gdbArgs, workingDir, log)
}

// LaunchArgs builds the launch arguments for GDB DAP.
// GDB expects the environment as an object.
func (g *GDBAdapter) LaunchArgs(p types.ExeParams) map[string]interface{} {
	args := baseLaunchArgs(p)
	if len(p.Env) > 0 {
		env := make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			env[k] = v
		}
		args["env"] = env
	}
	return args
}
