package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/ctagard/lodeb/internal/config"
	"github.com/ctagard/lodeb/pkg/types"
)

// connectRetries * 200ms is how long dlv gets to start listening
const connectRetries = 20

// DelveAdapter drives `dlv dap` over TCP. Targets are prebuilt executables,
// so launches use exec mode.
type DelveAdapter struct {
	dlvPath string
}

// NewDelveAdapter creates a new Delve adapter
func NewDelveAdapter(cfg config.AdapterPath) *DelveAdapter {
	dlvPath := cfg.Path
	if dlvPath == "" {
		dlvPath = "dlv"
	}

	return &DelveAdapter{
		dlvPath: dlvPath,
	}
}

// Kind implements Adapter
func (d *DelveAdapter) Kind() config.AdapterKind {
	return config.AdapterDelve
}

// Path implements Adapter
func (d *DelveAdapter) Path() string {
	return d.dlvPath
}

// Spawn starts a Delve DAP server on a free port and connects to it
func (d *DelveAdapter) Spawn(ctx context.Context, workingDir string, log *slog.Logger) (*Connection, error) {
	port, err := findAvailablePort()
	if err != nil {
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	address := fmt.Sprintf("127.0.0.1:%d", port)

	//nolint:gosec // G204: spawning the configured debug adapter is the point
	cmd := exec.Command(d.dlvPath, "dap", "--listen", address)
	cmd.Dir = workingDir
	cmd.Stdin = nil
	cmd.Stderr = newLogWriter(log, d.dlvPath)
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start dlv: %w", err)
	}

	client, err := Connect(ctx, address, connectRetries, log)
	if err != nil {
		conn := &Connection{Cmd: cmd}
		_ = conn.Close() // best-effort cleanup
		return nil, err
	}

	return &Connection{Client: client, Cmd: cmd}, nil
}

// LaunchArgs builds the launch arguments for Delve
func (d *DelveAdapter) LaunchArgs(p types.ExeParams) map[string]interface{} {
	args := baseLaunchArgs(p)
	args["mode"] = "exec"
	if len(p.Env) > 0 {
		env := make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			env[k] = v
		}
		args["env"] = env
	}
	return args
}
