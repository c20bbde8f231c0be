// Package adapters starts the native debug adapters lodeb drives.
//
// Supported adapters:
//   - lldb-dap (formerly lldb-vscode), over stdio
//   - gdb 14.1+ with --interpreter=dap, over stdio
//   - dlv dap, over TCP
//
// Each launched process gets its own adapter instance. An Adapter knows how
// to spawn its binary and how to translate ExeParams into the adapter's
// launch arguments; the Registry looks adapters up by config.AdapterKind.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"sort"
	"time"

	"github.com/ctagard/lodeb/internal/config"
	"github.com/ctagard/lodeb/internal/dap"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/pkg/types"
)

// Adapter defines the interface for a debug adapter flavour
type Adapter interface {
	// Kind returns the configured adapter kind
	Kind() config.AdapterKind

	// Path returns the adapter binary
	Path() string

	// Spawn starts an adapter process and returns a connected client.
	// The adapter outlives ctx; ctx only bounds the connection attempt.
	Spawn(ctx context.Context, workingDir string, log *slog.Logger) (*Connection, error)

	// LaunchArgs builds the launch request arguments for p
	LaunchArgs(p types.ExeParams) map[string]interface{}
}

// Connection is a running adapter process and the client talking to it
type Connection struct {
	Client *dap.Client
	Cmd    *exec.Cmd
}

// Close shuts the client down and kills the adapter process tree
func (c *Connection) Close() error {
	var firstErr error
	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Cmd != nil {
		if err := dap.KillProcessGroup(c.Cmd); err != nil && firstErr == nil {
			firstErr = err
		}
		// Reap the child; the error is expected after a kill
		_ = c.Cmd.Wait()
	}
	return firstErr
}

// Registry holds the adapters lodeb can use
type Registry struct {
	adapters map[config.AdapterKind]Adapter
}

// NewRegistry creates a registry with every supported adapter
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		adapters: make(map[config.AdapterKind]Adapter),
	}

	r.adapters[config.AdapterLLDB] = NewLLDBAdapter(cfg.Adapters.LLDB)
	r.adapters[config.AdapterGDB] = NewGDBAdapter(cfg.Adapters.GDB)
	r.adapters[config.AdapterDelve] = NewDelveAdapter(cfg.Adapters.Delve)

	return r
}

// Get returns the adapter for a kind
func (r *Registry) Get(kind config.AdapterKind) (Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, lodeberrors.AdapterNotFound(string(kind), config.SupportedAdapters())
	}
	return adapter, nil
}

// Register registers an adapter, overriding any existing one of that kind
func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Kind()] = adapter
}

// LookPath resolves the adapter binary on PATH
func LookPath(a Adapter) (string, error) {
	path, err := exec.LookPath(a.Path())
	if err != nil {
		return "", lodeberrors.AdapterNotFound(string(a.Kind()), config.SupportedAdapters()).
			WithCause(err).
			WithDetails("path", a.Path())
	}
	return path, nil
}

// Connect creates a DAP client connected to the given address via TCP
func Connect(ctx context.Context, address string, maxRetries int, log *slog.Logger) (*dap.Client, error) {
	var transport *dap.Transport
	var err error

	for i := 0; i < maxRetries; i++ {
		transport, err = dap.NewTCPTransport(ctx, address)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to debug adapter at %s: %w", address, err)
	}

	return dap.NewClient(transport, log), nil
}

// spawnStdio starts an adapter that speaks DAP on stdin/stdout
func spawnStdio(path string, args []string, workingDir string, log *slog.Logger) (*Connection, error) {
	//nolint:gosec // G204: spawning the configured debug adapter is the point
	cmd := exec.Command(path, args...)
	cmd.Dir = workingDir
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	cmd.Stderr = newLogWriter(log, path)

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}

	client := dap.NewClient(dap.NewStdioTransport(stdin, stdout), log)
	return &Connection{Client: client, Cmd: cmd}, nil
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// envList renders env as sorted KEY=VALUE pairs
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// baseLaunchArgs holds the keys every adapter understands
func baseLaunchArgs(p types.ExeParams) map[string]interface{} {
	args := map[string]interface{}{
		"program": p.ExePath,
		"args":    append([]string{}, p.Args...),
	}
	if p.WorkingDir != "" {
		args["cwd"] = p.WorkingDir
	}
	if p.StopOnEntry {
		args["stopOnEntry"] = true
	}
	return args
}
