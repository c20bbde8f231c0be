package launchconfig

import (
	"fmt"
	"path/filepath"

	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/pkg/types"
)

// ToExeParams resolves every variable of a launch configuration and returns
// the executable parameters it describes. A relative program or cwd is taken
// relative to the workspace folder; the working directory defaults to it.
func ToExeParams(cfg *DebugConfiguration, ctx *ResolutionContext) (types.ExeParams, error) {
	if ctx == nil {
		ctx = &ResolutionContext{}
	}
	if !cfg.IsLaunchRequest() {
		return types.ExeParams{}, lodeberrors.InvalidParameter("request", cfg.Request,
			"a launch configuration; attaching to a running process is not supported")
	}
	if cfg.Program == "" {
		return types.ExeParams{}, lodeberrors.MissingParameter("program",
			fmt.Sprintf("Configuration %q does not name a program.", cfg.Name))
	}

	program, err := ResolveVariables(cfg.Program, ctx)
	if err != nil {
		return types.ExeParams{}, fmt.Errorf("failed to resolve program: %w", err)
	}
	cwd := ctx.WorkspaceFolder
	if cfg.Cwd != "" {
		if cwd, err = ResolveVariables(cfg.Cwd, ctx); err != nil {
			return types.ExeParams{}, fmt.Errorf("failed to resolve cwd: %w", err)
		}
	}
	args, err := ResolveStringSlice(cfg.Args, ctx)
	if err != nil {
		return types.ExeParams{}, fmt.Errorf("failed to resolve args: %w", err)
	}

	env := cfg.Env
	if len(cfg.Environment) > 0 {
		env = make(map[string]string, len(cfg.Env)+len(cfg.Environment))
		for k, v := range cfg.Env {
			env[k] = v
		}
		for _, e := range cfg.Environment {
			env[e.Name] = e.Value
		}
	}
	env, err = ResolveStringMap(env, ctx)
	if err != nil {
		return types.ExeParams{}, fmt.Errorf("failed to resolve env: %w", err)
	}

	if ctx.WorkspaceFolder != "" {
		if cwd != "" && !filepath.IsAbs(cwd) {
			cwd = filepath.Join(ctx.WorkspaceFolder, cwd)
		}
		if !filepath.IsAbs(program) {
			program = filepath.Join(ctx.WorkspaceFolder, program)
		}
	}

	return types.ExeParams{
		ExePath:     program,
		WorkingDir:  cwd,
		Args:        args,
		Env:         env,
		StopOnEntry: cfg.StopOnEntry,
	}, nil
}
