package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ctagard/lodeb/internal/adapters"
	"github.com/ctagard/lodeb/internal/config"
	"github.com/ctagard/lodeb/internal/engine"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/launchconfig"
	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/internal/mcp"
	"github.com/ctagard/lodeb/internal/session"
	"github.com/ctagard/lodeb/pkg/types"
)

func run(cmd *cobra.Command, cfg *config.Config, f *flags) error {
	log, closeLog, err := logging.Open(cfg.Log.File, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)

	workspace := f.workspace
	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	var imported *types.ExeParams
	if cmd.Flags().Changed("launch-config") {
		p, kind, err := importLaunchConfig(workspace, f.launchConfig)
		if err != nil {
			return err
		}
		imported = &p
		// An explicit --adapter wins over the configuration type
		if kind != "" && !cmd.Flags().Changed("adapter") {
			cfg.Adapter = kind
		}
		log.Info("imported launch configuration", "exe", p.ExePath, "adapter", cfg.Adapter)
	}

	adapter, err := adapters.NewRegistry(cfg).Get(cfg.Adapter)
	if err != nil {
		return err
	}
	if _, err := adapters.LookPath(adapter); err != nil {
		log.Warn("debug adapter not found on PATH", "adapter", adapter.Kind(), "error", err)
	}

	eng := engine.NewDAP(adapter, engine.Options{
		RequestTimeout: cfg.Timeouts.Request,
		LaunchTimeout:  cfg.Timeouts.Launch,
		Logger:         log,
	})
	defer func() { _ = eng.Close() }()

	st := session.NewState(eng, session.Options{
		MaxOutputBytes: cfg.Output.MaxBytes,
		Logger:         log,
	})
	if err := session.Load(st, cfg.StatePath); err != nil {
		if lodeberrors.Is(err, lodeberrors.CodeConfigNotFound) {
			log.Debug("no session file", "path", cfg.StatePath)
		} else {
			log.Warn("failed to restore session", "path", cfg.StatePath, "error", err)
		}
	}
	if imported != nil {
		st.SetExeParams(*imported)
		if err := st.RequestLoad(); err != nil {
			return err
		}
	}

	driver := session.NewDriver(st, session.DriverOptions{
		StatePath:    cfg.StatePath,
		PollInterval: cfg.PollInterval,
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.Run(ctx)
	})

	if cfg.MCP.Enabled {
		srv := mcp.NewServer(st, mcp.Options{
			Version:     version,
			StopTimeout: cfg.Timeouts.Launch,
			SymbolLimit: cfg.Symbols.MaxResults,
			Workspace:   workspace,
			Logger:      log,
		})
		g.Go(func() error {
			defer stop()
			err := srv.Serve(ctx)
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return err
		})
	} else {
		log.Info("running without MCP server, waiting for a signal")
	}

	log.Info("lodeb started", "version", version, "adapter", cfg.Adapter, "state", cfg.StatePath)
	err = g.Wait()
	log.Info("lodeb stopped")
	return err
}

// importLaunchConfig resolves the named launch.json configuration found
// from workspace into executable parameters
func importLaunchConfig(workspace, name string) (types.ExeParams, config.AdapterKind, error) {
	path, err := launchconfig.Discover(workspace)
	if err != nil {
		return types.ExeParams{}, "", err
	}
	lj, err := launchconfig.LoadFromPath(path)
	if err != nil {
		return types.ExeParams{}, "", err
	}
	dc, err := lj.Find(name)
	if err != nil {
		return types.ExeParams{}, "", err
	}

	root := launchconfig.WorkspaceFolder(path)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	p, err := launchconfig.ToExeParams(dc, &launchconfig.ResolutionContext{
		WorkspaceFolder: root,
		InputValues:     lj.Defaults(),
	})
	if err != nil {
		return types.ExeParams{}, "", err
	}

	kind, _ := dc.Adapter()
	return p, kind, nil
}
