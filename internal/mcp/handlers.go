package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/launchconfig"
	"github.com/ctagard/lodeb/internal/session"
	"github.com/ctagard/lodeb/pkg/types"
)

const defaultSourceContext = 10

// Configuration Handlers

func (s *Server) handleSetExe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exePath, err := request.RequireString("exePath")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("exePath",
			"Specify the path to the executable to debug.").Error()), nil
	}
	workingDir, err := request.RequireString("workingDir")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("workingDir",
			"Specify the directory the program runs in; a relative exePath is resolved against it.").Error()), nil
	}

	p := types.DefaultExeParams()
	p.ExePath = exePath
	p.WorkingDir = workingDir
	p.StopOnEntry = request.GetBool("stopOnEntry", false)

	if raw, err := request.RequireString("args"); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Args); err != nil {
			return mcp.NewToolResultError(errors.InvalidParameter("args", raw, "a JSON array of strings").Error()), nil
		}
	}
	if raw, err := request.RequireString("env"); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Env); err != nil {
			return mcp.NewToolResultError(errors.InvalidParameter("env", raw, "a JSON object of string values").Error()), nil
		}
	}

	s.st.SetExeParams(p)
	if request.GetBool("load", true) {
		if err := s.st.RequestLoad(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	settled := s.waitSettled(ctx)

	return s.result(settled, nil)
}

func (s *Server) handleLaunchConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspace, _ := request.RequireString("workspace")
	if workspace == "" {
		workspace = s.workspace
	}

	configPath, _ := request.RequireString("configPath")
	if configPath == "" {
		found, err := launchconfig.Discover(workspace)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		configPath = found
	}
	if workspace == "" {
		workspace = launchconfig.WorkspaceFolder(configPath)
	}

	lj, err := launchconfig.LoadFromPath(configPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inputs := lj.Defaults()
	if raw, err := request.RequireString("inputValues"); err == nil && raw != "" {
		var provided map[string]string
		if err := json.Unmarshal([]byte(raw), &provided); err != nil {
			return mcp.NewToolResultError(errors.InvalidParameter("inputValues", raw, "a JSON object of string values").Error()), nil
		}
		for k, v := range provided {
			inputs[k] = v
		}
	}

	configName, _ := request.RequireString("configName")
	cfg, err := lj.Find(configName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rc := &launchconfig.ResolutionContext{
		WorkspaceFolder: workspace,
		InputValues:     inputs,
	}
	if src := s.st.Source(); src != nil {
		rc.CurrentFile = src.Path
	}
	p, err := launchconfig.ToExeParams(cfg, rc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.st.SetExeParams(p)
	if err := s.st.RequestLoad(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	settled := s.waitSettled(ctx)

	extra := map[string]interface{}{
		"configPath": configPath,
		"configName": cfg.Name,
	}
	if kind, ok := cfg.Adapter(); ok {
		extra["adapter"] = string(kind)
	}
	return s.result(settled, extra)
}

func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.st.RequestLoad(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.result(s.waitSettled(ctx), nil)
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.st.RequestStart(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if request.GetBool("wait", false) {
		return s.result(s.waitStopped(ctx), nil)
	}
	return s.result(s.waitSettled(ctx), nil)
}

// Source and Breakpoint Handlers

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("path", "Specify the source file to open.").Error()), nil
	}
	loc := types.Location{Path: path}
	if line, err := request.RequireFloat("line"); err == nil {
		loc.Line = int(line)
	}

	if err := s.st.RequestOpen(loc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.result(s.waitSettled(ctx), nil)
}

func (s *Server) handleSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := s.st.Source()
	if src == nil {
		return mcp.NewToolResultError("no source file is open | Hint: Use lodeb_open, or stop the process in known source."), nil
	}
	snap := s.st.Snapshot()

	var current int
	if snap.Process != nil && snap.Process.HighlightLoc != nil && snap.Process.HighlightLoc.Path == src.Path {
		current = snap.Process.HighlightLoc.Line
	}

	center := current
	if scroll, ok := s.st.TakeScroll(); ok {
		center = scroll
	}
	if line, err := request.RequireFloat("line"); err == nil {
		center = int(line)
	}
	if center < 1 {
		center = 1
	}

	around := defaultSourceContext
	if n, err := request.RequireFloat("context"); err == nil && n >= 0 {
		around = int(n)
	}

	all := src.Lines()
	first := max(center-around, 1)
	last := min(center+around, len(all))

	lines := make([]map[string]interface{}, 0, max(last-first+1, 0))
	for n := first; n <= last; n++ {
		line := map[string]interface{}{
			"line": n,
			"text": all[n-1],
		}
		if s.st.Breakpoints().Has(types.Location{Path: src.Path, Line: n}) {
			line["breakpoint"] = true
		}
		if n == current {
			line["current"] = true
		}
		lines = append(lines, line)
	}

	return jsonResult(map[string]interface{}{
		"path":       src.Path,
		"totalLines": len(all),
		"lines":      lines,
	})
}

func (s *Server) handleToggleBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := locationParams(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.st.RequestToggleBreakpoint(loc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	settled := s.waitSettled(ctx)

	return s.result(settled, map[string]interface{}{
		"location": loc,
		"set":      s.st.Breakpoints().Has(loc),
	})
}

func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("query", "Specify part of a function name.").Error()), nil
	}
	limit := s.symbolLimit
	if n, err := request.RequireFloat("limit"); err == nil && n > 0 {
		limit = int(n)
	}

	if request.GetBool("wait", true) && s.st.MetadataPending() {
		waitCtx, cancel := context.WithTimeout(ctx, s.stop)
		err := s.st.WaitMetadata(waitCtx)
		cancel()
		if err != nil && waitCtx.Err() == nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	s.st.SetSearchText(query)
	_, ready := s.st.Metadata()
	matches := s.st.SearchSymbols(limit)

	results := make([]map[string]interface{}, len(matches))
	for i, m := range matches {
		results[i] = map[string]interface{}{
			"name": m.Name,
			"path": m.Loc.Path,
			"line": m.Loc.Line,
		}
	}

	return jsonResult(map[string]interface{}{
		"query":   query,
		"ready":   ready,
		"symbols": results,
	})
}

// Execution Control Handlers

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("type", "Use 'over' or 'in'.").Error()), nil
	}

	var cmd session.Command
	switch stepType {
	case "over":
		cmd = session.StepOverCommand()
	case "in", "into":
		cmd = session.StepInCommand()
	default:
		return mcp.NewToolResultError(errors.InvalidParameter("type", stepType, "'over' or 'in'").Error()), nil
	}

	return s.control(ctx, cmd, true)
}

func (s *Server) handleContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.control(ctx, session.ContinueCommand(), request.GetBool("wait", true))
}

func (s *Server) handleRunToLine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := locationParams(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.control(ctx, session.RunToCommand(loc), request.GetBool("wait", true))
}

func (s *Server) handleKill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.control(ctx, session.KillCommand(), false)
}

// control records cmd and waits for the driver, and optionally for the stop
func (s *Server) control(ctx context.Context, cmd session.Command, wait bool) (*mcp.CallToolResult, error) {
	if err := s.st.RequestProcess(cmd); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Debug("command requested", "command", cmd.String())
	if wait {
		return s.result(s.waitStopped(ctx), nil)
	}
	return s.result(s.waitSettled(ctx), nil)
}

// Inspection Handlers

func (s *Server) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.result(true, nil)
}

func (s *Server) handleSelectFrame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := request.RequireFloat("index")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("index", "Specify the frame index from the stack in lodeb_snapshot.").Error()), nil
	}
	if err := s.st.RequestSelectFrame(int(index)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.result(s.waitSettled(ctx), nil)
}

func (s *Server) handleToggleVariable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("path", "Specify the variable name as shown in lodeb_snapshot.").Error()), nil
	}
	expanded, err := s.st.ToggleVariable(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	settled := s.waitSettled(ctx)

	return s.result(settled, map[string]interface{}{
		"path":     path,
		"expanded": expanded,
	})
}

func (s *Server) handleOutput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := s.st.Output()
	if n, err := request.RequireFloat("tail"); err == nil && n >= 0 && int(n) < len(out) {
		out = out[len(out)-int(n):]
	}
	return jsonResult(map[string]interface{}{
		"output": out,
	})
}

// Helpers

func locationParams(request mcp.CallToolRequest) (types.Location, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return types.Location{}, errors.MissingParameter("path", "Specify the source file path.")
	}
	line, err := request.RequireFloat("line")
	if err != nil {
		return types.Location{}, errors.MissingParameter("line", "Specify the 1-based line number.")
	}
	if line < 1 {
		return types.Location{}, errors.InvalidParameter("line", line, "a line number >= 1")
	}
	return types.Location{Path: path, Line: int(line)}, nil
}

// waitSettled waits until the driver has consumed every intent. It reports
// false on timeout.
func (s *Server) waitSettled(ctx context.Context) bool {
	return s.waitFor(ctx, s.settle, s.st.Idle)
}

// waitStopped additionally waits for the process to stop or go away
func (s *Server) waitStopped(ctx context.Context) bool {
	return s.waitFor(ctx, s.stop, func() bool {
		if !s.st.Idle() {
			return false
		}
		p := s.st.Snapshot().Process
		return p == nil || p.Status != types.ProcessRunning
	})
}

func (s *Server) waitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return cond()
		case <-ticker.C:
			if cond() {
				return true
			}
		}
	}
}

// result returns the session snapshot, the errors reported since the last
// call and any tool-specific fields
func (s *Server) result(settled bool, extra map[string]interface{}) (*mcp.CallToolResult, error) {
	out := map[string]interface{}{
		"session": s.st.Snapshot(),
	}
	if !settled {
		out["pending"] = true
	}
	if errs := s.st.TakeErrors(); len(errs) > 0 {
		list := make([]*errors.DebugError, len(errs))
		for i, err := range errs {
			list[i] = errors.FromError(err)
		}
		out["errors"] = list
	}
	for k, v := range extra {
		out[k] = v
	}
	return jsonResult(out)
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
