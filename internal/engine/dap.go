package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	godap "github.com/google/go-dap"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/ctagard/lodeb/internal/adapters"
	"github.com/ctagard/lodeb/internal/dap"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/internal/symbols"
	"github.com/ctagard/lodeb/pkg/types"
)

// maxFrames bounds a single stack trace request
const maxFrames = 64

// killTimeout bounds each graceful step of Kill before the process group is killed
const killTimeout = 2 * time.Second

// Options configures a DAP engine
type Options struct {
	RequestTimeout time.Duration
	LaunchTimeout  time.Duration
	Logger         *slog.Logger
}

// DAP implements Engine on top of a Debug Adapter Protocol server.
// Every launched process gets a fresh adapter instance.
type DAP struct {
	adapter adapters.Adapter
	opts    Options
	log     *slog.Logger

	events    *eventPump
	handleSeq *atomic.Uint64

	mu     sync.Mutex
	procs  map[string]*dapProcess
	closed bool
}

// NewDAP creates an engine that drives adapter
func NewDAP(adapter adapters.Adapter, opts Options) *DAP {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = dap.DefaultTimeout
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 30 * time.Second
	}
	return &DAP{
		adapter:   adapter,
		opts:      opts,
		log:       logging.OrDefault(opts.Logger),
		events:    newEventPump(),
		handleSeq: atomic.NewUint64(0),
		procs:     make(map[string]*dapProcess),
	}
}

type dapTarget struct {
	params types.ExeParams

	mu       sync.Mutex
	registry *lineRegistry
	handles  map[uint64]types.Location
	live     *dapProcess
}

// Params implements Target
func (t *dapTarget) Params() types.ExeParams { return t.params.Clone() }

// sourcePath makes a breakpoint path absolute against the working directory
func (t *dapTarget) sourcePath(p string) string {
	if filepath.IsAbs(p) || t.params.WorkingDir == "" {
		return p
	}
	return filepath.Join(t.params.WorkingDir, p)
}

type dapProcess struct {
	id     string
	target *dapTarget
	conn   *adapters.Connection

	mu       sync.Mutex
	threadID int
	exitCode int

	// set once the exit has been reported or the process was killed
	finished *atomic.Bool
}

// ID implements Process
func (p *dapProcess) ID() string { return p.id }

func (p *dapProcess) client() *dap.Client { return p.conn.Client }

// LoadTarget implements Engine. It checks the executable and working
// directory and that the adapter binary can be found.
func (e *DAP) LoadTarget(ctx context.Context, p types.ExeParams) (Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, lodeberrors.LoadFailed(p.ExePath, err)
	}

	params := p.Clone()
	if params.WorkingDir != "" {
		info, err := os.Stat(params.WorkingDir)
		if err != nil {
			return nil, lodeberrors.LoadFailed(p.ExePath, fmt.Errorf("working directory: %w", err))
		}
		if !info.IsDir() {
			return nil, lodeberrors.LoadFailed(p.ExePath, fmt.Errorf("working directory %s is not a directory", params.WorkingDir))
		}
	}

	if !filepath.IsAbs(params.ExePath) && params.WorkingDir != "" {
		params.ExePath = filepath.Join(params.WorkingDir, params.ExePath)
	}
	info, err := os.Stat(params.ExePath)
	if err != nil {
		return nil, lodeberrors.LoadFailed(p.ExePath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, lodeberrors.LoadFailed(p.ExePath, fmt.Errorf("%s is not a regular file", params.ExePath))
	}

	if _, err := adapters.LookPath(e.adapter); err != nil {
		return nil, lodeberrors.LoadFailed(p.ExePath, err)
	}

	e.log.Info("target loaded", "exe", params.ExePath, "adapter", e.adapter.Kind())
	return &dapTarget{
		params:   params,
		registry: newLineRegistry(),
		handles:  make(map[uint64]types.Location),
	}, nil
}

func (e *DAP) target(t Target) (*dapTarget, error) {
	dt, ok := t.(*dapTarget)
	if !ok || dt == nil {
		return nil, fmt.Errorf("target %T was not loaded by this engine", t)
	}
	return dt, nil
}

func (e *DAP) process(p Process) (*dapProcess, error) {
	if p == nil {
		return nil, lodeberrors.NoProcess("engine command")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	dp, ok := e.procs[p.ID()]
	if !ok {
		return nil, lodeberrors.ProcessTerminated(0).WithDetails("processId", p.ID())
	}
	return dp, nil
}

// Launch implements Engine
func (e *DAP) Launch(ctx context.Context, t Target) (Process, error) {
	dt, err := e.target(t)
	if err != nil {
		return nil, lodeberrors.LaunchFailed("", err)
	}
	exe := dt.params.ExePath

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, lodeberrors.LaunchFailed(exe, fmt.Errorf("engine is closed"))
	}

	conn, err := e.adapter.Spawn(ctx, dt.params.WorkingDir, e.log)
	if err != nil {
		return nil, lodeberrors.LaunchFailed(exe, err)
	}
	conn.Client.SetTimeout(e.opts.RequestTimeout)

	proc := &dapProcess{
		id:       uuid.New().String(),
		target:   dt,
		conn:     conn,
		finished: atomic.NewBool(false),
	}
	conn.Client.SetEventHandler(func(msg godap.EventMessage) { e.onEvent(proc, msg) })

	if err := e.configure(ctx, dt, proc); err != nil {
		if cerr := conn.Close(); cerr != nil {
			e.log.Warn("failed to close adapter after launch failure, continuing cleanup", "error", cerr)
		}
		return nil, lodeberrors.LaunchFailed(exe, err)
	}

	e.mu.Lock()
	e.procs[proc.id] = proc
	e.mu.Unlock()

	dt.mu.Lock()
	dt.live = proc
	dt.mu.Unlock()

	go e.watch(proc)

	e.log.Info("process launched", "processId", proc.id, "exe", exe)
	return proc, nil
}

// configure runs the DAP launch handshake
func (e *DAP) configure(ctx context.Context, dt *dapTarget, proc *dapProcess) error {
	c := proc.client()

	if _, err := c.Initialize(ctx, "lodeb", "lodeb"); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	respCh, err := c.LaunchAsync(e.adapter.LaunchArgs(dt.params))
	if err != nil {
		return fmt.Errorf("launch: %w", err)
	}

	if err := c.WaitInitialized(ctx, e.opts.LaunchTimeout); err != nil {
		return err
	}

	dt.mu.Lock()
	for _, path := range dt.registry.paths() {
		lines := dt.registry.lines(path)
		bps, err := c.SetBreakpoints(ctx, dt.sourcePath(path), lines)
		if err != nil {
			dt.mu.Unlock()
			return fmt.Errorf("setBreakpoints %s: %w", path, err)
		}
		for i, bp := range bps {
			if !bp.Verified && i < len(lines) {
				e.log.Warn("breakpoint not verified at launch", "path", path, "line", lines[i], "message", bp.Message)
			}
		}
	}
	dt.mu.Unlock()

	if err := c.ConfigurationDone(ctx); err != nil {
		return fmt.Errorf("configurationDone: %w", err)
	}

	if _, err := c.WaitForLaunchResponse(ctx, respCh, e.opts.LaunchTimeout); err != nil {
		return err
	}
	return nil
}

// watch reports an exit when the adapter vanishes without saying goodbye
func (e *DAP) watch(proc *dapProcess) {
	<-proc.client().Done()
	e.finish(proc, -1)
}

// finish reports the exit of proc once and releases its adapter
func (e *DAP) finish(proc *dapProcess, exitCode int) {
	if !proc.finished.CompareAndSwap(false, true) {
		return
	}
	e.events.Push(Event{ProcessID: proc.id, Kind: EventExited, ExitCode: exitCode})
	// Close waits for the read goroutine, which may be the caller
	go e.release(proc)
}

func (e *DAP) release(proc *dapProcess) {
	e.mu.Lock()
	delete(e.procs, proc.id)
	e.mu.Unlock()

	dt := proc.target
	dt.mu.Lock()
	if dt.live == proc {
		dt.live = nil
	}
	dt.mu.Unlock()

	if err := proc.conn.Close(); err != nil {
		e.log.Debug("adapter close", "processId", proc.id, "error", err)
	}
}

// onEvent runs on the adapter's read goroutine
func (e *DAP) onEvent(proc *dapProcess, msg godap.EventMessage) {
	switch m := msg.(type) {
	case *godap.StoppedEvent:
		if m.Body.ThreadId != 0 {
			proc.mu.Lock()
			proc.threadID = m.Body.ThreadId
			proc.mu.Unlock()
		}
	case *godap.ExitedEvent:
		proc.mu.Lock()
		proc.exitCode = m.Body.ExitCode
		proc.mu.Unlock()
		e.finish(proc, m.Body.ExitCode)
		return
	case *godap.TerminatedEvent:
		proc.mu.Lock()
		code := proc.exitCode
		proc.mu.Unlock()
		e.finish(proc, code)
		return
	}

	if proc.finished.Load() {
		return
	}
	if ev, ok := translate(proc.id, msg); ok {
		e.events.Push(ev)
	}
}

// translate maps a DAP event to an engine Event
func translate(processID string, msg godap.EventMessage) (Event, bool) {
	switch m := msg.(type) {
	case *godap.StoppedEvent:
		return Event{ProcessID: processID, Kind: EventStopped, Reason: m.Body.Reason, ThreadID: m.Body.ThreadId}, true
	case *godap.ContinuedEvent:
		return Event{ProcessID: processID, Kind: EventContinued, ThreadID: m.Body.ThreadId}, true
	case *godap.ExitedEvent:
		return Event{ProcessID: processID, Kind: EventExited, ExitCode: m.Body.ExitCode}, true
	case *godap.OutputEvent:
		if m.Body.Category == "telemetry" || m.Body.Output == "" {
			return Event{}, false
		}
		category := m.Body.Category
		if category == "" {
			category = "console"
		}
		return Event{ProcessID: processID, Kind: EventOutput, Category: category, Text: m.Body.Output}, true
	}
	return Event{}, false
}

// SetBreakpoint implements Engine. Before a process exists the location is
// checked against the file on disk; with a live process the adapter must
// verify it.
func (e *DAP) SetBreakpoint(ctx context.Context, t Target, loc types.Location) (BreakpointHandle, error) {
	dt, err := e.target(t)
	if err != nil {
		return BreakpointHandle{}, lodeberrors.BreakpointRejected(loc.Path, loc.Line, err.Error(), err)
	}

	dt.mu.Lock()
	defer dt.mu.Unlock()

	if dt.live == nil {
		if err := checkSourceLine(dt.sourcePath(loc.Path), loc.Line); err != nil {
			return BreakpointHandle{}, lodeberrors.BreakpointRejected(loc.Path, loc.Line, err.Error(), err)
		}
	}

	if dt.registry.add(loc) && dt.live != nil {
		if err := e.verifyLine(ctx, dt, loc); err != nil {
			dt.registry.remove(loc)
			e.resync(ctx, dt, loc.Path)
			return BreakpointHandle{}, err
		}
	}

	h := BreakpointHandle{ID: e.handleSeq.Inc(), Loc: loc}
	dt.handles[h.ID] = loc
	return h, nil
}

// verifyLine sends the file's line set and checks the adapter verified loc
func (e *DAP) verifyLine(ctx context.Context, dt *dapTarget, loc types.Location) error {
	lines := dt.registry.lines(loc.Path)
	bps, err := dt.live.client().SetBreakpoints(ctx, dt.sourcePath(loc.Path), lines)
	if err != nil {
		return lodeberrors.BreakpointRejected(loc.Path, loc.Line, err.Error(), err)
	}
	for i, line := range lines {
		if line != loc.Line {
			continue
		}
		if i >= len(bps) {
			break
		}
		if !bps[i].Verified {
			reason := bps[i].Message
			if reason == "" {
				reason = "not verified"
			}
			return lodeberrors.BreakpointRejected(loc.Path, loc.Line, reason, nil)
		}
		return nil
	}
	return lodeberrors.BreakpointRejected(loc.Path, loc.Line, "adapter returned no breakpoint for the line", nil)
}

// resync re-sends a file's line set after a rollback, best effort
func (e *DAP) resync(ctx context.Context, dt *dapTarget, path string) {
	if dt.live == nil {
		return
	}
	if _, err := dt.live.client().SetBreakpoints(ctx, dt.sourcePath(path), dt.registry.lines(path)); err != nil {
		e.log.Warn("failed to restore breakpoints, continuing", "path", path, "error", err)
	}
}

// RemoveBreakpoint implements Engine
func (e *DAP) RemoveBreakpoint(ctx context.Context, t Target, h BreakpointHandle) error {
	dt, err := e.target(t)
	if err != nil {
		return lodeberrors.EngineRejected("remove breakpoint", err.Error(), err)
	}

	dt.mu.Lock()
	defer dt.mu.Unlock()

	loc, ok := dt.handles[h.ID]
	if !ok {
		return lodeberrors.EngineRejected("remove breakpoint", fmt.Sprintf("unknown handle %d", h.ID), nil)
	}

	if dt.registry.remove(loc) && dt.live != nil {
		_, err := dt.live.client().SetBreakpoints(ctx, dt.sourcePath(loc.Path), dt.registry.lines(loc.Path))
		if err != nil {
			dt.registry.add(loc)
			return lodeberrors.EngineRejected("remove breakpoint", err.Error(), err)
		}
	}
	delete(dt.handles, h.ID)
	return nil
}

// threadID returns the thread that last stopped, asking the adapter when
// no stop has named one yet
func (e *DAP) threadID(ctx context.Context, proc *dapProcess) (int, error) {
	proc.mu.Lock()
	tid := proc.threadID
	proc.mu.Unlock()
	if tid != 0 {
		return tid, nil
	}

	threads, err := proc.client().Threads(ctx)
	if err != nil {
		return 0, err
	}
	if len(threads) == 0 {
		return 0, fmt.Errorf("process has no threads")
	}

	proc.mu.Lock()
	proc.threadID = threads[0].Id
	proc.mu.Unlock()
	return threads[0].Id, nil
}

func (e *DAP) control(ctx context.Context, p Process, op string, send func(*dap.Client, context.Context, int) error) error {
	proc, err := e.process(p)
	if err != nil {
		return err
	}
	tid, err := e.threadID(ctx, proc)
	if err != nil {
		return lodeberrors.EngineRejected(op, err.Error(), err)
	}
	if err := send(proc.client(), ctx, tid); err != nil {
		return lodeberrors.EngineRejected(op, err.Error(), err)
	}
	return nil
}

// StepIn implements Engine
func (e *DAP) StepIn(ctx context.Context, p Process) error {
	return e.control(ctx, p, "step in", (*dap.Client).StepIn)
}

// StepOver implements Engine
func (e *DAP) StepOver(ctx context.Context, p Process) error {
	return e.control(ctx, p, "step over", (*dap.Client).Next)
}

// Continue implements Engine
func (e *DAP) Continue(ctx context.Context, p Process) error {
	return e.control(ctx, p, "continue", (*dap.Client).Continue)
}

// Kill implements Engine. It asks the adapter to terminate the debuggee,
// then disconnects, then kills the adapter's process group.
func (e *DAP) Kill(ctx context.Context, p Process) error {
	proc, err := e.process(p)
	if err != nil {
		// already gone
		return nil
	}
	// suppress the exit event for a process the session tore down itself
	proc.finished.Store(true)

	c := proc.client()
	if c.Capabilities().SupportsTerminateRequest {
		tctx, cancel := context.WithTimeout(ctx, killTimeout)
		if err := c.Terminate(tctx); err != nil {
			e.log.Warn("terminate request failed, continuing cleanup", "processId", proc.id, "error", err)
		}
		cancel()
	}

	dctx, cancel := context.WithTimeout(ctx, killTimeout)
	if err := c.Disconnect(dctx, true); err != nil {
		e.log.Warn("disconnect failed, continuing cleanup", "processId", proc.id, "error", err)
	}
	cancel()

	e.release(proc)
	e.log.Info("process killed", "processId", proc.id)
	return nil
}

// ResolveSymbols implements Engine
func (e *DAP) ResolveSymbols(ctx context.Context, t Target) (*symbols.Table, error) {
	dt, err := e.target(t)
	if err != nil {
		return nil, err
	}
	return symbols.LoadContext(ctx, dt.params.ExePath)
}

// Frames implements Engine
func (e *DAP) Frames(ctx context.Context, p Process) ([]types.Frame, error) {
	proc, err := e.process(p)
	if err != nil {
		return nil, err
	}
	tid, err := e.threadID(ctx, proc)
	if err != nil {
		return nil, lodeberrors.EngineRejected("stack trace", err.Error(), err)
	}

	stack, err := proc.client().StackTrace(ctx, tid, 0, maxFrames)
	if err != nil {
		return nil, lodeberrors.EngineRejected("stack trace", err.Error(), err)
	}

	frames := make([]types.Frame, len(stack))
	for i, sf := range stack {
		frames[i] = types.Frame{
			ID:       sf.Id,
			Index:    i,
			Name:     sf.Name,
			ThreadID: tid,
		}
		if sf.Source != nil {
			frames[i].Location = types.Location{Path: sf.Source.Path, Line: sf.Line}
		}
	}
	return frames, nil
}

// FrameVariables implements Engine. Arguments and locals are returned;
// registers and globals are left out.
func (e *DAP) FrameVariables(ctx context.Context, p Process, f types.Frame) ([]Variable, error) {
	proc, err := e.process(p)
	if err != nil {
		return nil, err
	}
	c := proc.client()

	scopes, err := c.Scopes(ctx, f.ID)
	if err != nil {
		return nil, lodeberrors.EngineRejected("scopes", err.Error(), err)
	}

	var out []Variable
	for _, scope := range frameScopes(scopes) {
		vars, err := c.Variables(ctx, scope.VariablesReference)
		if err != nil {
			return nil, lodeberrors.EngineRejected("variables", err.Error(), err)
		}
		out = append(out, wrapVariables(c, vars)...)
	}
	return out, nil
}

// frameScopes picks the argument and local scopes, falling back to the first
// scope when the adapter labels none of them
func frameScopes(scopes []godap.Scope) []godap.Scope {
	var picked []godap.Scope
	for _, s := range scopes {
		hint := strings.ToLower(s.PresentationHint)
		name := strings.ToLower(s.Name)
		switch {
		case hint == "arguments" || hint == "locals":
			picked = append(picked, s)
		case hint == "" && (strings.Contains(name, "local") || strings.Contains(name, "argument")):
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 && len(scopes) > 0 && !scopes[0].Expensive {
		picked = scopes[:1]
	}
	return picked
}

func wrapVariables(c *dap.Client, vars []godap.Variable) []Variable {
	out := make([]Variable, len(vars))
	for i, v := range vars {
		out[i] = Variable{Name: v.Name, Value: &dapValue{client: c, text: v.Value, ref: v.VariablesReference}}
	}
	return out
}

// dapValue renders a DAP variable, fetching children on demand
type dapValue struct {
	client *dap.Client
	text   string
	ref    int
}

func (v *dapValue) Text() string      { return v.text }
func (v *dapValue) HasChildren() bool { return v.ref > 0 }

func (v *dapValue) Children(ctx context.Context) ([]Variable, error) {
	if v.ref <= 0 {
		return nil, nil
	}
	vars, err := v.client.Variables(ctx, v.ref)
	if err != nil {
		return nil, err
	}
	return wrapVariables(v.client, vars), nil
}

// Events implements Engine
func (e *DAP) Events() <-chan Event {
	return e.events.Out()
}

// Close kills every live process and stops event delivery
func (e *DAP) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	procs := make([]*dapProcess, 0, len(e.procs))
	for _, p := range e.procs {
		procs = append(procs, p)
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*killTimeout)
	defer cancel()
	for _, p := range procs {
		if err := e.Kill(ctx, p); err != nil {
			e.log.Warn("failed to kill process on close, continuing cleanup", "processId", p.id, "error", err)
		}
	}

	e.events.Close()
	return nil
}

var _ Engine = (*DAP)(nil)
