package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ctagard/lodeb/internal/engine"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/internal/symbols"
	"github.com/ctagard/lodeb/pkg/types"
)

const (
	// maxRenderDepth bounds how deep expanded children are rendered
	maxRenderDepth = 8

	// maxTicksPerWake stops a burst of work from starving event handling
	maxTicksPerWake = 16

	defaultPollInterval = 50 * time.Millisecond
	shutdownTimeout     = 5 * time.Second
)

// DriverOptions configures a Driver
type DriverOptions struct {
	// StatePath is where the project file is written when it changes.
	// Empty disables persistence.
	StatePath    string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Driver turns the intents recorded on a State into engine calls and applies
// engine events back to it. It is the only goroutine that calls the engine.
type Driver struct {
	st        *State
	eng       engine.Engine
	statePath string
	poll      time.Duration
	log       *slog.Logger
}

// NewDriver creates a driver for st
func NewDriver(st *State, opts DriverOptions) *Driver {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Driver{
		st:        st,
		eng:       st.eng,
		statePath: opts.StatePath,
		poll:      poll,
		log:       logging.OrDefault(opts.Logger).With("component", "driver"),
	}
}

// Run drives the session until ctx is done. On the way out the process is
// killed and the project file written.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	events := d.eng.Events()
	for {
		for i := 0; i < maxTicksPerWake && ctx.Err() == nil; i++ {
			if !d.Tick(ctx) {
				break
			}
		}

		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.HandleEvent(ctx, ev)
		case <-d.st.Wake():
		case <-ticker.C:
		}
	}
}

// Settle handles queued events and ticks until no work is left.
// It does not wait for metadata resolution.
func (d *Driver) Settle(ctx context.Context) error {
	events := d.eng.Events()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		worked := false
		select {
		case ev, ok := <-events:
			if ok {
				d.HandleEvent(ctx, ev)
				worked = true
			} else {
				events = nil
			}
		default:
		}
		if d.Tick(ctx) {
			worked = true
		}
		if !worked && d.st.Idle() {
			return nil
		}
	}
}

func (d *Driver) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s := d.st
	s.resolver.Cancel()
	s.mu.Lock()
	ps, target := s.process, s.target
	s.process = nil
	s.metaGen = 0
	s.mu.Unlock()
	if ps != nil {
		d.teardown(ctx, target, ps)
	}
	if d.statePath != "" {
		if err := Store(s, d.statePath); err != nil {
			d.log.Warn("failed to store session", "path", d.statePath, "error", err)
		}
	}
}

// Tick performs at most one unit of work of each kind and reports whether
// anything was done
func (d *Driver) Tick(ctx context.Context) bool {
	worked := d.st.PollMetadata()
	for _, step := range []func(context.Context) bool{
		d.sessionCommand,
		d.toggleBreakpoint,
		d.openLocation,
		d.processCommand,
		d.selectFrame,
		d.renderVariables,
		d.persist,
	} {
		if step(ctx) {
			worked = true
		}
	}
	return worked
}

// --- session commands ---

func (d *Driver) sessionCommand(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	cmd := s.pending
	s.mu.Unlock()

	switch {
	case cmd.Has(SessionLoad):
		d.load(ctx)
	case cmd.Has(SessionStart):
		d.start(ctx)
	default:
		return false
	}
	return true
}

func (d *Driver) load(ctx context.Context) {
	s := d.st
	s.resolver.Cancel()

	s.mu.Lock()
	s.pending &^= SessionLoad
	params := s.exeParams.Clone()
	ps, old := s.detachTarget()
	s.mu.Unlock()

	if ps != nil {
		d.teardown(ctx, old, ps)
	}
	if err := s.breakpoints.Clear(ctx, d.eng, old); err != nil {
		d.log.Warn("failed to clear breakpoints of previous target", "error", err)
	}

	target, err := d.eng.LoadTarget(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.pending &^= SessionStart
		s.report(err)
		return
	}
	s.target = target
	gen := s.resolver.Start(ctx, func(ctx context.Context) (*symbols.Table, error) {
		return d.eng.ResolveSymbols(ctx, target)
	})
	s.metaGen = gen
	d.log.Info("target loaded", "exe", params.ExePath, "metadata_generation", gen)
}

func (d *Driver) start(ctx context.Context) {
	s := d.st
	s.mu.Lock()
	s.pending &^= SessionStart
	target, ps := s.target, s.process
	s.process = nil
	s.mu.Unlock()

	if target == nil {
		s.mu.Lock()
		s.report(lodeberrors.NoTarget("start"))
		s.mu.Unlock()
		return
	}
	if ps != nil {
		d.teardown(ctx, target, ps)
	}

	proc, err := d.eng.Launch(ctx, target)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.report(err)
		return
	}
	s.process = newProcessSession(proc)
	s.output.Reset()
	d.log.Info("process launched", "process", proc.ID(), "session", s.process.ID())
}

// --- breakpoints and source ---

func (d *Driver) toggleBreakpoint(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	loc, ok := s.locToToggle.Peek()
	target, loading := s.target, s.pending.Has(SessionLoad)
	if !ok || (target == nil && loading) {
		s.mu.Unlock()
		return false
	}
	if target == nil {
		s.locToToggle.Clear()
		s.report(lodeberrors.NoTarget("toggle breakpoint"))
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	set, err := s.breakpoints.Toggle(ctx, d.eng, target, loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.locToToggle.Clear()
	if err != nil {
		s.report(err)
		return true
	}
	d.log.Debug("breakpoint toggled", "location", loc.String(), "set", set)
	return true
}

func (d *Driver) openLocation(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	loc, ok := s.locToOpen.Take()
	cur := s.source
	s.mu.Unlock()
	if !ok {
		return false
	}

	var view *SourceView
	if cur != nil && cur.Path == loc.Path {
		view = cur.clone()
	} else {
		v, err := ReadSourceView(loc.Path)
		if err != nil {
			s.mu.Lock()
			s.report(err)
			s.mu.Unlock()
			return true
		}
		view = v
	}
	if loc.Line > 0 {
		view.ScrollTo(loc.Line)
	}

	s.mu.Lock()
	s.source = view
	s.dirty = true
	s.mu.Unlock()
	return true
}

// --- execution control ---

func (d *Driver) processCommand(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	ps, target := s.process, s.target
	if ps == nil || ps.pending.Kind == CmdNone {
		s.mu.Unlock()
		return false
	}
	cmd := ps.pending
	if cmd.Kind == CmdKill {
		ps.status = types.ProcessTerminating
	}
	s.mu.Unlock()

	switch cmd.Kind {
	case CmdKill:
		d.kill(ctx, target, ps)
	case CmdRunTo:
		d.runTo(ctx, target, ps, cmd)
	default:
		d.step(ctx, target, ps, cmd)
	}
	return true
}

func (d *Driver) kill(ctx context.Context, target engine.Target, ps *ProcessSession) {
	d.teardown(ctx, target, ps)

	s := d.st
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process == ps {
		s.process = nil
	}
	d.log.Info("process killed", "process", ps.proc.ID())
}

func (d *Driver) step(ctx context.Context, target engine.Target, ps *ProcessSession, cmd Command) {
	var err error
	switch cmd.Kind {
	case CmdStepIn:
		err = d.eng.StepIn(ctx, ps.proc)
	case CmdStepOver:
		err = d.eng.StepOver(ctx, ps.proc)
	case CmdContinue:
		err = d.eng.Continue(ctx, ps.proc)
	}
	d.resumed(ctx, target, ps, cmd, err)
}

func (d *Driver) runTo(ctx context.Context, target engine.Target, ps *ProcessSession, cmd Command) {
	s := d.st
	h, err := d.eng.SetBreakpoint(ctx, target, cmd.Loc)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		clearPending(ps, cmd)
		s.report(rejected("run to", cmd.Loc, err))
		return
	}

	s.mu.Lock()
	ps.transient = &h
	s.mu.Unlock()

	d.resumed(ctx, target, ps, cmd, d.eng.Continue(ctx, ps.proc))
}

// resumed applies the outcome of a command that lets the process run
func (d *Driver) resumed(ctx context.Context, target engine.Target, ps *ProcessSession, cmd Command, err error) {
	s := d.st
	s.mu.Lock()
	if s.process != ps {
		s.mu.Unlock()
		return
	}
	clearPending(ps, cmd)
	if err == nil {
		ps.resume()
		s.mu.Unlock()
		return
	}
	s.process = nil
	s.mu.Unlock()

	d.teardown(ctx, target, ps)

	s.mu.Lock()
	s.report(lodeberrors.StepFailed(cmd.String(), err))
	s.mu.Unlock()
}

// clearPending drops cmd unless a kill replaced it meanwhile
func clearPending(ps *ProcessSession, cmd Command) {
	if ps.pending == cmd {
		ps.pending = Command{}
	}
}

// teardown removes the run-to breakpoint and kills the process, best effort
func (d *Driver) teardown(ctx context.Context, target engine.Target, ps *ProcessSession) {
	d.dropTransient(ctx, target, ps)
	if err := d.eng.Kill(ctx, ps.proc); err != nil {
		d.log.Warn("failed to kill process", "process", ps.proc.ID(), "error", err)
	}
}

func (d *Driver) dropTransient(ctx context.Context, target engine.Target, ps *ProcessSession) {
	s := d.st
	s.mu.Lock()
	h := ps.transient
	ps.transient = nil
	s.mu.Unlock()

	if h == nil || target == nil {
		return
	}
	if err := d.eng.RemoveBreakpoint(ctx, target, *h); err != nil {
		d.log.Warn("failed to remove run-to breakpoint", "location", h.Loc.String(), "error", err)
	}
}

// --- stopped state ---

func (d *Driver) selectFrame(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	ps := s.process
	if ps == nil || ps.status != types.ProcessStopped {
		s.mu.Unlock()
		return false
	}
	i, ok := ps.frameToSelect.Take()
	if !ok {
		s.mu.Unlock()
		return false
	}
	if i < 0 || i >= len(ps.frames) {
		s.mu.Unlock()
		return true
	}
	f := ps.frames[i]
	s.mu.Unlock()

	vars, err := d.eng.FrameVariables(ctx, ps.proc, f)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process != ps || ps.status != types.ProcessStopped || i >= len(ps.frames) || ps.frames[i] != f {
		return true
	}
	if err != nil {
		s.report(err)
		vars = nil
	}
	ps.selectFrame(i, vars)
	if loc, ok := ps.HighlightLoc(); ok {
		s.locToOpen.Set(loc)
	}
	return true
}

func (d *Driver) renderVariables(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	ps := s.process
	if ps == nil || ps.vars == nil || !ps.vars.NeedsRender() {
		s.mu.Unlock()
		return false
	}
	vs, vars := ps.vars, ps.renderers
	names := vs.Names()
	expanded := vs.expandedPaths()
	s.mu.Unlock()

	values, children := render(ctx, names, vars, expanded)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process != ps || ps.vars != vs {
		return true
	}
	vs.applyRender(values, children)
	if !samePaths(expanded, vs.expanded) {
		vs.rendered = false
	}
	return true
}

func samePaths(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if !b[p] {
			return false
		}
	}
	return true
}

// render evaluates the text of every variable and the children of every
// expanded path. names[i] is the display name of vars[i].
func render(ctx context.Context, names []string, vars []engine.Variable, expanded map[string]bool) (map[string]string, map[string][]string) {
	values := make(map[string]string)
	children := make(map[string][]string)
	for i, v := range vars {
		if i >= len(names) {
			break
		}
		renderInto(ctx, names[i], v.Value, expanded, 0, values, children)
	}
	return values, children
}

func renderInto(ctx context.Context, path string, r engine.Renderer, expanded map[string]bool, depth int, values map[string]string, children map[string][]string) {
	if r == nil {
		values[path] = ""
		return
	}
	values[path] = r.Text()
	if !expanded[path] || !r.HasChildren() || depth >= maxRenderDepth {
		return
	}

	kids, err := r.Children(ctx)
	if err != nil {
		values[path] = r.Text() + " <" + err.Error() + ">"
		return
	}
	raw := make([]string, len(kids))
	for i, k := range kids {
		raw[i] = k.Name
	}
	kidNames := dedupeNames(raw)
	children[path] = kidNames
	for i, k := range kids {
		renderInto(ctx, ChildPath(path, kidNames[i]), k.Value, expanded, depth+1, values, children)
	}
}

// --- events ---

// HandleEvent applies an engine event. Events of any process other than the
// current one are dropped.
func (d *Driver) HandleEvent(ctx context.Context, ev engine.Event) {
	s := d.st
	s.mu.Lock()
	ps, target := s.process, s.target
	if ps == nil || ps.proc.ID() != ev.ProcessID {
		s.mu.Unlock()
		d.log.Debug("dropping event of stale process", "kind", ev.Kind.String(), "process", ev.ProcessID)
		return
	}

	switch ev.Kind {
	case engine.EventOutput:
		s.output.Append(ev.Text)
		s.mu.Unlock()

	case engine.EventContinued:
		if ps.status == types.ProcessStopped {
			if ps.pending.Kind != CmdNone && ps.pending.Kind != CmdKill {
				d.log.Debug("process resumed by the debugger, dropping command", "command", ps.pending.String())
			}
			ps.resume()
		}
		s.mu.Unlock()

	case engine.EventStopped:
		s.mu.Unlock()
		d.stopped(ctx, target, ps, ev)

	case engine.EventExited:
		s.process = nil
		s.mu.Unlock()
		d.dropTransient(ctx, target, ps)
		d.log.Info("process exited", "process", ev.ProcessID, "exit_code", ev.ExitCode)

	default:
		s.mu.Unlock()
	}
}

func (d *Driver) stopped(ctx context.Context, target engine.Target, ps *ProcessSession, ev engine.Event) {
	d.dropTransient(ctx, target, ps)

	frames, err := d.eng.Frames(ctx, ps.proc)
	var vars []engine.Variable
	var varsErr error
	if err == nil && len(frames) > 0 {
		vars, varsErr = d.eng.FrameVariables(ctx, ps.proc, frames[0])
	}

	s := d.st
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process != ps || ps.status == types.ProcessTerminating {
		return
	}
	if err != nil {
		s.report(err)
		frames = nil
	}
	if varsErr != nil {
		s.report(varsErr)
	}
	ps.stop(frames, vars)
	if loc, ok := ps.HighlightLoc(); ok {
		s.locToOpen.Set(loc)
	}
	d.log.Debug("process stopped", "process", ev.ProcessID, "reason", ev.Reason, "frames", len(frames))
}

// --- persistence ---

func (d *Driver) persist(ctx context.Context) bool {
	s := d.st
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return false
	}
	s.dirty = false
	s.mu.Unlock()

	if d.statePath == "" {
		return true
	}
	if err := Store(s, d.statePath); err != nil {
		s.mu.Lock()
		s.report(err)
		s.mu.Unlock()
	}
	return true
}
