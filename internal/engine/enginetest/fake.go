// Package enginetest provides an in-memory engine.Engine for tests of the
// session core.
package enginetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ctagard/lodeb/internal/engine"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/symbols"
	"github.com/ctagard/lodeb/pkg/types"
)

// Operation names recorded by Fake and accepted by Fail
const (
	OpLoad             = "load"
	OpLaunch           = "launch"
	OpSetBreakpoint    = "set_breakpoint"
	OpRemoveBreakpoint = "remove_breakpoint"
	OpStepIn           = "step_in"
	OpStepOver         = "step_over"
	OpContinue         = "continue"
	OpKill             = "kill"
	OpResolveSymbols   = "resolve_symbols"
	OpFrames           = "frames"
	OpFrameVariables   = "frame_variables"
)

// Target is the fake's loaded target
type Target struct {
	params types.ExeParams
}

// Params implements engine.Target
func (t *Target) Params() types.ExeParams { return t.params }

// Process is the fake's launched process
type Process struct {
	id string
}

// ID implements engine.Process
func (p *Process) ID() string { return p.id }

// Call is one recorded engine invocation
type Call struct {
	Op  string
	Loc types.Location
}

// ResolveFunc replaces the fake's symbol resolution
type ResolveFunc func(ctx context.Context, t engine.Target) (*symbols.Table, error)

// Fake records every call and answers from canned data.
// Pushed events are buffered; tests drain them through a session driver.
type Fake struct {
	mu sync.Mutex

	calls    []Call
	fail     map[string]error
	rejected map[types.Location]bool

	frames []types.Frame
	vars   map[int][]engine.Variable

	resolve ResolveFunc

	nextBP   uint64
	live     map[uint64]engine.BreakpointHandle
	nextProc int
	procs    map[string]bool

	events chan engine.Event
}

// New returns a fake with no frames and an empty symbol table
func New() *Fake {
	return &Fake{
		fail:     make(map[string]error),
		rejected: make(map[types.Location]bool),
		vars:     make(map[int][]engine.Variable),
		live:     make(map[uint64]engine.BreakpointHandle),
		procs:    make(map[string]bool),
		events:   make(chan engine.Event, 64),
	}
}

// Fail makes every later call of op return err; a nil err clears it
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Reject makes SetBreakpoint refuse loc
func (f *Fake) Reject(loc types.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[loc] = true
}

// SetFrames sets the stack reported for any stopped process
func (f *Fake) SetFrames(frames ...types.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = frames
}

// SetVariables sets the variables of the frame with the given id
func (f *Fake) SetVariables(frameID int, vars ...engine.Variable) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vars[frameID] = vars
}

// SetResolver replaces symbol resolution
func (f *Fake) SetResolver(fn ResolveFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolve = fn
}

// Calls returns the recorded calls in order
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how often op was called
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// LiveBreakpoints returns the breakpoints currently registered, by id
func (f *Fake) LiveBreakpoints() []engine.BreakpointHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.BreakpointHandle, 0, len(f.live))
	for _, h := range f.live {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Alive reports whether the process with id has been launched and not killed
// or exited
func (f *Fake) Alive(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[id]
}

// Push delivers ev as if the debuggee produced it
func (f *Fake) Push(ev engine.Event) {
	f.events <- ev
}

// Stop pushes a stopped event for p
func (f *Fake) Stop(p engine.Process, reason string) {
	f.Push(engine.Event{ProcessID: p.ID(), Kind: engine.EventStopped, Reason: reason, ThreadID: 1})
}

// Exit marks p dead and pushes its exit event
func (f *Fake) Exit(p engine.Process, code int) {
	f.mu.Lock()
	delete(f.procs, p.ID())
	f.mu.Unlock()
	f.Push(engine.Event{ProcessID: p.ID(), Kind: engine.EventExited, ExitCode: code})
}

// record logs a call and returns the configured failure for op
func (f *Fake) record(op string, loc types.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Loc: loc})
	return f.fail[op]
}

// LoadTarget implements engine.Engine
func (f *Fake) LoadTarget(ctx context.Context, p types.ExeParams) (engine.Target, error) {
	if err := f.record(OpLoad, types.Location{}); err != nil {
		return nil, err
	}
	return &Target{params: p.Clone()}, nil
}

// Launch implements engine.Engine
func (f *Fake) Launch(ctx context.Context, t engine.Target) (engine.Process, error) {
	if err := f.record(OpLaunch, types.Location{}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextProc++
	p := &Process{id: fmt.Sprintf("proc-%d", f.nextProc)}
	f.procs[p.id] = true
	return p, nil
}

// SetBreakpoint implements engine.Engine
func (f *Fake) SetBreakpoint(ctx context.Context, t engine.Target, loc types.Location) (engine.BreakpointHandle, error) {
	if err := f.record(OpSetBreakpoint, loc); err != nil {
		return engine.BreakpointHandle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejected[loc] {
		return engine.BreakpointHandle{}, lodeberrors.BreakpointRejected(loc.Path, loc.Line, "no code at this line", nil)
	}
	f.nextBP++
	h := engine.BreakpointHandle{ID: f.nextBP, Loc: loc}
	f.live[h.ID] = h
	return h, nil
}

// RemoveBreakpoint implements engine.Engine
func (f *Fake) RemoveBreakpoint(ctx context.Context, t engine.Target, h engine.BreakpointHandle) error {
	if err := f.record(OpRemoveBreakpoint, h.Loc); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[h.ID]; !ok {
		return lodeberrors.EngineRejected("remove breakpoint", fmt.Sprintf("unknown breakpoint %d", h.ID), nil)
	}
	delete(f.live, h.ID)
	return nil
}

func (f *Fake) control(op string, p engine.Process) error {
	if err := f.record(op, types.Location{}); err != nil {
		return err
	}
	if !f.Alive(p.ID()) {
		return lodeberrors.ProcessTerminated(0)
	}
	return nil
}

// StepIn implements engine.Engine
func (f *Fake) StepIn(ctx context.Context, p engine.Process) error { return f.control(OpStepIn, p) }

// StepOver implements engine.Engine
func (f *Fake) StepOver(ctx context.Context, p engine.Process) error {
	return f.control(OpStepOver, p)
}

// Continue implements engine.Engine
func (f *Fake) Continue(ctx context.Context, p engine.Process) error {
	return f.control(OpContinue, p)
}

// Kill implements engine.Engine
func (f *Fake) Kill(ctx context.Context, p engine.Process) error {
	err := f.record(OpKill, types.Location{})
	f.mu.Lock()
	delete(f.procs, p.ID())
	f.mu.Unlock()
	return err
}

// ResolveSymbols implements engine.Engine
func (f *Fake) ResolveSymbols(ctx context.Context, t engine.Target) (*symbols.Table, error) {
	if err := f.record(OpResolveSymbols, types.Location{}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	fn := f.resolve
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, t)
	}
	return symbols.NewTable(nil), nil
}

// Frames implements engine.Engine
func (f *Fake) Frames(ctx context.Context, p engine.Process) ([]types.Frame, error) {
	if err := f.record(OpFrames, types.Location{}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Frame(nil), f.frames...), nil
}

// FrameVariables implements engine.Engine
func (f *Fake) FrameVariables(ctx context.Context, p engine.Process, fr types.Frame) ([]engine.Variable, error) {
	if err := f.record(OpFrameVariables, fr.Location); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Variable(nil), f.vars[fr.ID]...), nil
}

// Events implements engine.Engine
func (f *Fake) Events() <-chan engine.Event { return f.events }

// Close implements engine.Engine
func (f *Fake) Close() error { return nil }

var _ engine.Engine = (*Fake)(nil)

// Struct is a Renderer with named children
type Struct struct {
	Summary string
	Fields  []engine.Variable
}

// Text implements engine.Renderer
func (s Struct) Text() string { return s.Summary }

// HasChildren implements engine.Renderer
func (s Struct) HasChildren() bool { return len(s.Fields) > 0 }

// Children implements engine.Renderer
func (s Struct) Children(context.Context) ([]engine.Variable, error) { return s.Fields, nil }
