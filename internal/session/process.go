package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ctagard/lodeb/internal/engine"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/pkg/types"
)

// CommandKind enumerates execution-control requests
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdStepIn
	CmdStepOver
	CmdContinue
	CmdRunTo
	CmdKill
)

// Command is the single outstanding execution-control request of a process.
// Loc is only meaningful for CmdRunTo.
type Command struct {
	Kind CommandKind
	Loc  types.Location
}

// StepInCommand requests a step into the next call
func StepInCommand() Command { return Command{Kind: CmdStepIn} }

// StepOverCommand requests a step over the current line
func StepOverCommand() Command { return Command{Kind: CmdStepOver} }

// ContinueCommand resumes until the next stop
func ContinueCommand() Command { return Command{Kind: CmdContinue} }

// RunToCommand resumes until loc is reached
func RunToCommand(loc types.Location) Command { return Command{Kind: CmdRunTo, Loc: loc} }

// KillCommand terminates the process
func KillCommand() Command { return Command{Kind: CmdKill} }

func (c Command) String() string {
	switch c.Kind {
	case CmdNone:
		return "none"
	case CmdStepIn:
		return "step in"
	case CmdStepOver:
		return "step over"
	case CmdContinue:
		return "continue"
	case CmdRunTo:
		return "run to " + c.Loc.String()
	case CmdKill:
		return "kill"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(c.Kind))
	}
}

// ProcessSession is the execution-control state of one launched process.
// It is owned by State and only touched under its lock.
type ProcessSession struct {
	id     string
	proc   engine.Process
	status types.ProcessStatus

	pending   Command
	transient *engine.BreakpointHandle

	frames    []types.Frame
	selected  int
	highlight types.Location

	vars      *VariableState
	retired   *VariableState
	renderers []engine.Variable

	frameToSelect OneShot[int]
}

func newProcessSession(proc engine.Process) *ProcessSession {
	return &ProcessSession{
		id:       uuid.NewString(),
		proc:     proc,
		status:   types.ProcessRunning,
		selected: -1,
	}
}

// ID is unique per launch
func (p *ProcessSession) ID() string { return p.id }

// Handle returns the engine process
func (p *ProcessSession) Handle() engine.Process { return p.proc }

// Status returns the execution state
func (p *ProcessSession) Status() types.ProcessStatus { return p.status }

// Pending returns the outstanding command
func (p *ProcessSession) Pending() Command { return p.pending }

// ShouldKill reports a pending kill
func (p *ProcessSession) ShouldKill() bool { return p.pending.Kind == CmdKill }

// ShouldStepIn reports a pending step in
func (p *ProcessSession) ShouldStepIn() bool { return p.pending.Kind == CmdStepIn }

// ShouldStepOver reports a pending step over
func (p *ProcessSession) ShouldStepOver() bool { return p.pending.Kind == CmdStepOver }

// ShouldContinue reports a pending continue
func (p *ProcessSession) ShouldContinue() bool { return p.pending.Kind == CmdContinue }

// RunToLoc returns the target of a pending run-to
func (p *ProcessSession) RunToLoc() (types.Location, bool) {
	if p.pending.Kind != CmdRunTo {
		return types.Location{}, false
	}
	return p.pending.Loc, true
}

// SelectedFrame returns the frame the variables and highlight belong to
func (p *ProcessSession) SelectedFrame() (types.Frame, bool) {
	if p.status != types.ProcessStopped || p.selected < 0 || p.selected >= len(p.frames) {
		return types.Frame{}, false
	}
	return p.frames[p.selected], true
}

// HighlightLoc returns the line to highlight, if stopped in known source
func (p *ProcessSession) HighlightLoc() (types.Location, bool) {
	return p.highlight, !p.highlight.IsZero()
}

// Variables returns the variable pane, nil unless stopped with a frame
func (p *ProcessSession) Variables() *VariableState { return p.vars }

// Frames returns the current stack, empty unless stopped
func (p *ProcessSession) Frames() []types.Frame {
	return append([]types.Frame(nil), p.frames...)
}

// Transient returns the run-to breakpoint currently set, if any
func (p *ProcessSession) Transient() (engine.BreakpointHandle, bool) {
	if p.transient == nil {
		return engine.BreakpointHandle{}, false
	}
	return *p.transient, true
}

// Request records cmd as the outstanding command.
//
// A kill always replaces whatever is pending. Nothing else is accepted while
// a kill is pending or in progress, while another command is pending, or
// unless the process is stopped.
func (p *ProcessSession) Request(cmd Command) error {
	switch cmd.Kind {
	case CmdKill:
		p.pending = cmd
		return nil
	case CmdStepIn, CmdStepOver, CmdContinue, CmdRunTo:
	default:
		return lodeberrors.InvalidParameter("command", cmd.String(), "step in, step over, continue, run to or kill")
	}

	if p.pending.Kind == CmdKill || p.status == types.ProcessTerminating {
		return lodeberrors.KillPending(cmd.String())
	}
	if p.pending.Kind != CmdNone {
		return lodeberrors.CommandPending(cmd.String(), p.pending.String())
	}
	if p.status != types.ProcessStopped {
		return lodeberrors.NotStopped(cmd.String(), string(p.status))
	}
	p.pending = cmd
	return nil
}

// resume enters Running; frame, highlight and variables lose meaning.
// A step, continue or run-to requested while stopped is dropped with them.
func (p *ProcessSession) resume() {
	p.status = types.ProcessRunning
	if p.pending.Kind != CmdKill {
		p.pending = Command{}
	}
	p.frames = nil
	p.selected = -1
	p.highlight = types.Location{}
	if p.vars != nil {
		p.retired = p.vars
	}
	p.vars = nil
	p.renderers = nil
	p.frameToSelect.Clear()
}

// stop enters Stopped with a fresh stack; the top frame is selected
func (p *ProcessSession) stop(frames []types.Frame, vars []engine.Variable) {
	p.status = types.ProcessStopped
	p.frames = frames
	p.frameToSelect.Clear()
	if len(frames) == 0 {
		p.selected = -1
		p.highlight = types.Location{}
		if p.vars != nil {
			p.retired = p.vars
		}
		p.vars = nil
		p.renderers = nil
		return
	}
	p.selectFrame(0, vars)
}

// selectFrame re-targets highlight and variables at frames[i]
func (p *ProcessSession) selectFrame(i int, vars []engine.Variable) {
	f := p.frames[i]
	p.selected = i
	p.highlight = f.Location

	prev := p.vars
	if prev == nil {
		prev = p.retired
	}
	names := make([]string, len(vars))
	for j, v := range vars {
		names[j] = v.Name
	}
	p.vars = NewVariableState(f.Signature(), names, prev)
	p.retired = nil
	p.renderers = vars
}

func (p *ProcessSession) snapshot() *types.ProcessSnapshot {
	s := &types.ProcessSnapshot{
		ID:     p.id,
		Status: p.status,
		Frames: p.Frames(),
	}
	if p.pending.Kind != CmdNone {
		s.Pending = p.pending.String()
	}
	if loc, ok := p.RunToLoc(); ok {
		s.RunToLoc = &loc
	}
	if f, ok := p.SelectedFrame(); ok {
		s.SelectedFrame = &f
	}
	if loc, ok := p.HighlightLoc(); ok {
		s.HighlightLoc = &loc
	}
	if p.vars != nil {
		s.Variables = p.vars.View()
	}
	return s
}
