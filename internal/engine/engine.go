// Package engine defines the debug engine capability the session core drives,
// and a DAP-backed implementation of it.
//
// The session never talks to a debugger directly. It loads a Target, launches
// a Process from it, sets breakpoints by source Location and issues
// execution-control commands; the engine answers synchronously and later
// pushes stop/exit/output Events tagged with the process id.
package engine

import (
	"context"
	"fmt"

	"github.com/ctagard/lodeb/internal/symbols"
	"github.com/ctagard/lodeb/pkg/types"
)

// Target is a loaded, not yet running executable
type Target interface {
	Params() types.ExeParams
}

// Process is a launched debuggee
type Process interface {
	ID() string
}

// BreakpointHandle identifies a breakpoint registered with the engine
type BreakpointHandle struct {
	ID  uint64
	Loc types.Location
}

// Renderer produces the text of a variable and, lazily, its children
type Renderer interface {
	Text() string
	HasChildren() bool
	Children(ctx context.Context) ([]Variable, error)
}

// Variable is one named value of a stack frame
type Variable struct {
	Name  string
	Value Renderer
}

// EventKind enumerates pushed engine events
type EventKind int

const (
	EventStopped EventKind = iota + 1
	EventContinued
	EventExited
	EventOutput
)

func (k EventKind) String() string {
	switch k {
	case EventStopped:
		return "stopped"
	case EventContinued:
		return "continued"
	case EventExited:
		return "exited"
	case EventOutput:
		return "output"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is something the debuggee did on its own schedule
type Event struct {
	ProcessID string
	Kind      EventKind

	// Stopped
	Reason   string
	ThreadID int

	// Exited
	ExitCode int

	// Output
	Category string
	Text     string
}

// Engine is the capability the session core consumes
type Engine interface {
	LoadTarget(ctx context.Context, p types.ExeParams) (Target, error)
	Launch(ctx context.Context, t Target) (Process, error)

	SetBreakpoint(ctx context.Context, t Target, loc types.Location) (BreakpointHandle, error)
	RemoveBreakpoint(ctx context.Context, t Target, h BreakpointHandle) error

	// Each of these returns once the engine accepted the command; the
	// outcome arrives later as an Event.
	StepIn(ctx context.Context, p Process) error
	StepOver(ctx context.Context, p Process) error
	Continue(ctx context.Context, p Process) error

	// Kill terminates the process; no further events are delivered for it
	Kill(ctx context.Context, p Process) error

	ResolveSymbols(ctx context.Context, t Target) (*symbols.Table, error)

	// Frames returns the stack of a stopped process, innermost first
	Frames(ctx context.Context, p Process) ([]types.Frame, error)
	FrameVariables(ctx context.Context, p Process, f types.Frame) ([]Variable, error)

	Events() <-chan Event
	Close() error
}

// TextValue is a Renderer for a value without children
type TextValue string

// Text implements Renderer
func (v TextValue) Text() string { return string(v) }

// HasChildren implements Renderer
func (v TextValue) HasChildren() bool { return false }

// Children implements Renderer
func (v TextValue) Children(context.Context) ([]Variable, error) { return nil, nil }
