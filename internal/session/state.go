// Package session is the state core of the lodeb debugger front-end.
//
// State holds one debug session: the configured executable, the loaded target
// and its asynchronously resolved symbols, the user breakpoints, the running
// or stopped process and the UI-facing panes (source, variables, output).
//
// The UI never calls the engine. It records intents on State (load, start,
// step, toggle a breakpoint, open a file) and a Driver, running on its own
// goroutine, consumes them, talks to the engine and writes the results back.
// Every State method takes the state lock briefly; engine calls happen with
// the lock released.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ctagard/lodeb/internal/engine"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/internal/symbols"
	"github.com/ctagard/lodeb/pkg/types"
)

// SessionCommand is the set of pending session-level requests.
// When both are set the driver loads before it starts.
type SessionCommand uint8

const (
	SessionLoad SessionCommand = 1 << iota
	SessionStart
)

// Has reports whether c includes x
func (c SessionCommand) Has(x SessionCommand) bool { return c&x != 0 }

func (c SessionCommand) String() string {
	switch {
	case c.Has(SessionLoad) && c.Has(SessionStart):
		return "load+start"
	case c.Has(SessionLoad):
		return "load"
	case c.Has(SessionStart):
		return "start"
	default:
		return ""
	}
}

const (
	defaultMaxOutput = 1 << 20
	maxErrors        = 64
)

// Options configures a State
type Options struct {
	// MaxOutputBytes bounds captured process output
	MaxOutputBytes int
	Logger         *slog.Logger
}

// State is the single owner of all mutable session data
type State struct {
	eng engine.Engine
	log *slog.Logger

	mu sync.Mutex

	exeParams types.ExeParams
	pending   SessionCommand
	target    engine.Target

	resolver *MetadataResolver
	symbols  *symbols.Table
	// metaGen is the resolution whose result may be applied; 0 accepts none
	metaGen uint64

	searchText    string
	focusOnSearch OneShot[bool]
	locToOpen     OneShot[types.Location]
	locToToggle   OneShot[types.Location]

	breakpoints *Breakpoints
	process     *ProcessSession
	source      *SourceView
	output      *Output

	errs  []error
	dirty bool

	wake chan struct{}
}

// NewState creates a session around eng. The engine is never replaced.
func NewState(eng engine.Engine, opts Options) *State {
	max := opts.MaxOutputBytes
	if max == 0 {
		max = defaultMaxOutput
	}
	return &State{
		eng:         eng,
		log:         logging.OrDefault(opts.Logger),
		exeParams:   types.DefaultExeParams(),
		resolver:    NewMetadataResolver(),
		breakpoints: NewBreakpoints(),
		output:      NewOutput(max),
		wake:        make(chan struct{}, 1),
	}
}

// Engine returns the engine handle
func (s *State) Engine() engine.Engine { return s.eng }

// Wake is signalled whenever an intent is recorded
func (s *State) Wake() <-chan struct{} { return s.wake }

func (s *State) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// report records err for the UI; the caller holds the lock
func (s *State) report(err error) {
	if err == nil {
		return
	}
	s.log.Warn("session error", "code", lodeberrors.CodeOf(err), "error", err)
	if len(s.errs) >= maxErrors {
		s.errs = s.errs[1:]
	}
	s.errs = append(s.errs, err)
}

// TakeErrors returns and clears the errors reported since the last call
func (s *State) TakeErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := s.errs
	s.errs = nil
	return errs
}

// --- configuration ---

// SetExeParams replaces the executable parameters used by the next load
func (s *State) SetExeParams(p types.ExeParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setExeParams(p)
	s.dirty = true
}

func (s *State) setExeParams(p types.ExeParams) {
	p = p.Clone()
	if p.Args == nil {
		p.Args = []string{}
	}
	s.exeParams = p
}

// ExeParams returns a copy of the executable parameters
func (s *State) ExeParams() types.ExeParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exeParams.Clone()
}

// --- session intents ---

// RequestLoad asks the driver to (re)load the target from the current
// executable parameters
func (s *State) RequestLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exeParams.ExePath == "" {
		return lodeberrors.MissingParameter("exe_path", "Set the executable path before loading.")
	}
	s.pending |= SessionLoad
	s.signal()
	return nil
}

// RequestStart asks the driver to launch the loaded target
func (s *State) RequestStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil && !s.pending.Has(SessionLoad) {
		return lodeberrors.NoTarget("start")
	}
	s.pending |= SessionStart
	s.signal()
	return nil
}

// ShouldLoad reports a pending load
func (s *State) ShouldLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Has(SessionLoad)
}

// ShouldStart reports a pending start
func (s *State) ShouldStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Has(SessionStart)
}

// RequestOpen asks the driver to show loc in the source pane
func (s *State) RequestOpen(loc types.Location) error {
	if loc.Path == "" {
		return lodeberrors.MissingParameter("path", "Give the source file to open.")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locToOpen.Set(loc)
	s.signal()
	return nil
}

// LocToOpen returns the pending open request without consuming it
func (s *State) LocToOpen() (types.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locToOpen.Peek()
}

// RequestToggleBreakpoint asks the driver to toggle the breakpoint at loc
func (s *State) RequestToggleBreakpoint(loc types.Location) error {
	if loc.Path == "" || loc.Line < 1 {
		return lodeberrors.InvalidParameter("location", loc.String(), "a source path and a line number >= 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil && !s.pending.Has(SessionLoad) {
		return lodeberrors.NoTarget("toggle breakpoint")
	}
	if pending, ok := s.locToToggle.Peek(); ok {
		return lodeberrors.CommandPending("toggle breakpoint at "+loc.String(), "toggle breakpoint at "+pending.String())
	}
	s.locToToggle.Set(loc)
	s.signal()
	return nil
}

// LocToToggleBreakpoint returns the pending toggle without consuming it
func (s *State) LocToToggleBreakpoint() (types.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locToToggle.Peek()
}

// --- process intents ---

// RequestProcess records an execution-control command for the process
func (s *State) RequestProcess(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process == nil {
		return lodeberrors.NoProcess(cmd.String())
	}
	if err := s.process.Request(cmd); err != nil {
		return err
	}
	s.signal()
	return nil
}

// RequestSelectFrame asks the driver to show frame i of the stopped stack
func (s *State) RequestSelectFrame(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.process
	if ps == nil {
		return lodeberrors.NoProcess("select frame")
	}
	if ps.status != types.ProcessStopped {
		return lodeberrors.NotStopped("select frame", string(ps.status))
	}
	if i < 0 || i >= len(ps.frames) {
		return lodeberrors.InvalidParameter("frame", i, "an index into the current stack")
	}
	ps.frameToSelect.Set(i)
	s.signal()
	return nil
}

// ToggleVariable expands or collapses a variable path of the selected frame
// and returns the new state
func (s *State) ToggleVariable(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.process
	if ps == nil {
		return false, lodeberrors.NoProcess("toggle variable")
	}
	if ps.vars == nil {
		return false, lodeberrors.NotStopped("toggle variable", string(ps.status))
	}
	expanded := ps.vars.ToggleExpanded(path)
	s.signal()
	return expanded, nil
}

// --- symbol search ---

// SetSearchText sets the symbol search query
func (s *State) SetSearchText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchText = text
}

// SearchText returns the symbol search query
func (s *State) SearchText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchText
}

// FocusSearch asks the UI to focus the search box
func (s *State) FocusSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusOnSearch.Set(true)
}

// TakeFocusSearch consumes the focus request
func (s *State) TakeFocusSearch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.focusOnSearch.Take()
	return ok
}

// SearchSymbols matches the search text against the resolved symbols.
// It returns nothing until metadata resolution has finished.
func (s *State) SearchSymbols(limit int) []symbols.Symbol {
	s.mu.Lock()
	table, text := s.symbols, s.searchText
	s.mu.Unlock()
	return table.Search(text, limit)
}

// --- accessors ---

// Target returns the loaded target, or nil
func (s *State) Target() engine.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Process returns the live process session, or nil. The driver mutates it
// without synchronisation visible to callers, so UI code reads Snapshot
// instead; Process is meant for tests.
func (s *State) Process() *ProcessSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process
}

// Breakpoints returns the user breakpoint table
func (s *State) Breakpoints() *Breakpoints {
	return s.breakpoints
}

// Metadata returns the resolved symbols, once available
func (s *State) Metadata() (*symbols.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbols, s.symbols != nil
}

// MetadataPending reports whether resolution is still running or unconsumed
func (s *State) MetadataPending() bool {
	return s.resolver.Pending()
}

// WaitMetadata blocks until the resolution in flight finishes and applies it
func (s *State) WaitMetadata(ctx context.Context) error {
	res, ok, err := s.resolver.Wait(ctx)
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyMetadata(res)
	return res.Err
}

// PollMetadata applies a finished resolution without blocking and reports
// whether one was applied
func (s *State) PollMetadata() bool {
	res, ok := s.resolver.Poll()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyMetadata(res)
	return true
}

// detachTarget drops the target with its process and symbols and returns
// what was dropped. Results of earlier resolutions are refused from now on.
// The caller holds the lock.
func (s *State) detachTarget() (*ProcessSession, engine.Target) {
	ps, target := s.process, s.target
	s.process = nil
	s.target = nil
	s.symbols = nil
	s.metaGen = 0
	return ps, target
}

// applyMetadata is the only writer of s.symbols; the caller holds the lock
func (s *State) applyMetadata(res MetadataResult) {
	if res.Generation != s.metaGen {
		s.log.Debug("dropping superseded symbols", "generation", res.Generation, "current", s.metaGen)
		return
	}
	s.metaGen = 0
	if res.Err != nil {
		if res.Err != context.Canceled {
			s.report(lodeberrors.Wrap(lodeberrors.CodeLoadFailed, "symbol resolution failed: "+res.Err.Error(),
				"Symbol search is unavailable; build the target with debug information.", res.Err))
		}
		return
	}
	s.symbols = res.Table
	s.log.Info("symbols resolved", "generation", res.Generation, "count", res.Table.Len())
}

// Source returns a copy of the source view, or nil
func (s *State) Source() *SourceView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.clone()
}

// SetSource replaces the source view
func (s *State) SetSource(v *SourceView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = v
	s.dirty = true
}

// TakeScroll consumes the pending scroll request of the source view
func (s *State) TakeScroll() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return 0, false
	}
	return s.source.TakeScroll()
}

// Output returns the captured process output
func (s *State) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.String()
}

// Idle reports whether no intent is waiting for the driver
func (s *State) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != 0 || s.locToOpen.IsSet() || s.locToToggle.IsSet() || s.dirty {
		return false
	}
	if ps := s.process; ps != nil {
		if ps.pending.Kind != CmdNone || ps.frameToSelect.IsSet() {
			return false
		}
		if ps.vars != nil && ps.vars.NeedsRender() {
			return false
		}
	}
	return true
}

// Snapshot returns a read-only copy of the session for the UI
func (s *State) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := types.SessionSnapshot{
		ExeParams:       s.exeParams.Clone(),
		Pending:         s.pending.String(),
		TargetLoaded:    s.target != nil,
		MetadataPending: s.resolver.Pending(),
		MetadataReady:   s.symbols != nil,
		Breakpoints:     s.breakpoints.Sorted(),
		SearchText:      s.searchText,
	}
	if s.source != nil {
		snap.SourcePath = s.source.Path
	}
	if s.process != nil {
		snap.Process = s.process.snapshot()
	}
	return snap
}
