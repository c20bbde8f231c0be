package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/lodeb/internal/engine"
	"github.com/ctagard/lodeb/internal/engine/enginetest"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/internal/symbols"
	"github.com/ctagard/lodeb/pkg/types"
)

type harness struct {
	t    *testing.T
	st   *State
	d    *Driver
	eng  *enginetest.Fake
	dir  string
	src  string
	main types.Frame
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	require.NoError(t, os.WriteFile(src, []byte("int main() {\n  int x = 1;\n  x++;\n  return x;\n}\n"), 0o644))

	fake := enginetest.New()
	st := NewState(fake, Options{Logger: logging.Discard()})
	return &harness{
		t:    t,
		st:   st,
		d:    NewDriver(st, DriverOptions{Logger: logging.Discard()}),
		eng:  fake,
		dir:  dir,
		src:  src,
		main: types.Frame{ID: 1, Name: "main", Location: types.Location{Path: src, Line: 2}, ThreadID: 1},
	}
}

func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.d.Settle(ctx))
}

func (h *harness) loc(line int) types.Location {
	return types.Location{Path: h.src, Line: line}
}

// load configures and loads the target
func (h *harness) load() {
	h.t.Helper()
	h.st.SetExeParams(types.ExeParams{ExePath: filepath.Join(h.dir, "app"), WorkingDir: h.dir})
	require.NoError(h.t, h.st.RequestLoad())
	h.settle()
	require.NotNil(h.t, h.st.Target())
}

// start launches the loaded target and leaves it running
func (h *harness) start() *ProcessSession {
	h.t.Helper()
	require.NoError(h.t, h.st.RequestStart())
	h.settle()
	ps := h.st.Process()
	require.NotNil(h.t, ps)
	require.Equal(h.t, types.ProcessRunning, ps.Status())
	return ps
}

// stop delivers a stop of the current process in main
func (h *harness) stop() {
	h.t.Helper()
	h.eng.SetFrames(h.main)
	h.eng.Stop(h.st.Process().Handle(), "breakpoint")
	h.settle()
	require.Equal(h.t, types.ProcessStopped, h.st.Process().Status())
}

func (h *harness) stopped() *ProcessSession {
	h.t.Helper()
	h.load()
	ps := h.start()
	h.stop()
	return ps
}

func (h *harness) errorCodes() []lodeberrors.ErrorCode {
	var codes []lodeberrors.ErrorCode
	for _, err := range h.st.TakeErrors() {
		codes = append(codes, lodeberrors.CodeOf(err))
	}
	return codes
}

func TestDriver_LoadAndStart(t *testing.T) {
	h := newHarness(t)
	h.load()
	assert.Equal(t, 1, h.eng.Count(enginetest.OpLoad))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.st.WaitMetadata(ctx))
	_, ready := h.st.Metadata()
	assert.True(t, ready)

	h.start()
	assert.Equal(t, 1, h.eng.Count(enginetest.OpLaunch))
	assert.Empty(t, h.errorCodes())
}

func TestDriver_StartWithoutTarget(t *testing.T) {
	h := newHarness(t)
	err := h.st.RequestStart()
	require.Error(t, err)
	assert.Equal(t, lodeberrors.CodeNoTarget, lodeberrors.CodeOf(err))
}

func TestDriver_FailedLoadDropsStart(t *testing.T) {
	h := newHarness(t)
	h.eng.Fail(enginetest.OpLoad, lodeberrors.LoadFailed("app", errors.New("not an executable")))

	h.st.SetExeParams(types.ExeParams{ExePath: "app", WorkingDir: h.dir})
	require.NoError(t, h.st.RequestLoad())
	require.NoError(t, h.st.RequestStart(), "start may be queued behind a load")
	h.settle()

	assert.Nil(t, h.st.Target())
	assert.Equal(t, 0, h.eng.Count(enginetest.OpLaunch))
	assert.Equal(t, []lodeberrors.ErrorCode{lodeberrors.CodeLoadFailed}, h.errorCodes())
	assert.False(t, h.st.ShouldStart())
}

func TestDriver_ToggleBreakpointTwice(t *testing.T) {
	h := newHarness(t)
	h.load()
	loc := h.loc(3)

	require.NoError(t, h.st.RequestToggleBreakpoint(loc))
	h.settle()
	assert.True(t, h.st.Breakpoints().Has(loc))
	assert.Len(t, h.eng.LiveBreakpoints(), 1)

	require.NoError(t, h.st.RequestToggleBreakpoint(loc))
	h.settle()
	assert.False(t, h.st.Breakpoints().Has(loc))
	assert.Equal(t, 0, h.st.Breakpoints().Len())
	assert.Empty(t, h.eng.LiveBreakpoints())

	assert.Equal(t, 1, h.eng.Count(enginetest.OpSetBreakpoint))
	assert.Equal(t, 1, h.eng.Count(enginetest.OpRemoveBreakpoint))
}

func TestDriver_RejectedToggleLeavesTable(t *testing.T) {
	h := newHarness(t)
	h.load()

	bad := h.loc(1)
	h.eng.Reject(bad)
	require.NoError(t, h.st.RequestToggleBreakpoint(bad))
	h.settle()
	assert.Equal(t, 0, h.st.Breakpoints().Len())
	assert.Equal(t, []lodeberrors.ErrorCode{lodeberrors.CodeEngineRejected}, h.errorCodes())

	good := h.loc(3)
	require.NoError(t, h.st.RequestToggleBreakpoint(good))
	h.settle()
	h.eng.Fail(enginetest.OpRemoveBreakpoint, errors.New("adapter gone"))
	require.NoError(t, h.st.RequestToggleBreakpoint(good))
	h.settle()
	assert.True(t, h.st.Breakpoints().Has(good), "a failed removal keeps the breakpoint")
	assert.Equal(t, []lodeberrors.ErrorCode{lodeberrors.CodeEngineRejected}, h.errorCodes())
}

func TestRequestToggleBreakpoint_Rules(t *testing.T) {
	h := newHarness(t)

	err := h.st.RequestToggleBreakpoint(h.loc(3))
	assert.Equal(t, lodeberrors.CodeNoTarget, lodeberrors.CodeOf(err))

	err = h.st.RequestToggleBreakpoint(types.Location{Path: h.src})
	assert.Equal(t, lodeberrors.CodeInvalidParameter, lodeberrors.CodeOf(err))

	h.load()
	require.NoError(t, h.st.RequestToggleBreakpoint(h.loc(3)))
	err = h.st.RequestToggleBreakpoint(h.loc(4))
	assert.Equal(t, lodeberrors.CodeCommandPending, lodeberrors.CodeOf(err))
	h.settle()
	assert.Equal(t, []types.Location{h.loc(3)}, h.st.Breakpoints().Sorted())
}

func TestDriver_StopOpensSourceAndRendersVariables(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVariables(h.main.ID,
		engine.Variable{Name: "x", Value: engine.TextValue("1")},
		engine.Variable{Name: "p", Value: enginetest.Struct{Summary: "{...}", Fields: []engine.Variable{
			{Name: "a", Value: engine.TextValue("2")},
		}}},
		engine.Variable{Name: "x", Value: engine.TextValue("3")},
	)
	h.stopped()

	src := h.st.Source()
	require.NotNil(t, src)
	assert.Equal(t, h.src, src.Path)
	line, ok := h.st.TakeScroll()
	assert.True(t, ok)
	assert.Equal(t, 2, line)

	snap := h.st.Snapshot()
	require.NotNil(t, snap.Process)
	require.NotNil(t, snap.Process.HighlightLoc)
	assert.Equal(t, h.loc(2), *snap.Process.HighlightLoc)
	assert.Equal(t, []types.VariableView{
		{Name: "x", Value: "1"},
		{Name: "p", Value: "{...}"},
		{Name: "x#2", Value: "3"},
	}, snap.Process.Variables)

	expanded, err := h.st.ToggleVariable("p")
	require.NoError(t, err)
	assert.True(t, expanded)
	h.settle()
	vars := h.st.Snapshot().Process.Variables
	assert.Equal(t, types.VariableView{
		Name: "p", Value: "{...}", Expanded: true,
		Children: []types.VariableView{{Name: "a", Value: "2"}},
	}, vars[1])

	// stepping within the same frame keeps p expanded
	require.NoError(t, h.st.RequestProcess(StepOverCommand()))
	h.settle()
	h.stop()
	vars = h.st.Snapshot().Process.Variables
	assert.True(t, vars[1].Expanded)
	assert.Equal(t, "2", vars[1].Children[0].Value)
}

func TestDriver_SelectFrame(t *testing.T) {
	h := newHarness(t)
	h.load()
	h.start()

	caller := types.Frame{ID: 2, Index: 1, Name: "run", Location: h.loc(4), ThreadID: 1}
	h.eng.SetFrames(h.main, caller)
	h.eng.SetVariables(caller.ID, engine.Variable{Name: "argc", Value: engine.TextValue("1")})
	h.eng.Stop(h.st.Process().Handle(), "step")
	h.settle()

	err := h.st.RequestSelectFrame(2)
	assert.Equal(t, lodeberrors.CodeInvalidParameter, lodeberrors.CodeOf(err))

	require.NoError(t, h.st.RequestSelectFrame(1))
	h.settle()
	snap := h.st.Snapshot().Process
	require.NotNil(t, snap.SelectedFrame)
	assert.Equal(t, "run", snap.SelectedFrame.Name)
	assert.Equal(t, h.loc(4), *snap.HighlightLoc)
	assert.Equal(t, []types.VariableView{{Name: "argc", Value: "1"}}, snap.Variables)

	require.NoError(t, h.st.RequestProcess(ContinueCommand()))
	h.settle()
	err = h.st.RequestSelectFrame(0)
	assert.Equal(t, lodeberrors.CodeNotStopped, lodeberrors.CodeOf(err))
}

func TestDriver_KillTakesPrecedence(t *testing.T) {
	h := newHarness(t)
	ps := h.stopped()

	require.NoError(t, h.st.RequestProcess(StepOverCommand()))
	require.NoError(t, h.st.RequestProcess(KillCommand()))
	err := h.st.RequestProcess(StepInCommand())
	assert.Equal(t, lodeberrors.CodeKillPending, lodeberrors.CodeOf(err))
	assert.True(t, ps.ShouldKill())

	h.settle()
	assert.Nil(t, h.st.Process())
	assert.Equal(t, 0, h.eng.Count(enginetest.OpStepOver))
	assert.Equal(t, 1, h.eng.Count(enginetest.OpKill))
	assert.False(t, h.eng.Alive(ps.Handle().ID()))

	err = h.st.RequestProcess(StepInCommand())
	assert.Equal(t, lodeberrors.CodeNoProcess, lodeberrors.CodeOf(err))
}

func TestDriver_RunningRejectsSteps(t *testing.T) {
	h := newHarness(t)
	h.load()
	h.start()

	err := h.st.RequestProcess(StepOverCommand())
	assert.Equal(t, lodeberrors.CodeNotStopped, lodeberrors.CodeOf(err))
	require.NoError(t, h.st.RequestProcess(KillCommand()), "a running process can always be killed")
	h.settle()
	assert.Nil(t, h.st.Process())
}

func TestDriver_StepOverThenExit(t *testing.T) {
	h := newHarness(t)
	ps := h.stopped()

	require.NoError(t, h.st.RequestProcess(StepOverCommand()))
	h.settle()
	assert.Equal(t, types.ProcessRunning, ps.Status())
	assert.Equal(t, CmdNone, ps.Pending().Kind)

	h.eng.Exit(ps.Handle(), 0)
	h.settle()
	assert.Nil(t, h.st.Process())
	assert.Nil(t, h.st.Snapshot().Process)
	assert.Empty(t, h.errorCodes(), "a normal exit is not an error")
}

func TestDriver_StepFailureTearsDown(t *testing.T) {
	h := newHarness(t)
	ps := h.stopped()
	h.eng.Fail(enginetest.OpStepIn, errors.New("connection reset"))

	require.NoError(t, h.st.RequestProcess(StepInCommand()))
	h.settle()
	assert.Nil(t, h.st.Process())
	assert.False(t, h.eng.Alive(ps.Handle().ID()))
	assert.Equal(t, []lodeberrors.ErrorCode{lodeberrors.CodeStepFailed}, h.errorCodes())
}

func TestDriver_RunToTransientBreakpoint(t *testing.T) {
	target := func(h *harness) types.Location { return h.loc(4) }

	t.Run("removed when the process stops", func(t *testing.T) {
		h := newHarness(t)
		ps := h.stopped()

		require.NoError(t, h.st.RequestProcess(RunToCommand(target(h))))
		h.settle()
		assert.Equal(t, types.ProcessRunning, ps.Status())
		assert.Len(t, h.eng.LiveBreakpoints(), 1)
		assert.Equal(t, 0, h.st.Breakpoints().Len(), "a run-to breakpoint is never a user breakpoint")

		h.stop()
		assert.Empty(t, h.eng.LiveBreakpoints())
		assert.Equal(t, 0, h.st.Breakpoints().Len())
		_, ok := ps.Transient()
		assert.False(t, ok)
	})

	t.Run("removed when continue fails", func(t *testing.T) {
		h := newHarness(t)
		h.stopped()
		h.eng.Fail(enginetest.OpContinue, errors.New("connection reset"))

		require.NoError(t, h.st.RequestProcess(RunToCommand(target(h))))
		h.settle()
		assert.Nil(t, h.st.Process())
		assert.Empty(t, h.eng.LiveBreakpoints())
		assert.Equal(t, []lodeberrors.ErrorCode{lodeberrors.CodeStepFailed}, h.errorCodes())
	})

	t.Run("removed on kill", func(t *testing.T) {
		h := newHarness(t)
		h.stopped()

		require.NoError(t, h.st.RequestProcess(RunToCommand(target(h))))
		h.settle()
		require.NoError(t, h.st.RequestProcess(KillCommand()))
		h.settle()
		assert.Nil(t, h.st.Process())
		assert.Empty(t, h.eng.LiveBreakpoints())
	})

	t.Run("removed on exit", func(t *testing.T) {
		h := newHarness(t)
		ps := h.stopped()

		require.NoError(t, h.st.RequestProcess(RunToCommand(target(h))))
		h.settle()
		h.eng.Exit(ps.Handle(), 3)
		h.settle()
		assert.Empty(t, h.eng.LiveBreakpoints())
	})

	t.Run("user breakpoint at the same line survives", func(t *testing.T) {
		h := newHarness(t)
		h.load()
		require.NoError(t, h.st.RequestToggleBreakpoint(target(h)))
		h.settle()
		h.start()
		h.stop()

		require.NoError(t, h.st.RequestProcess(RunToCommand(target(h))))
		h.settle()
		assert.Len(t, h.eng.LiveBreakpoints(), 2)
		h.stop()
		assert.Len(t, h.eng.LiveBreakpoints(), 1)
		assert.True(t, h.st.Breakpoints().Has(target(h)))
	})

	t.Run("rejected location keeps the process stopped", func(t *testing.T) {
		h := newHarness(t)
		ps := h.stopped()
		h.eng.Reject(target(h))

		require.NoError(t, h.st.RequestProcess(RunToCommand(target(h))))
		h.settle()
		assert.Equal(t, types.ProcessStopped, ps.Status())
		assert.Equal(t, CmdNone, ps.Pending().Kind)
		assert.Equal(t, 0, h.eng.Count(enginetest.OpContinue))
		assert.Equal(t, []lodeberrors.ErrorCode{lodeberrors.CodeEngineRejected}, h.errorCodes())
	})
}

func TestDriver_OutputAndStaleEvents(t *testing.T) {
	h := newHarness(t)
	h.load()
	first := h.start()

	h.eng.Push(engine.Event{ProcessID: first.Handle().ID(), Kind: engine.EventOutput, Category: "stdout", Text: "hello\n"})
	h.settle()
	assert.Equal(t, "hello\n", h.st.Output())

	second := h.start()
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Empty(t, h.st.Output(), "a new launch starts with empty output")
	assert.False(t, h.eng.Alive(first.Handle().ID()), "restarting kills the previous process")

	h.eng.Push(engine.Event{ProcessID: first.Handle().ID(), Kind: engine.EventOutput, Text: "late\n"})
	h.eng.Stop(first.Handle(), "breakpoint")
	h.settle()
	assert.Empty(t, h.st.Output())
	assert.Equal(t, types.ProcessRunning, second.Status())
}

func TestDriver_ReloadClearsBreakpointsAndProcess(t *testing.T) {
	h := newHarness(t)
	h.load()
	require.NoError(t, h.st.RequestToggleBreakpoint(h.loc(3)))
	h.settle()
	ps := h.start()

	require.NoError(t, h.st.RequestLoad())
	h.settle()
	assert.Nil(t, h.st.Process())
	assert.False(t, h.eng.Alive(ps.Handle().ID()))
	assert.Equal(t, 0, h.st.Breakpoints().Len())
	assert.Empty(t, h.eng.LiveBreakpoints())
	assert.NotNil(t, h.st.Target())
}

func TestDriver_MetadataWaitRacingReload(t *testing.T) {
	h := newHarness(t)

	gate := make(chan struct{})
	h.eng.SetResolver(func(ctx context.Context, target engine.Target) (*symbols.Table, error) {
		if filepath.Base(target.Params().ExePath) == "old" {
			<-gate
			return symbols.NewTable([]symbols.Symbol{{Name: "old_main"}}), nil
		}
		return nil, errors.New("no debug info")
	})

	h.st.SetExeParams(types.ExeParams{ExePath: filepath.Join(h.dir, "old"), WorkingDir: h.dir})
	require.NoError(t, h.st.RequestLoad())
	h.settle()
	require.True(t, h.st.MetadataPending())

	// The waiter takes the finished result, then has to wait for the lock
	// while the target is being replaced.
	h.st.mu.Lock()
	waited := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		waited <- h.st.WaitMetadata(ctx)
	}()
	close(gate)
	require.Eventually(t, func() bool { return !h.st.resolver.Pending() }, 5*time.Second, time.Millisecond)
	h.st.detachTarget()
	h.st.mu.Unlock()

	require.NoError(t, <-waited)
	_, ok := h.st.Metadata()
	assert.False(t, ok, "symbols of a detached target are never applied")

	h.st.SetExeParams(types.ExeParams{ExePath: filepath.Join(h.dir, "new"), WorkingDir: h.dir})
	require.NoError(t, h.st.RequestLoad())
	h.settle()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// the failure is applied either here or by the driver's next tick
	_ = h.st.WaitMetadata(ctx)
	h.settle()
	require.False(t, h.st.MetadataPending())

	_, ok = h.st.Metadata()
	assert.False(t, ok, "a failed resolution leaves no symbols behind")
	assert.Contains(t, h.errorCodes(), lodeberrors.CodeLoadFailed)

	h.st.SetSearchText("main")
	assert.Empty(t, h.st.SearchSymbols(10))
}

func TestDriver_ContinuedEventDropsStaleCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("step", func(t *testing.T) {
		h := newHarness(t)
		ps := h.stopped()

		require.NoError(t, h.st.RequestProcess(StepOverCommand()))
		h.d.HandleEvent(ctx, engine.Event{ProcessID: ps.Handle().ID(), Kind: engine.EventContinued})
		assert.Equal(t, types.ProcessRunning, ps.Status())
		assert.Equal(t, CmdNone, ps.Pending().Kind)

		h.settle()
		assert.Equal(t, 0, h.eng.Count(enginetest.OpStepOver), "a running process is not stepped")
		assert.Same(t, ps, h.st.Process())
		assert.Empty(t, h.errorCodes())
	})

	t.Run("kill", func(t *testing.T) {
		h := newHarness(t)
		ps := h.stopped()

		require.NoError(t, h.st.RequestProcess(KillCommand()))
		h.d.HandleEvent(ctx, engine.Event{ProcessID: ps.Handle().ID(), Kind: engine.EventContinued})
		assert.Equal(t, CmdKill, ps.Pending().Kind)

		h.settle()
		assert.Nil(t, h.st.Process())
		assert.False(t, h.eng.Alive(ps.Handle().ID()))
	})
}

func TestDriver_MetadataLastLoadWins(t *testing.T) {
	h := newHarness(t)

	gate := make(chan struct{})
	oldDone := make(chan struct{})
	h.eng.SetResolver(func(ctx context.Context, target engine.Target) (*symbols.Table, error) {
		if filepath.Base(target.Params().ExePath) == "old" {
			defer close(oldDone)
			<-gate
			return symbols.NewTable([]symbols.Symbol{{Name: "old_main"}}), nil
		}
		return symbols.NewTable([]symbols.Symbol{{Name: "new_main"}}), nil
	})

	h.st.SetExeParams(types.ExeParams{ExePath: filepath.Join(h.dir, "old"), WorkingDir: h.dir})
	require.NoError(t, h.st.RequestLoad())
	h.settle()
	require.True(t, h.st.MetadataPending())

	h.st.SetExeParams(types.ExeParams{ExePath: filepath.Join(h.dir, "new"), WorkingDir: h.dir})
	require.NoError(t, h.st.RequestLoad())
	h.settle()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.st.WaitMetadata(ctx))

	close(gate)
	<-oldDone
	h.settle()

	table, ok := h.st.Metadata()
	require.True(t, ok)
	_, found := table.Lookup("new_main")
	assert.True(t, found)
	_, found = table.Lookup("old_main")
	assert.False(t, found, "a superseded resolution never replaces the current one")
	assert.False(t, h.st.MetadataPending())

	h.st.SetSearchText("nmain")
	got := h.st.SearchSymbols(10)
	require.Len(t, got, 1)
	assert.Equal(t, "new_main", got[0].Name)
}

func TestDriver_RunPersistsAndShutsDown(t *testing.T) {
	h := newHarness(t)
	statePath := filepath.Join(h.dir, "lodeb.json")
	h.d = NewDriver(h.st, DriverOptions{StatePath: statePath, PollInterval: time.Millisecond, Logger: logging.Discard()})
	h.load()
	ps := h.start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.d.Run(ctx) }()

	require.NoError(t, h.st.RequestOpen(h.loc(2)))
	require.Eventually(t, func() bool {
		src := h.st.Source()
		return src != nil && src.Path == h.src && h.st.Idle()
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
	assert.False(t, h.eng.Alive(ps.Handle().ID()), "shutdown kills the process")

	st := NewState(enginetest.New(), Options{Logger: logging.Discard()})
	require.NoError(t, Load(st, statePath))
	assert.Equal(t, h.src, st.Source().Path)
	assert.Equal(t, filepath.Join(h.dir, "app"), st.ExeParams().ExePath)
}

func TestState_SearchIntents(t *testing.T) {
	st := NewState(enginetest.New(), Options{Logger: logging.Discard()})

	assert.False(t, st.TakeFocusSearch())
	st.FocusSearch()
	st.FocusSearch()
	assert.True(t, st.TakeFocusSearch())
	assert.False(t, st.TakeFocusSearch(), "the focus request is consumed once")

	st.SetSearchText("main")
	assert.Equal(t, "main", st.SearchText())
	assert.Empty(t, st.SearchSymbols(10), "no results before metadata is resolved")
}

func TestSnapshot_IsDetachedFromDriver(t *testing.T) {
	h := newHarness(t)
	h.stopped()

	snap := h.st.Snapshot()
	require.NotNil(t, snap.Process)
	require.Equal(t, types.ProcessStopped, snap.Process.Status)
	frames := len(snap.Process.Frames)

	require.NoError(t, h.st.RequestProcess(ContinueCommand()))
	h.settle()
	require.Equal(t, types.ProcessRunning, h.st.Snapshot().Process.Status)

	assert.Equal(t, types.ProcessStopped, snap.Process.Status, "an earlier snapshot keeps its values")
	assert.Len(t, snap.Process.Frames, frames)
}
