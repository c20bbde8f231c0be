package session

import (
	"context"
	"sort"
	"sync"

	"github.com/ctagard/lodeb/internal/engine"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/pkg/types"
)

// Breakpoints maps user breakpoint locations to their engine handles.
// A key is present only while the engine holds the breakpoint: the map is
// changed after the engine confirms, never before.
//
// Reads are safe from any goroutine. Toggle and Clear call the engine without
// holding the lock and must only be called from one goroutine at a time.
type Breakpoints struct {
	mu sync.RWMutex
	m  map[types.Location]engine.BreakpointHandle
}

// NewBreakpoints returns an empty table
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{m: make(map[types.Location]engine.BreakpointHandle)}
}

// Toggle removes the breakpoint at loc if present, else sets one.
// It returns whether a breakpoint is now set at loc. On failure the table is
// unchanged and the error has code ENGINE_REJECTED.
func (b *Breakpoints) Toggle(ctx context.Context, eng engine.Engine, target engine.Target, loc types.Location) (bool, error) {
	b.mu.RLock()
	h, present := b.m[loc]
	b.mu.RUnlock()

	if present {
		if err := eng.RemoveBreakpoint(ctx, target, h); err != nil {
			return true, rejected("remove breakpoint", loc, err)
		}
		b.mu.Lock()
		delete(b.m, loc)
		b.mu.Unlock()
		return false, nil
	}

	h, err := eng.SetBreakpoint(ctx, target, loc)
	if err != nil {
		return false, rejected("set breakpoint", loc, err)
	}
	b.mu.Lock()
	b.m[loc] = h
	b.mu.Unlock()
	return true, nil
}

func rejected(op string, loc types.Location, err error) error {
	if lodeberrors.Is(err, lodeberrors.CodeEngineRejected) {
		return err
	}
	return lodeberrors.BreakpointRejected(loc.Path, loc.Line, op+" failed", err)
}

// Has reports whether a breakpoint is set at loc
func (b *Breakpoints) Has(loc types.Location) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.m[loc]
	return ok
}

// Handle returns the engine handle at loc
func (b *Breakpoints) Handle(loc types.Location) (engine.BreakpointHandle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.m[loc]
	return h, ok
}

// Len returns the number of breakpoints
func (b *Breakpoints) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

// Sorted returns the locations ordered by path, then line
func (b *Breakpoints) Sorted() []types.Location {
	b.mu.RLock()
	out := make([]types.Location, 0, len(b.m))
	for loc := range b.m {
		out = append(out, loc)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Clear removes every breakpoint from the engine and empties the table.
// Engine failures are returned but the table is emptied regardless, since
// it is only cleared when the target itself goes away.
func (b *Breakpoints) Clear(ctx context.Context, eng engine.Engine, target engine.Target) error {
	b.mu.Lock()
	old := b.m
	b.m = make(map[types.Location]engine.BreakpointHandle)
	b.mu.Unlock()

	var firstErr error
	if target == nil {
		return nil
	}
	for loc, h := range old {
		if err := eng.RemoveBreakpoint(ctx, target, h); err != nil && firstErr == nil {
			firstErr = rejected("remove breakpoint", loc, err)
		}
	}
	return firstErr
}
